package cloudclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fixedCreds struct {
	baseURL    string
	apiKey     string
	tenantID   string
	locationID string
}

func (f fixedCreds) CloudBaseURL() string    { return f.baseURL }
func (f fixedCreds) CloudAPIKey() string     { return f.apiKey }
func (f fixedCreds) CloudTenantID() string   { return f.tenantID }
func (f fixedCreds) CloudLocationID() string { return f.locationID }

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		name string
		c    fixedCreds
		want bool
	}{
		{"both set", fixedCreds{baseURL: "https://cloud.example.com", apiKey: "key"}, true},
		{"missing key", fixedCreds{baseURL: "https://cloud.example.com"}, false},
		{"missing base url", fixedCreds{apiKey: "key"}, false},
		{"neither set", fixedCreds{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := New(tt.c)
			if got := client.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSetsIdentityHeaders(t *testing.T) {
	var gotAPIKey, gotTenant, gotLocation string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("X-API-Key")
		gotTenant = r.Header.Get("X-Tenant-ID")
		gotLocation = r.Header.Get("X-Location-ID")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	client := New(fixedCreds{baseURL: srv.URL, apiKey: "secret-key", tenantID: "tenant-1", locationID: "loc-1"})
	env, err := client.Get(context.Background(), "/api/hub/sync/categories", "sinceVersion=0")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !env.OK || env.Status != http.StatusOK {
		t.Fatalf("got envelope %+v, want ok status 200", env)
	}
	if gotAPIKey != "secret-key" || gotTenant != "tenant-1" || gotLocation != "loc-1" {
		t.Fatalf("identity headers = (%q, %q, %q), want (secret-key, tenant-1, loc-1)", gotAPIKey, gotTenant, gotLocation)
	}
}

func TestPostMarshalsBodyAndParsesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req PushRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("server failed to decode request: %v", err)
		}
		if req.EntityType != "sale" {
			t.Errorf("got entityType %q, want sale", req.EntityType)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"duplicate":true}`))
	}))
	defer srv.Close()

	client := New(fixedCreds{baseURL: srv.URL, apiKey: "key"})
	env, err := client.Post(context.Background(), "/api/hub/push/sale", PushRequest{
		EntityType:    "sale",
		EntityID:      "sale-1",
		Action:        "create",
		Payload:       json.RawMessage(`{"total":1000}`),
		CorrelationID: "sale-1",
	})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if env.OK {
		t.Fatalf("got OK=true for HTTP 409, want false (2xx only)")
	}
	if env.Status != http.StatusConflict {
		t.Fatalf("got status %d, want 409", env.Status)
	}
}

func TestNetworkFailureReturnsEnvelopeNotError(t *testing.T) {
	client := New(fixedCreds{baseURL: "http://127.0.0.1:1", apiKey: "key"})
	env, err := client.Get(context.Background(), "/api/hub/sync/categories", "")
	if err != nil {
		t.Fatalf("Get() returned a Go error = %v, want a failure envelope instead", err)
	}
	if env.OK || env.Status != 0 || env.Error == "" {
		t.Fatalf("got envelope %+v, want ok=false status=0 with an error message", env)
	}
}

func TestNonJSONResponseLeavesDataNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := New(fixedCreds{baseURL: srv.URL, apiKey: "key"})
	env, err := client.Get(context.Background(), "/health", "")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if env.Data != nil {
		t.Fatalf("got Data = %q, want nil for a non-JSON response", env.Data)
	}
}

package kitchenorder

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	s := openTestStore(t)
	svc := NewService(s, nil)
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Mount("/kitchen-orders", h.Routes())
	return r, svc
}

func TestS5BumpLifecycleOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t)

	body, _ := json.Marshal(sampleCreate())
	req := httptest.NewRequest(http.MethodPost, "/kitchen-orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var created Response
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding create response: %v", err)
	}
	if created.Status != StatusPending {
		t.Fatalf("initial status = %q, want PENDING", created.Status)
	}

	wantStatuses := []string{StatusPreparing, StatusReady, StatusCompleted}
	for i, want := range wantStatuses {
		bumpReq := httptest.NewRequest(http.MethodPost, "/kitchen-orders/"+created.ID+"/bump", nil)
		bumpRec := httptest.NewRecorder()
		router.ServeHTTP(bumpRec, bumpReq)
		if bumpRec.Code != http.StatusOK {
			t.Fatalf("bump #%d status = %d", i+1, bumpRec.Code)
		}
		var bump BumpResponse
		_ = json.Unmarshal(bumpRec.Body.Bytes(), &bump)
		if !bump.Success || bump.Status != want {
			t.Fatalf("bump #%d = %+v, want success with status %q", i+1, bump, want)
		}
	}

	fourthReq := httptest.NewRequest(http.MethodPost, "/kitchen-orders/"+created.ID+"/bump", nil)
	fourthRec := httptest.NewRecorder()
	router.ServeHTTP(fourthRec, fourthReq)
	if fourthRec.Code != http.StatusOK {
		t.Fatalf("fourth bump status = %d", fourthRec.Code)
	}
	var fourth BumpResponse
	_ = json.Unmarshal(fourthRec.Body.Bytes(), &fourth)
	if fourth.Success {
		t.Fatalf("fourth bump succeeded, want success=false")
	}
}

func TestHandleGetUnknownIDReturns404(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/kitchen-orders/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

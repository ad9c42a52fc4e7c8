package pull

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/emberline/hubd/internal/cloudclient"
	"github.com/emberline/hubd/internal/store"
)

type fixedCreds struct{ baseURL string }

func (f fixedCreds) CloudBaseURL() string    { return f.baseURL }
func (f fixedCreds) CloudAPIKey() string     { return "key" }
func (f fixedCreds) CloudTenantID() string   { return "tenant-1" }
func (f fixedCreds) CloudLocationID() string { return "loc-1" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hub.db")
	if err := store.Migrate(path); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunCycleUpsertsCategoriesAndCompanionPrices(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/hub/sync/categories", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"cat-1","name":"Drinks","sortOrder":1,"version":1}]}`))
	})
	mux.HandleFunc("/api/hub/sync/taxes", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	mux.HandleFunc("/api/hub/sync/products", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"prod-1","categoryId":"cat-1","name":"Cola","basePrice":300,"active":true,"version":1,"orderTypePrices":[{"orderType":"dine_in","price":300},{"orderType":"takeout","price":280}]}]}`))
	})
	mux.HandleFunc("/api/hub/sync/customers", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/api/hub/sync/pizza_size_prices", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"productId":"prod-2","size":"large","price":1500}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := openTestStore(t)
	e := New(s, cloudclient.New(fixedCreds{baseURL: srv.URL}), testLogger(), 0)

	total := e.RunCycle(context.Background())
	if total != 2 {
		t.Fatalf("got %d total records, want 2 (1 category + 1 product; customers 404 tolerated)", total)
	}

	var categoryName string
	if err := s.DB().QueryRow(`SELECT name FROM categories WHERE id = 'cat-1'`).Scan(&categoryName); err != nil {
		t.Fatalf("querying category: %v", err)
	}
	if categoryName != "Drinks" {
		t.Fatalf("got category name %q, want Drinks", categoryName)
	}

	var priceCount int
	if err := s.DB().QueryRow(`SELECT count(*) FROM product_order_type_prices WHERE product_id = 'prod-1'`).Scan(&priceCount); err != nil {
		t.Fatalf("querying companion prices: %v", err)
	}
	if priceCount != 2 {
		t.Fatalf("got %d companion prices, want 2", priceCount)
	}

	var pizzaCount int
	if err := s.DB().QueryRow(`SELECT count(*) FROM pizza_size_prices`).Scan(&pizzaCount); err != nil {
		t.Fatalf("querying pizza prices: %v", err)
	}
	if pizzaCount != 1 {
		t.Fatalf("got %d pizza price rows, want 1", pizzaCount)
	}
}

func TestRunCycleIsolatesPerEntityFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/hub/sync/categories", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/hub/sync/taxes", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"tax-1","name":"Sales Tax","rateBps":825,"version":1}]}`))
	})
	mux.HandleFunc("/api/hub/sync/products", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	mux.HandleFunc("/api/hub/sync/customers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	mux.HandleFunc("/api/hub/sync/pizza_size_prices", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := openTestStore(t)
	e := New(s, cloudclient.New(fixedCreds{baseURL: srv.URL}), testLogger(), 0)

	total := e.RunCycle(context.Background())
	if total != 1 {
		t.Fatalf("got %d total records, want 1 (only taxes succeeded)", total)
	}

	var status string
	if err := s.DB().QueryRow(`SELECT status FROM sync_state WHERE entity_type = 'categories'`).Scan(&status); err != nil {
		t.Fatalf("querying sync_state: %v", err)
	}
	if status != "ERROR" {
		t.Fatalf("got categories sync_state status %q, want ERROR", status)
	}

	if err := s.DB().QueryRow(`SELECT status FROM sync_state WHERE entity_type = 'taxes'`).Scan(&status); err != nil {
		t.Fatalf("querying sync_state: %v", err)
	}
	if status != "SUCCESS" {
		t.Fatalf("got taxes sync_state status %q, want SUCCESS", status)
	}
}

func TestRunCycleAppliesDeletedIDs(t *testing.T) {
	callCount := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/hub/sync/categories", func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.Header().Set("Content-Type", "application/json")
		if callCount == 1 {
			_, _ = w.Write([]byte(`{"items":[{"id":"cat-1","name":"Drinks","sortOrder":1,"version":1}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[],"deletedIds":["cat-1"]}`))
	})
	mux.HandleFunc("/api/hub/sync/taxes", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	mux.HandleFunc("/api/hub/sync/products", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	mux.HandleFunc("/api/hub/sync/customers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	mux.HandleFunc("/api/hub/sync/pizza_size_prices", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := openTestStore(t)
	e := New(s, cloudclient.New(fixedCreds{baseURL: srv.URL}), testLogger(), 0)

	e.RunCycle(context.Background())
	e.RunCycle(context.Background())

	var count int
	if err := s.DB().QueryRow(`SELECT count(*) FROM categories WHERE id = 'cat-1'`).Scan(&count); err != nil {
		t.Fatalf("querying categories: %v", err)
	}
	if count != 0 {
		t.Fatalf("got %d rows for cat-1 after deletedIds, want 0", count)
	}
}

func TestResetCursorClearsSinceVersion(t *testing.T) {
	mux := http.NewServeMux()
	var sawSinceVersion bool
	mux.HandleFunc("/api/hub/sync/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			sawSinceVersion = true
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	mux.HandleFunc("/api/hub/sync/taxes", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	mux.HandleFunc("/api/hub/sync/products", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	mux.HandleFunc("/api/hub/sync/customers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	mux.HandleFunc("/api/hub/sync/pizza_size_prices", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := openTestStore(t)
	e := New(s, cloudclient.New(fixedCreds{baseURL: srv.URL}), testLogger(), 0)

	e.RunCycle(context.Background())
	if sawSinceVersion {
		t.Fatalf("first cycle should not have sent sinceVersion yet")
	}

	e.RunCycle(context.Background())
	if !sawSinceVersion {
		t.Fatalf("second cycle should have sent sinceVersion from the prior cycle's timestamp")
	}

	if err := ResetCursor(context.Background(), s, "categories"); err != nil {
		t.Fatalf("ResetCursor() error = %v", err)
	}

	sawSinceVersion = false
	e.RunCycle(context.Background())
	if sawSinceVersion {
		t.Fatalf("cycle after ResetCursor should not have sent sinceVersion")
	}
}

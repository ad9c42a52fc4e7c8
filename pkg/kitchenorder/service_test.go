package kitchenorder

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/emberline/hubd/internal/store"
)

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

func sampleCreate() CreateRequest {
	return CreateRequest{
		Station: "grill",
		Items:   []ItemRequest{{ProductID: "p1", Quantity: 2}},
	}
}

func TestCreateStartsInPending(t *testing.T) {
	s := openTestStore(t)
	svc := NewService(s, nil)

	resp, err := svc.Create(context.Background(), sampleCreate())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if resp.Status != StatusPending {
		t.Fatalf("status = %q, want PENDING", resp.Status)
	}

	var itemCount int
	_ = s.DB().QueryRow(`SELECT count(*) FROM kitchen_order_items WHERE kitchen_order_id = ?`, resp.ID).Scan(&itemCount)
	if itemCount != 1 {
		t.Fatalf("itemCount = %d, want 1", itemCount)
	}
}

func TestBumpLifecycleThreeTimesThenFails(t *testing.T) {
	s := openTestStore(t)
	svc := NewService(s, nil)

	created, err := svc.Create(context.Background(), sampleCreate())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	wantStatuses := []string{StatusPreparing, StatusReady, StatusCompleted}
	for i, want := range wantStatuses {
		bump, err := svc.Bump(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("Bump() #%d error = %v", i+1, err)
		}
		if !bump.Success || bump.Status != want {
			t.Fatalf("Bump() #%d = %+v, want success with status %q", i+1, bump, want)
		}
	}

	fourth, err := svc.Bump(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("fourth Bump() error = %v", err)
	}
	if fourth.Success {
		t.Fatalf("fourth Bump() succeeded, want success=false at terminal state")
	}

	final, err := svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if final.Status != StatusCompleted {
		t.Fatalf("final status = %q, want COMPLETED", final.Status)
	}
	if final.FiredAt == nil || final.ReadyAt == nil || final.CompletedAt == nil {
		t.Fatalf("final response missing timestamps: %+v", final)
	}
}

func TestEachTransitionProducesOneOutboxRow(t *testing.T) {
	s := openTestStore(t)
	svc := NewService(s, nil)

	created, err := svc.Create(context.Background(), sampleCreate())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var afterCreate int
	_ = s.DB().QueryRow(`SELECT count(*) FROM outbox_queue WHERE entity_id = ?`, created.ID).Scan(&afterCreate)
	if afterCreate != 1 {
		t.Fatalf("outbox rows after create = %d, want 1", afterCreate)
	}

	if _, err := svc.Bump(context.Background(), created.ID); err != nil {
		t.Fatalf("Bump() error = %v", err)
	}

	var afterBump int
	_ = s.DB().QueryRow(`SELECT count(*) FROM outbox_queue WHERE entity_id = ?`, created.ID).Scan(&afterBump)
	if afterBump != 2 {
		t.Fatalf("outbox rows after one bump = %d, want 2", afterBump)
	}
}

func TestBumpUnknownIDReturnsFailureNotError(t *testing.T) {
	s := openTestStore(t)
	svc := NewService(s, nil)

	resp, err := svc.Bump(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("Bump() error = %v, want nil", err)
	}
	if resp.Success {
		t.Fatalf("Bump() on unknown id succeeded, want success=false")
	}
}

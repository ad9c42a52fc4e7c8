package sales

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/emberline/hubd/internal/outbox"
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

func sampleRequest() CreateRequest {
	return CreateRequest{
		OrderType: "DINE_IN",
		Items: []ItemRequest{
			{ProductID: "p1", Quantity: 1, UnitPrice: 1000},
		},
		Payments: []PaymentRequest{
			{Method: "CASH", Amount: 1000},
		},
	}
}

func TestCreateWritesSaleItemsPaymentsAndOneOutboxRow(t *testing.T) {
	s := openTestStore(t)
	svc := NewService(s, nil)

	resp, err := svc.Create(context.Background(), sampleRequest(), "staff-1", "term-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if resp.Status != "COMPLETED" {
		t.Fatalf("status = %q, want COMPLETED", resp.Status)
	}
	if resp.Total != 1000 {
		t.Fatalf("total = %d, want 1000", resp.Total)
	}

	var saleCount, itemCount, paymentCount int
	_ = s.DB().QueryRow(`SELECT count(*) FROM sales WHERE id = ?`, resp.ID).Scan(&saleCount)
	_ = s.DB().QueryRow(`SELECT count(*) FROM sale_items WHERE sale_id = ?`, resp.ID).Scan(&itemCount)
	_ = s.DB().QueryRow(`SELECT count(*) FROM payments WHERE sale_id = ?`, resp.ID).Scan(&paymentCount)
	if saleCount != 1 || itemCount != 1 || paymentCount != 1 {
		t.Fatalf("saleCount=%d itemCount=%d paymentCount=%d, want 1/1/1", saleCount, itemCount, paymentCount)
	}

	var outboxCount int
	var entityType, action, status string
	err = s.DB().QueryRow(`
		SELECT count(*), entity_type, operation, status FROM outbox_queue WHERE entity_id = ?
		GROUP BY entity_type, operation, status
	`, resp.ID).Scan(&outboxCount, &entityType, &action, &status)
	if err != nil {
		t.Fatalf("querying outbox row: %v", err)
	}
	if outboxCount != 1 {
		t.Fatalf("outbox row count = %d, want 1", outboxCount)
	}
	if entityType != "sale" || action != "create" || status != string(outbox.StatusPending) {
		t.Fatalf("outbox row = (%s,%s,%s), want (sale,create,PENDING)", entityType, action, status)
	}
}

func TestReceiptNumberFormat(t *testing.T) {
	s := openTestStore(t)
	svc := NewService(s, nil)

	resp, err := svc.Create(context.Background(), sampleRequest(), "staff-1", "term-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	want := "-0001"
	if len(resp.ReceiptNumber) < len(want) || resp.ReceiptNumber[len(resp.ReceiptNumber)-len(want):] != want {
		t.Fatalf("receiptNumber = %q, want suffix %q", resp.ReceiptNumber, want)
	}

	resp2, err := svc.Create(context.Background(), sampleRequest(), "staff-1", "term-1")
	if err != nil {
		t.Fatalf("second Create() error = %v", err)
	}
	if resp2.ReceiptNumber == resp.ReceiptNumber {
		t.Fatalf("second sale reused receipt number %q", resp2.ReceiptNumber)
	}
}

func TestGetReturnsNotFoundForUnknownID(t *testing.T) {
	s := openTestStore(t)
	svc := NewService(s, nil)

	_, err := svc.Get(context.Background(), "does-not-exist")
	if err != ErrNotFound {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestListOrdersByMostRecentAndPaginates(t *testing.T) {
	s := openTestStore(t)
	svc := NewService(s, nil)

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(context.Background(), sampleRequest(), "staff-1", "term-1"); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	items, total, err := svc.List(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
}

func TestOutboxPayloadCarriesItemsAndPayments(t *testing.T) {
	s := openTestStore(t)
	svc := NewService(s, nil)

	resp, err := svc.Create(context.Background(), sampleRequest(), "staff-1", "term-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var raw string
	if err := s.DB().QueryRow(`SELECT payload FROM outbox_queue WHERE entity_id = ?`, resp.ID).Scan(&raw); err != nil {
		t.Fatalf("querying outbox payload: %v", err)
	}

	var payload outboxPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("unmarshaling payload: %v", err)
	}
	if len(payload.Items) != 1 || len(payload.Payments) != 1 {
		t.Fatalf("payload items=%d payments=%d, want 1/1", len(payload.Items), len(payload.Payments))
	}
	if payload.StaffID != "staff-1" || payload.TerminalID != "term-1" {
		t.Fatalf("payload staffId/terminalId = %s/%s, want staff-1/term-1", payload.StaffID, payload.TerminalID)
	}
}

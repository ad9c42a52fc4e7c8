package sales

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emberline/hubd/internal/outbox"
	"github.com/emberline/hubd/internal/realtime"
	"github.com/emberline/hubd/internal/store"
)

// Service implements the sale-creation write path against the store.
type Service struct {
	store *store.Store
	hub   *realtime.Hub
}

// NewService creates a sales Service.
func NewService(s *store.Store, hub *realtime.Hub) *Service {
	return &Service{store: s, hub: hub}
}

// ErrNotFound is returned when a sale id has no matching row.
var ErrNotFound = fmt.Errorf("sale not found")

// Create writes a sale, its items and payments, and an outbox row in one
// transaction, then — only once that transaction has committed — broadcasts
// the new sale to realtime peers. A rollback of the business write rolls
// back the outbox row with it, and never reaches the broadcast at all.
func (s *Service) Create(ctx context.Context, req CreateRequest, staffID, terminalID string) (Response, error) {
	var subtotal, taxTotal int64
	for _, item := range req.Items {
		subtotal += int64(item.Quantity) * item.UnitPrice
	}
	total := subtotal + taxTotal

	id := store.NewID()
	now := time.Now().UTC()

	var receiptNumber string
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		receiptNumber, err = store.NextReceiptNumber(ctx, tx, now)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO sales
				(id, receipt_number, order_type, customer_id, staff_id, terminal_id, subtotal, tax_total, total, status)
			VALUES (?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, 'COMPLETED')
		`, id, receiptNumber, req.OrderType, req.CustomerID, staffID, terminalID, subtotal, taxTotal, total)
		if err != nil {
			return fmt.Errorf("inserting sale: %w", err)
		}

		for _, item := range req.Items {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO sale_items (id, sale_id, product_id, quantity, unit_price, tax_id, notes)
				VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''))
			`, store.NewID(), id, item.ProductID, item.Quantity, item.UnitPrice, item.TaxID, item.Notes)
			if err != nil {
				return fmt.Errorf("inserting sale item: %w", err)
			}
		}

		for _, p := range req.Payments {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO payments (id, sale_id, method, amount)
				VALUES (?, ?, ?, ?)
			`, store.NewID(), id, p.Method, p.Amount)
			if err != nil {
				return fmt.Errorf("inserting payment: %w", err)
			}
		}

		payload, err := json.Marshal(outboxPayload{
			ID:            id,
			ReceiptNumber: receiptNumber,
			OrderType:     req.OrderType,
			CustomerID:    req.CustomerID,
			StaffID:       staffID,
			TerminalID:    terminalID,
			Subtotal:      subtotal,
			TaxTotal:      taxTotal,
			Total:         total,
			Items:         req.Items,
			Payments:      req.Payments,
			CreatedAt:     now,
		})
		if err != nil {
			return fmt.Errorf("marshaling outbox payload: %w", err)
		}

		item := outbox.NewItem("sale", id, "create", payload, outbox.PrioritySaleOrRefund)
		if err := outbox.Enqueue(ctx, tx, item); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return Response{}, err
	}

	resp := Response{
		ID:            id,
		ReceiptNumber: receiptNumber,
		OrderType:     req.OrderType,
		Status:        "COMPLETED",
		Subtotal:      subtotal,
		TaxTotal:      taxTotal,
		Total:         total,
		CreatedAt:     now,
	}

	if s.hub != nil {
		s.hub.Broadcast("sale:created", resp, nil)
	}

	return resp, nil
}

// Get fetches a single sale by id.
func (s *Service) Get(ctx context.Context, id string) (Response, error) {
	var resp Response
	var createdAt string
	err := s.store.DB().QueryRowContext(ctx, `
		SELECT id, receipt_number, order_type, status, subtotal, tax_total, total, created_at
		FROM sales WHERE id = ?
	`, id).Scan(&resp.ID, &resp.ReceiptNumber, &resp.OrderType, &resp.Status, &resp.Subtotal, &resp.TaxTotal, &resp.Total, &createdAt)
	if err == sql.ErrNoRows {
		return Response{}, ErrNotFound
	}
	if err != nil {
		return Response{}, fmt.Errorf("querying sale: %w", err)
	}
	resp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return resp, nil
}

// List returns a page of sales ordered by most recently created.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Response, int, error) {
	var total int
	if err := s.store.DB().QueryRowContext(ctx, `SELECT count(*) FROM sales`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting sales: %w", err)
	}

	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT id, receipt_number, order_type, status, subtotal, tax_total, total, created_at
		FROM sales ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing sales: %w", err)
	}
	defer rows.Close()

	var out []Response
	for rows.Next() {
		var resp Response
		var createdAt string
		if err := rows.Scan(&resp.ID, &resp.ReceiptNumber, &resp.OrderType, &resp.Status, &resp.Subtotal, &resp.TaxTotal, &resp.Total, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("scanning sale row: %w", err)
		}
		resp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, resp)
	}
	return out, total, rows.Err()
}

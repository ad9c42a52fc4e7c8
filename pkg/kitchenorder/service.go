package kitchenorder

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

// Service implements the kitchen order create and bump write paths.
type Service struct {
	store *store.Store
	hub   *realtime.Hub
}

// NewService creates a kitchen order Service.
func NewService(s *store.Store, hub *realtime.Hub) *Service {
	return &Service{store: s, hub: hub}
}

// ErrNotFound is returned when a kitchen order id has no matching row.
var ErrNotFound = fmt.Errorf("kitchen order not found")

// Create writes a new PENDING kitchen order and its items in one
// transaction with an outbox row, then broadcasts order:created to
// kitchen-display peers once that transaction has committed.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Response, error) {
	station := req.Station
	if station == "" {
		station = "main"
	}

	id := store.NewID()
	now := time.Now().UTC()

	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kitchen_orders (id, sale_id, station, status)
			VALUES (?, NULLIF(?, ''), ?, ?)
		`, id, req.SaleID, station, StatusPending)
		if err != nil {
			return fmt.Errorf("inserting kitchen order: %w", err)
		}

		for _, item := range req.Items {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO kitchen_order_items (id, kitchen_order_id, product_id, quantity, notes)
				VALUES (?, ?, ?, ?, NULLIF(?, ''))
			`, store.NewID(), id, item.ProductID, item.Quantity, item.Notes)
			if err != nil {
				return fmt.Errorf("inserting kitchen order item: %w", err)
			}
		}

		payload, err := json.Marshal(outboxPayload{
			ID: id, SaleID: req.SaleID, Station: station, Status: StatusPending,
			Items: req.Items, UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("marshaling outbox payload: %w", err)
		}

		item := outbox.NewItem("kitchen_order", id, "create", payload, outbox.PriorityDefault)
		return outbox.Enqueue(ctx, tx, item)
	})
	if err != nil {
		return Response{}, err
	}

	resp := Response{ID: id, SaleID: req.SaleID, Station: station, Status: StatusPending, CreatedAt: now}

	if s.hub != nil {
		s.hub.Broadcast("order:created", resp, &realtime.BroadcastFilter{Role: realtime.RoleKDS})
	}

	return resp, nil
}

// Bump advances status one step in the PENDING -> PREPARING -> READY ->
// COMPLETED lifecycle. Bumping an order already at COMPLETED (or an order
// that doesn't exist) returns success=false without error — a bump past
// the terminal state is a normal UI race, not a server fault.
func (s *Service) Bump(ctx context.Context, id string) (BumpResponse, error) {
	var resp Response
	var outcome BumpResponse

	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		row, err := s.loadForUpdate(ctx, tx, id)
		if err == sql.ErrNoRows {
			outcome = BumpResponse{Success: false}
			return nil
		}
		if err != nil {
			return err
		}

		next, ok := nextStatus[row.Status]
		if !ok {
			outcome = BumpResponse{Success: false}
			return nil
		}

		now := time.Now().UTC()
		var setClause string
		switch next {
		case StatusPreparing:
			setClause = "fired_at = ?"
		case StatusReady:
			setClause = "ready_at = ?"
		case StatusCompleted:
			setClause = "completed_at = ?"
		}

		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE kitchen_orders SET status = ?, %s, updated_at = ? WHERE id = ?
		`, setClause), next, formatTime(now), formatTime(now), id)
		if err != nil {
			return fmt.Errorf("updating kitchen order status: %w", err)
		}

		payload, err := json.Marshal(outboxPayload{
			ID: id, SaleID: row.SaleID, Station: row.Station, Status: next, UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("marshaling outbox payload: %w", err)
		}

		outboxItem := outbox.NewItem("kitchen_order", id, "update", payload, outbox.PriorityDefault)
		if err := outbox.Enqueue(ctx, tx, outboxItem); err != nil {
			return err
		}

		resp = Response{ID: id, SaleID: row.SaleID, Station: row.Station, Status: next, CreatedAt: row.CreatedAt}
		outcome = BumpResponse{Success: true, Status: next}
		return nil
	})
	if err != nil {
		return BumpResponse{}, err
	}

	if outcome.Success && s.hub != nil {
		s.hub.Broadcast("order:status", resp, &realtime.BroadcastFilter{Role: realtime.RoleKDS})
	}

	return outcome, nil
}

type orderRow struct {
	Status    string
	SaleID    string
	Station   string
	CreatedAt time.Time
}

func (s *Service) loadForUpdate(ctx context.Context, tx *sql.Tx, id string) (orderRow, error) {
	var row orderRow
	var saleID sql.NullString
	var createdAt string
	err := tx.QueryRowContext(ctx, `
		SELECT status, sale_id, station, created_at FROM kitchen_orders WHERE id = ?
	`, id).Scan(&row.Status, &saleID, &row.Station, &createdAt)
	if err != nil {
		return orderRow{}, err
	}
	row.SaleID = saleID.String
	row.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return row, nil
}

// Get fetches a single kitchen order by id.
func (s *Service) Get(ctx context.Context, id string) (Response, error) {
	var resp Response
	var saleID sql.NullString
	var firedAt, readyAt, completedAt sql.NullString
	var createdAt string

	err := s.store.DB().QueryRowContext(ctx, `
		SELECT id, sale_id, station, status, fired_at, ready_at, completed_at, created_at
		FROM kitchen_orders WHERE id = ?
	`, id).Scan(&resp.ID, &saleID, &resp.Station, &resp.Status, &firedAt, &readyAt, &completedAt, &createdAt)
	if err == sql.ErrNoRows {
		return Response{}, ErrNotFound
	}
	if err != nil {
		return Response{}, fmt.Errorf("querying kitchen order: %w", err)
	}

	resp.SaleID = saleID.String
	resp.FiredAt = parseNullableTime(firedAt)
	resp.ReadyAt = parseNullableTime(readyAt)
	resp.CompletedAt = parseNullableTime(completedAt)
	resp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return resp, nil
}

func parseNullableTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

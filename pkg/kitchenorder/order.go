// Package kitchenorder implements the kitchen display bump lifecycle:
// PENDING -> PREPARING -> READY -> COMPLETED, each transition enqueueing
// one outbox row and broadcasting one order:status event to kds-role
// realtime peers after the transition commits.
package kitchenorder

import "time"

// Status values, in lifecycle order. A bump advances exactly one step;
// bumping a COMPLETED order fails.
const (
	StatusPending   = "PENDING"
	StatusPreparing = "PREPARING"
	StatusReady     = "READY"
	StatusCompleted = "COMPLETED"
)

var nextStatus = map[string]string{
	StatusPending:   StatusPreparing,
	StatusPreparing: StatusReady,
	StatusReady:     StatusCompleted,
}

// ItemRequest is one item on a kitchen order.
type ItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
	Notes     string `json:"notes"`
}

// CreateRequest is the JSON body for POST /api/kitchen-orders.
type CreateRequest struct {
	SaleID  string        `json:"saleId"`
	Station string        `json:"station"`
	Items   []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

// Response is the JSON response for a kitchen order.
type Response struct {
	ID          string     `json:"id"`
	SaleID      string     `json:"saleId,omitempty"`
	Station     string     `json:"station"`
	Status      string     `json:"status"`
	FiredAt     *time.Time `json:"firedAt,omitempty"`
	ReadyAt     *time.Time `json:"readyAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// BumpResponse is the JSON response for POST /api/kitchen-orders/:id/bump.
type BumpResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
}

type outboxPayload struct {
	ID        string        `json:"id"`
	SaleID    string        `json:"saleId,omitempty"`
	Station   string        `json:"station"`
	Status    string        `json:"status"`
	Items     []ItemRequest `json:"items,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

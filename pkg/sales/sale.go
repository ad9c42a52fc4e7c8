// Package sales implements the hub's sale-creation write path: a single
// atomic transaction that writes the sale, its line items and payments,
// mints the receipt number, and enqueues one outbox row — the concrete
// realization of the create-plus-outbox pattern every locally originated
// transactional entity follows.
package sales

import "time"

// ItemRequest is one line item on a sale.
type ItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
	UnitPrice int64  `json:"unitPrice" validate:"min=0"`
	TaxID     string `json:"taxId"`
	Notes     string `json:"notes"`
}

// PaymentRequest is one tender applied to a sale.
type PaymentRequest struct {
	Method string `json:"method" validate:"required,oneof=CASH CARD GIFT_CARD STORE_CREDIT OTHER"`
	Amount int64  `json:"amount" validate:"min=0"`
}

// CreateRequest is the JSON body for POST /api/sales.
type CreateRequest struct {
	OrderType  string           `json:"orderType" validate:"required,oneof=DINE_IN TAKEOUT DELIVERY"`
	CustomerID string           `json:"customerId"`
	Items      []ItemRequest    `json:"items" validate:"required,min=1,dive"`
	Payments   []PaymentRequest `json:"payments" validate:"required,min=1,dive"`
}

// Response is the JSON response for a created or fetched sale.
type Response struct {
	ID            string    `json:"id"`
	ReceiptNumber string    `json:"receiptNumber"`
	OrderType     string    `json:"orderType"`
	Status        string    `json:"status"`
	Subtotal      int64     `json:"subtotal"`
	TaxTotal      int64     `json:"taxTotal"`
	Total         int64     `json:"total"`
	CreatedAt     time.Time `json:"createdAt"`
}

// outboxPayload is the JSON blob handed to the push engine for a sale
// create event — enough for the cloud to reconstruct the sale without a
// follow-up read.
type outboxPayload struct {
	ID            string           `json:"id"`
	ReceiptNumber string           `json:"receiptNumber"`
	OrderType     string           `json:"orderType"`
	CustomerID    string           `json:"customerId,omitempty"`
	StaffID       string           `json:"staffId"`
	TerminalID    string           `json:"terminalId"`
	Subtotal      int64            `json:"subtotal"`
	TaxTotal      int64            `json:"taxTotal"`
	Total         int64            `json:"total"`
	Items         []ItemRequest    `json:"items"`
	Payments      []PaymentRequest `json:"payments"`
	CreatedAt     time.Time        `json:"createdAt"`
}

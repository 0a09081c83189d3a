package orders

import (
	"errors"
	"strings"
	"time"

	"github.com/signalworks/storefront/internal/shared"
)

// ErrDuplicatePayment is returned by the repository when the gateway
// payment id is already recorded.
var ErrDuplicatePayment = errors.New("payment already recorded")

// PaymentStatus tracks settlement of the order payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// OrderStatus tracks fulfillment progress.
type OrderStatus string

const (
	OrderProcessing     OrderStatus = "processing"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderShipped        OrderStatus = "shipped"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
	OrderReturned       OrderStatus = "returned"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderProcessing, OrderConfirmed, OrderShipped, OrderOutForDelivery, OrderDelivered, OrderCancelled, OrderReturned:
		return true
	}
	return false
}

// ShippingAddress is the order's delivery address.
type ShippingAddress struct {
	FullName     string `json:"full_name" validate:"required,max=200"`
	Phone        string `json:"phone" validate:"required,max=32"`
	AddressLine1 string `json:"address_line1" validate:"required,max=200"`
	AddressLine2 string `json:"address_line2,omitempty" validate:"max=200"`
	City         string `json:"city" validate:"required,max=100"`
	State        string `json:"state" validate:"required,max=100"`
	PostalCode   string `json:"postal_code" validate:"required,max=16"`
	Country      string `json:"country" validate:"required,max=64"`
}

func (a *ShippingAddress) normalize() {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Phone = strings.TrimSpace(a.Phone)
	a.AddressLine1 = strings.TrimSpace(a.AddressLine1)
	a.AddressLine2 = strings.TrimSpace(a.AddressLine2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
}

// Lines renders the address for documents.
func (a ShippingAddress) Lines() []string {
	lines := []string{a.FullName, a.AddressLine1}
	if a.AddressLine2 != "" {
		lines = append(lines, a.AddressLine2)
	}
	return append(lines, a.City+", "+a.State+" "+a.PostalCode, a.Country)
}

// LineItem snapshots a purchased product.
type LineItem struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	ImageURL  string  `json:"image_url,omitempty"`
}

// Order is a paid purchase.
type Order struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	LineItems         []LineItem      `json:"line_items"`
	TotalAmount       float64         `json:"total_amount"`
	ShippingAddress   ShippingAddress `json:"shipping_address"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	OrderStatus       OrderStatus     `json:"order_status"`
	GatewayOrderID    string          `json:"gateway_order_id"`
	GatewayPaymentID  string          `json:"gateway_payment_id"`
	GatewaySignature  string          `json:"-"`
	InvoiceURL        *string         `json:"invoice_url,omitempty"`
	QuoteID           *string         `json:"quote_id,omitempty"`
	TrackingNumber    *string         `json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery,omitempty"`
	DeliveredAt       *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// VisibleTo reports whether the actor may read the order.
func (o *Order) VisibleTo(actor *shared.Actor) bool {
	return actor.IsStaff() || (actor.IsUser() && actor.UserID == o.UserID)
}

// StockLevel is a product's stock after a committed decrement.
type StockLevel struct {
	ProductID string
	Stock     int
}

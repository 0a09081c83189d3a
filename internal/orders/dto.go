package orders

import (
	"strings"
	"time"
)

// PlaceOrderRequest is the client's post-payment checkout call.
type PlaceOrderRequest struct {
	GatewayOrderID   string          `json:"gateway_order_id" validate:"required"`
	GatewayPaymentID string          `json:"gateway_payment_id" validate:"required"`
	GatewaySignature string          `json:"gateway_signature" validate:"required"`
	Items            []ItemInput     `json:"items" validate:"dive"`
	TotalAmount      float64         `json:"total_amount" validate:"gte=0"`
	ShippingAddress  ShippingAddress `json:"shipping_address"`
	QuoteID          *string         `json:"quote_id"`
}

// ItemInput requests a product quantity on the cart path.
type ItemInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

func (r *PlaceOrderRequest) normalize() {
	r.GatewayOrderID = strings.TrimSpace(r.GatewayOrderID)
	r.GatewayPaymentID = strings.TrimSpace(r.GatewayPaymentID)
	r.GatewaySignature = strings.TrimSpace(r.GatewaySignature)
	r.ShippingAddress.normalize()
	for i := range r.Items {
		r.Items[i].ProductID = strings.TrimSpace(r.Items[i].ProductID)
	}
	if r.QuoteID != nil {
		id := strings.TrimSpace(*r.QuoteID)
		if id == "" {
			r.QuoteID = nil
		} else {
			r.QuoteID = &id
		}
	}
}

// FulfillmentUpdate carries staff changes to shipping progress. Nil fields
// are left unchanged.
type FulfillmentUpdate struct {
	OrderStatus       *OrderStatus `json:"order_status"`
	TrackingNumber    *string      `json:"tracking_number"`
	EstimatedDelivery *time.Time   `json:"estimated_delivery"`
	DeliveredAt       *time.Time   `json:"delivered_at"`
}

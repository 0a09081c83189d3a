package quotes

import (
	"strings"
	"time"

	"github.com/signalworks/storefront/internal/shared"
)

// Status enumerates the quote lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusQuoted   Status = "quoted"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
	StatusOrdered  Status = "ordered"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusQuoted, StatusAccepted, StatusRejected, StatusExpired, StatusOrdered:
		return true
	}
	return false
}

// Terminal reports whether a buyer can no longer act on the quote.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusExpired || s == StatusOrdered
}

// ConversationStatus gates buyer messaging.
type ConversationStatus string

const (
	ConversationOpen   ConversationStatus = "open"
	ConversationClosed ConversationStatus = "closed"
)

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAdmin Sender = "admin"
)

// Buyer is the contact captured at request time.
type Buyer struct {
	FullName    string  `json:"full_name"`
	Email       string  `json:"email"`
	Mobile      string  `json:"mobile"`
	CompanyName *string `json:"company_name,omitempty"`
}

// Address is the delivery address captured at request time.
type Address struct {
	HouseFlat  string  `json:"house_flat"`
	StreetArea string  `json:"street_area"`
	Landmark   *string `json:"landmark,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	Pincode    string  `json:"pincode"`
}

// LineItem snapshots a product at request time.
type LineItem struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	ImageURL  string  `json:"image_url,omitempty"`
}

// Message is one entry of the negotiation thread.
type Message struct {
	Sender     Sender    `json:"sender"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Quote is a buyer's price negotiation request.
type Quote struct {
	ID                 string             `json:"id"`
	Buyer              Buyer              `json:"buyer"`
	Address            Address            `json:"address"`
	LineItems          []LineItem         `json:"line_items"`
	OriginalTotal      float64            `json:"original_total"`
	QuotedTotal        *float64           `json:"quoted_total,omitempty"`
	DiscountPercentage *float64           `json:"discount_percentage,omitempty"`
	Status             Status             `json:"status"`
	ConversationStatus ConversationStatus `json:"conversation_status"`
	ValidUntil         *time.Time         `json:"valid_until,omitempty"`
	AdminNotes         *string            `json:"admin_notes,omitempty"`
	UserMessage        *string            `json:"user_message,omitempty"`
	UserID             *string            `json:"user_id,omitempty"`
	OrderID            *string            `json:"order_id,omitempty"`
	Messages           []Message          `json:"messages"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// EffectiveStatus reports expired for a quoted quote whose validity has
// lapsed. Nothing is written; expiry is enforced when the buyer accepts.
func (q *Quote) EffectiveStatus(now time.Time) Status {
	if q.Status == StatusQuoted && q.expiredAt(now) {
		return StatusExpired
	}
	return q.Status
}

func (q *Quote) expiredAt(now time.Time) bool {
	return q.ValidUntil != nil && now.After(*q.ValidUntil)
}

// OwnedBy reports whether the registered actor created the quote.
func (q *Quote) OwnedBy(actor *shared.Actor) bool {
	return actor.IsUser() && q.UserID != nil && *q.UserID == actor.UserID
}

// EmailMatches compares a guest's asserted email with the buyer email.
func (q *Quote) EmailMatches(email string) bool {
	email = normalizeEmail(email)
	return email != "" && email == normalizeEmail(q.Buyer.Email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

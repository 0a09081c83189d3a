package quotes

import (
	"strings"

	"github.com/signalworks/storefront/internal/shared"
)

// CreateQuoteRequest is the buyer's quote submission.
type CreateQuoteRequest struct {
	Buyer       BuyerInput   `json:"buyer"`
	Address     AddressInput `json:"address"`
	Items       []ItemInput  `json:"items" validate:"required,min=1,dive"`
	UserMessage *string      `json:"user_message" validate:"omitempty,max=4000"`
}

// BuyerInput is the contact block of CreateQuoteRequest.
type BuyerInput struct {
	FullName    string  `json:"full_name" validate:"required,max=200"`
	Email       string  `json:"email" validate:"required,email,max=254"`
	Mobile      string  `json:"mobile" validate:"required,max=32"`
	CompanyName *string `json:"company_name" validate:"omitempty,max=200"`
}

// AddressInput is the address block of CreateQuoteRequest.
type AddressInput struct {
	HouseFlat  string  `json:"house_flat" validate:"required,max=200"`
	StreetArea string  `json:"street_area" validate:"required,max=200"`
	Landmark   *string `json:"landmark" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=100"`
	State      string  `json:"state" validate:"required,max=100"`
	Pincode    string  `json:"pincode" validate:"required,max=16"`
}

// ItemInput requests a product quantity.
type ItemInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

func (r *CreateQuoteRequest) normalize() {
	r.Buyer.FullName = strings.TrimSpace(r.Buyer.FullName)
	r.Buyer.Email = normalizeEmail(r.Buyer.Email)
	r.Buyer.Mobile = strings.TrimSpace(r.Buyer.Mobile)
	r.Buyer.CompanyName = trimOptional(r.Buyer.CompanyName)
	r.Address.HouseFlat = strings.TrimSpace(r.Address.HouseFlat)
	r.Address.StreetArea = strings.TrimSpace(r.Address.StreetArea)
	r.Address.Landmark = trimOptional(r.Address.Landmark)
	r.Address.City = strings.TrimSpace(r.Address.City)
	r.Address.State = strings.TrimSpace(r.Address.State)
	r.Address.Pincode = strings.TrimSpace(r.Address.Pincode)
	r.UserMessage = trimOptional(r.UserMessage)
	for i := range r.Items {
		r.Items[i].ProductID = strings.TrimSpace(r.Items[i].ProductID)
	}
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// ListFilter narrows staff listings.
type ListFilter struct {
	Status *Status
	shared.Pagination
}

type statusRequest struct {
	Status Status `json:"status"`
}

type rejectRequest struct {
	AdminNotes *string `json:"admin_notes"`
}

type messageRequest struct {
	Content string `json:"content"`
}

type conversationRequest struct {
	Status ConversationStatus `json:"status"`
}

type guestRequest struct {
	Email string `json:"email"`
}

type guestStatusRequest struct {
	Email  string `json:"email"`
	Status Status `json:"status"`
}

type guestMessageRequest struct {
	Email   string `json:"email"`
	Content string `json:"content"`
}

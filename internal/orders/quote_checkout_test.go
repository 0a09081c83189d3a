package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/signalworks/storefront/internal/quotes"
)

type QuoteCheckoutSuite struct {
	suite.Suite
	f *fixture
}

func (s *QuoteCheckoutSuite) SetupTest() {
	s.f = newFixture(s.T())
	antenna := s.f.store.products["antenna"]
	antenna.Stock = 3
	s.f.store.products["antenna"] = antenna

	items := []quotes.LineItem{
		{ProductID: "radio", Title: "Tactical Radio", UnitPrice: 1500, Quantity: 1},
		{ProductID: "antenna", Title: "HF Antenna", UnitPrice: 500, Quantity: 1},
	}
	original := quotes.OriginalTotal(items)
	discount := 10.0
	quoted, pct, err := quotes.ResolvePrice(original, quotes.PriceInput{DiscountPercentage: &discount})
	s.Require().NoError(err)
	s.Require().Equal(2000.0, original)
	s.Require().Equal(1800.0, quoted)

	owner := buyer.UserID
	s.f.store.quotes["q-1"] = &quotes.Quote{
		ID:                 "q-1",
		Buyer:              quotes.Buyer{FullName: "Asha Rao", Email: buyer.Email},
		LineItems:          items,
		OriginalTotal:      original,
		QuotedTotal:        &quoted,
		DiscountPercentage: &pct,
		Status:             quotes.StatusAccepted,
		UserID:             &owner,
	}
}

func (s *QuoteCheckoutSuite) place(paymentID string, total float64) (*Order, error) {
	req := s.f.request(paymentID, total)
	id := "q-1"
	req.QuoteID = &id
	return s.f.svc.VerifyAndPlaceOrder(context.Background(), req, buyer)
}

func (s *QuoteCheckoutSuite) TestDiscountedQuoteBecomesOrder() {
	order, err := s.place("pay_q1", 1800)
	s.Require().NoError(err)

	s.Equal(1800.0, order.TotalAmount)
	s.Require().NotNil(order.QuoteID)
	s.Equal("q-1", *order.QuoteID)
	s.Len(order.LineItems, 2)

	q := s.f.store.quote("q-1")
	s.Equal(quotes.StatusOrdered, q.Status)
	s.Require().NotNil(q.OrderID)
	s.Equal(order.ID, *q.OrderID)
	s.Equal(4, s.f.store.stockOf("radio"))
	s.Equal(2, s.f.store.stockOf("antenna"))

	s.Require().Len(s.f.invoices.docs, 1)
	doc := s.f.invoices.docs[0]
	s.Equal("q-1", doc.QuoteID)
	s.Equal(2000.0, doc.Subtotal())
	s.Equal(-200.0, doc.Adjustment())
}

func (s *QuoteCheckoutSuite) TestListPriceTotalIsRejected() {
	_, err := s.place("pay_q1", 2000)
	s.Require().Error(err)
	s.Equal(quotes.StatusAccepted, s.f.store.quote("q-1").Status)
	s.Equal(5, s.f.store.stockOf("radio"))
}

func TestQuoteCheckoutSuite(t *testing.T) {
	suite.Run(t, new(QuoteCheckoutSuite))
}

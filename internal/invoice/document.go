package invoice

import "time"

// Document is the data rendered onto an invoice.
type Document struct {
	Number     string
	OrderID    string
	QuoteID    string
	PaymentID  string
	IssuedAt   time.Time
	BuyerName  string
	BuyerEmail string
	BuyerPhone string
	ShipTo     []string
	Lines      []Line
	Total      float64
}

// Subtotal sums the line amounts at list price.
func (d Document) Subtotal() float64 {
	var sum float64
	for _, l := range d.Lines {
		sum += l.Amount()
	}
	return sum
}

// Adjustment is the negotiated difference between Total and Subtotal.
func (d Document) Adjustment() float64 {
	return d.Total - d.Subtotal()
}

// Line is one invoiced product.
type Line struct {
	Title     string
	Quantity  int
	UnitPrice float64
}

// Amount is the extended line price.
func (l Line) Amount() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// NumberFor derives a stable invoice number from the order id and date so
// regenerating an invoice reuses the same file name.
func NumberFor(orderID string, issued time.Time) string {
	short := orderID
	if len(short) > 8 {
		short = short[:8]
	}
	return "INV-" + issued.UTC().Format("20060102") + "-" + short
}

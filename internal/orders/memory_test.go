package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalworks/storefront/internal/catalog"
	"github.com/signalworks/storefront/internal/invoice"
	"github.com/signalworks/storefront/internal/notify"
	"github.com/signalworks/storefront/internal/quotes"
	"github.com/signalworks/storefront/internal/shared"
)

// memoryStore stands in for the orders, products and quotes tables. WithTx
// holds the lock for the whole transaction and applies buffered writes only
// when fn succeeds.
type memoryStore struct {
	mu       sync.Mutex
	orders   map[string]*Order
	products map[string]catalog.Product
	quotes   map[string]*quotes.Quote
	// decrements records DecrementStock calls in call order.
	decrements []string
}

type memoryTx struct {
	store  *memoryStore
	orders map[string]*Order
	stock  map[string]int
	quotes map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		orders:   make(map[string]*Order),
		products: make(map[string]catalog.Product),
		quotes:   make(map[string]*quotes.Quote),
	}
}

func cloneOrder(o *Order) *Order {
	c := *o
	c.LineItems = append([]LineItem(nil), o.LineItems...)
	return &c
}

// WithTx serializes whole transactions under one mutex. It models the
// outcome of the conditional decrement in catalog.DecrementStock and of the
// orders_gateway_payment_id_key constraint, not PostgreSQL row locking.
func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memoryTx{store: s, orders: map[string]*Order{}, stock: map[string]int{}, quotes: map[string]string{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, o := range tx.orders {
		s.orders[id] = o
	}
	for id, stock := range tx.stock {
		p := s.products[id]
		p.Stock = stock
		s.products[id] = p
	}
	for quoteID, orderID := range tx.quotes {
		orderID := orderID
		q := s.quotes[quoteID]
		q.Status = quotes.StatusOrdered
		q.OrderID = &orderID
	}
	return nil
}

func (tx *memoryTx) InsertOrder(_ context.Context, o *Order) error {
	for _, existing := range tx.store.orders {
		if existing.GatewayPaymentID == o.GatewayPaymentID {
			return ErrDuplicatePayment
		}
	}
	tx.orders[o.ID] = cloneOrder(o)
	return nil
}

func (tx *memoryTx) DecrementStock(_ context.Context, productID string, qty int) (int, error) {
	p, ok := tx.store.products[productID]
	if !ok {
		return 0, fmt.Errorf("product %s: %w", productID, shared.ErrNotFound)
	}
	stock, ok := tx.stock[productID]
	if !ok {
		stock = p.Stock
	}
	tx.store.decrements = append(tx.store.decrements, productID)
	if stock < qty {
		return 0, &shared.InsufficientStockError{ProductID: productID, Title: p.Title, Requested: qty, Available: stock}
	}
	tx.stock[productID] = stock - qty
	return stock - qty, nil
}

func (tx *memoryTx) MarkQuoteOrdered(_ context.Context, quoteID, orderID string) error {
	q, ok := tx.store.quotes[quoteID]
	if !ok || q.Status != quotes.StatusAccepted {
		return fmt.Errorf("quote %s is no longer accepted: %w", quoteID, shared.ErrInvalidState)
	}
	if _, taken := tx.quotes[quoteID]; taken {
		return fmt.Errorf("quote %s is no longer accepted: %w", quoteID, shared.ErrInvalidState)
	}
	tx.quotes[quoteID] = orderID
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, shared.ErrNotFound)
	}
	return cloneOrder(o), nil
}

func (s *memoryStore) GetByPaymentID(_ context.Context, paymentID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.GatewayPaymentID == paymentID {
			return cloneOrder(o), nil
		}
	}
	return nil, fmt.Errorf("order: %w", shared.ErrNotFound)
}

func (s *memoryStore) ListByUser(_ context.Context, userID string, _ shared.Pagination) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) ListMissingInvoice(_ context.Context, limit int) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.orders {
		if o.InvoiceURL == nil {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) SetInvoiceURL(_ context.Context, id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("order %s: %w", id, shared.ErrNotFound)
	}
	o.InvoiceURL = &url
	return nil
}

func (s *memoryStore) UpdateFulfillment(_ context.Context, id string, upd FulfillmentUpdate) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, shared.ErrNotFound)
	}
	if upd.OrderStatus != nil {
		o.OrderStatus = *upd.OrderStatus
	}
	if upd.TrackingNumber != nil {
		o.TrackingNumber = upd.TrackingNumber
	}
	if upd.EstimatedDelivery != nil {
		o.EstimatedDelivery = upd.EstimatedDelivery
	}
	if upd.DeliveredAt != nil {
		o.DeliveredAt = upd.DeliveredAt
	}
	return cloneOrder(o), nil
}

func (s *memoryStore) stockOf(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memoryStore) quote(id string) quotes.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.quotes[id]
}

func (s *memoryStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// memoryProducts and memoryQuotes read through the same store so checkout
// sees committed stock and quote status.
type memoryProducts struct{ store *memoryStore }

func (p memoryProducts) Get(_ context.Context, id string) (catalog.Product, error) {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	product, ok := p.store.products[id]
	if !ok {
		return catalog.Product{}, fmt.Errorf("product %s: %w", id, shared.ErrNotFound)
	}
	return product, nil
}

type memoryQuotes struct{ store *memoryStore }

func (q memoryQuotes) Get(_ context.Context, id string) (*quotes.Quote, error) {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	quote, ok := q.store.quotes[id]
	if !ok {
		return nil, fmt.Errorf("quote %s: %w", id, shared.ErrNotFound)
	}
	c := *quote
	return &c, nil
}

type recordingStock struct {
	mu     sync.Mutex
	levels []StockLevel
}

func (r *recordingStock) PublishStockChange(_ context.Context, productID string, stock int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = append(r.levels, StockLevel{ProductID: productID, Stock: stock})
	return nil
}

func (r *recordingStock) published() []StockLevel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StockLevel(nil), r.levels...)
}

type stubInvoices struct {
	mu   sync.Mutex
	fail bool
	docs []invoice.Document
}

func (s *stubInvoices) Generate(_ context.Context, doc invoice.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", errors.New("renderer unavailable")
	}
	s.docs = append(s.docs, doc)
	return "https://files.example.com/invoices/" + doc.Number + ".pdf", nil
}

type recordingRetrier struct {
	mu     sync.Mutex
	orders []string
}

func (r *recordingRetrier) EnqueueInvoiceGenerate(_ context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, orderID)
	return nil
}

type recordingCart struct {
	mu      sync.Mutex
	cleared []string
}

func (c *recordingCart) Clear(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared = append(c.cleared, userID)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, note)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

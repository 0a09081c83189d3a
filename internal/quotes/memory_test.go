package quotes

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/signalworks/storefront/internal/catalog"
	"github.com/signalworks/storefront/internal/notify"
	"github.com/signalworks/storefront/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	quotes map[string]*Quote
}

type memoryTx struct {
	repo    *memoryRepo
	writes  map[string]*Quote
	deletes map[string]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{quotes: make(map[string]*Quote)}
}

func cloneQuote(q *Quote) *Quote {
	c := *q
	c.LineItems = append([]LineItem(nil), q.LineItems...)
	c.Messages = append([]Message{}, q.Messages...)
	return &c
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{repo: r, writes: map[string]*Quote{}, deletes: map[string]bool{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, q := range tx.writes {
		r.quotes[id] = q
	}
	for id := range tx.deletes {
		delete(r.quotes, id)
	}
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (*Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok {
		return nil, fmt.Errorf("quote %s: %w", id, shared.ErrNotFound)
	}
	return cloneQuote(q), nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Quote
	for _, q := range r.quotes {
		if filter.Status != nil && q.Status != *filter.Status {
			continue
		}
		out = append(out, *cloneQuote(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepo) ListByUser(_ context.Context, userID string, _ shared.Pagination) ([]Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Quote
	for _, q := range r.quotes {
		if q.UserID != nil && *q.UserID == userID {
			out = append(out, *cloneQuote(q))
		}
	}
	return out, nil
}

func (tx *memoryTx) current(id string) (*Quote, bool) {
	if tx.deletes[id] {
		return nil, false
	}
	if q, ok := tx.writes[id]; ok {
		return q, true
	}
	q, ok := tx.repo.quotes[id]
	return q, ok
}

func (tx *memoryTx) Insert(_ context.Context, q *Quote) error {
	tx.writes[q.ID] = cloneQuote(q)
	return nil
}

func (tx *memoryTx) GetForUpdate(_ context.Context, id string) (*Quote, error) {
	q, ok := tx.current(id)
	if !ok {
		return nil, fmt.Errorf("quote %s: %w", id, shared.ErrNotFound)
	}
	return cloneQuote(q), nil
}

func (tx *memoryTx) Update(_ context.Context, q *Quote) error {
	existing, ok := tx.current(q.ID)
	if !ok {
		return fmt.Errorf("quote %s: %w", q.ID, shared.ErrNotFound)
	}
	updated := cloneQuote(q)
	updated.Messages = append([]Message{}, existing.Messages...)
	tx.writes[q.ID] = updated
	return nil
}

func (tx *memoryTx) AppendMessage(_ context.Context, quoteID string, msg Message) error {
	existing, ok := tx.current(quoteID)
	if !ok {
		return fmt.Errorf("quote %s: %w", quoteID, shared.ErrNotFound)
	}
	updated := cloneQuote(existing)
	updated.Messages = append(updated.Messages, msg)
	updated.UpdatedAt = msg.CreatedAt
	tx.writes[quoteID] = updated
	return nil
}

func (tx *memoryTx) Delete(_ context.Context, id string) error {
	if _, ok := tx.current(id); !ok {
		return fmt.Errorf("quote %s: %w", id, shared.ErrNotFound)
	}
	tx.deletes[id] = true
	return nil
}

type stubProducts map[string]catalog.Product

func (s stubProducts) Get(_ context.Context, id string) (catalog.Product, error) {
	p, ok := s[id]
	if !ok {
		return catalog.Product{}, fmt.Errorf("product %s: %w", id, shared.ErrNotFound)
	}
	return p, nil
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

func (n *recordingNotifier) names() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Event, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Event)
	}
	return out
}

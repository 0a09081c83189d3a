package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/signalworks/storefront/internal/catalog"
	"github.com/signalworks/storefront/internal/notify"
	"github.com/signalworks/storefront/internal/shared"
)

// DefaultValidity is how long a price stays acceptable when staff omit it.
const DefaultValidity = 7 * 24 * time.Hour

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id string) (*Quote, error)
	List(ctx context.Context, filter ListFilter) ([]Quote, error)
	ListByUser(ctx context.Context, userID string, page shared.Pagination) ([]Quote, error)
}

// ProductReader loads the products being quoted.
type ProductReader interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

// Notifier delivers quote events.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts status changes.
type MetricsPort interface {
	QuoteTransition(status string)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Validity time.Duration
	Metrics  MetricsPort
	Now      func() time.Time
}

// Service implements the quote negotiation lifecycle.
type Service struct {
	repo     RepositoryPort
	products ProductReader
	notifier Notifier
	audit    AuditPort
	metrics  MetricsPort
	logger   *slog.Logger
	validate *validator.Validate
	validity time.Duration
	now      func() time.Time
}

// NewService builds Service. notifier, audit and cfg.Metrics may be nil.
func NewService(repo RepositoryPort, products ProductReader, notifier Notifier, audit AuditPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	validity := cfg.Validity
	if validity <= 0 {
		validity = DefaultValidity
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     repo,
		products: products,
		notifier: notifier,
		audit:    audit,
		metrics:  cfg.Metrics,
		logger:   logger,
		validate: shared.NewValidator(),
		validity: validity,
		now:      now,
	}
}

// Create records a new pending quote with product snapshots. Stock is not
// checked; availability is settled at checkout.
func (s *Service) Create(ctx context.Context, req CreateQuoteRequest, requester *shared.Actor) (*Quote, error) {
	req.normalize()
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}

	items, err := s.snapshot(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	quote := &Quote{
		ID: uuid.NewString(),
		Buyer: Buyer{
			FullName:    req.Buyer.FullName,
			Email:       req.Buyer.Email,
			Mobile:      req.Buyer.Mobile,
			CompanyName: req.Buyer.CompanyName,
		},
		Address: Address{
			HouseFlat:  req.Address.HouseFlat,
			StreetArea: req.Address.StreetArea,
			Landmark:   req.Address.Landmark,
			City:       req.Address.City,
			State:      req.Address.State,
			Pincode:    req.Address.Pincode,
		},
		LineItems:          items,
		OriginalTotal:      OriginalTotal(items),
		Status:             StatusPending,
		ConversationStatus: ConversationOpen,
		UserMessage:        req.UserMessage,
		Messages:           []Message{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if requester.IsUser() {
		userID := requester.UserID
		quote.UserID = &userID
	}

	if err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Insert(ctx, quote)
	}); err != nil {
		return nil, fmt.Errorf("create quote: %w", err)
	}

	s.record(ctx, requester, "quote.created", quote, map[string]any{"original_total": quote.OriginalTotal})
	s.notify(ctx, notify.QuoteRequested, quote, fmt.Sprintf("Items: %d, list total %.2f", len(items), quote.OriginalTotal))
	return quote, nil
}

func (s *Service) snapshot(ctx context.Context, inputs []ItemInput) ([]LineItem, error) {
	items := make([]LineItem, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			product, err := s.products.Get(gctx, in.ProductID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return fmt.Errorf("product %s: %w", in.ProductID, shared.ErrNotFound)
				}
				return fmt.Errorf("load product %s: %w", in.ProductID, err)
			}
			items[i] = LineItem{
				ProductID: product.ID,
				Title:     product.Title,
				UnitPrice: product.Price,
				Quantity:  in.Quantity,
				ImageURL:  product.ImageURL,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// RespondWithPrice sets the first (or a revised) staff price on a quote.
func (s *Service) RespondWithPrice(ctx context.Context, id string, in PriceInput, actor *shared.Actor) (*Quote, error) {
	return s.price(ctx, id, in, actor, false)
}

// UpdatePrice revises the price, keeping the current validity window when
// no new one is given.
func (s *Service) UpdatePrice(ctx context.Context, id string, in PriceInput, actor *shared.Actor) (*Quote, error) {
	return s.price(ctx, id, in, actor, true)
}

func (s *Service) price(ctx context.Context, id string, in PriceInput, actor *shared.Actor, keepValidity bool) (*Quote, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("price quote: %w", shared.ErrUnauthorized)
	}
	now := s.now().UTC()
	if in.ValidUntil != nil && !in.ValidUntil.After(now) {
		return nil, shared.Validationf("valid_until must be in the future")
	}
	quote, err := s.mutate(ctx, id, func(q *Quote) error {
		if q.Status != StatusPending && q.Status != StatusQuoted {
			return fmt.Errorf("quote is %s: %w", q.Status, shared.ErrInvalidState)
		}
		quoted, discount, err := ResolvePrice(q.OriginalTotal, in)
		if err != nil {
			return err
		}
		q.QuotedTotal = &quoted
		q.DiscountPercentage = &discount
		q.Status = StatusQuoted
		switch {
		case in.ValidUntil != nil:
			v := in.ValidUntil.UTC()
			q.ValidUntil = &v
		case keepValidity && q.ValidUntil != nil:
		default:
			v := now.Add(s.validity)
			q.ValidUntil = &v
		}
		if notes := trimOptional(in.AdminNotes); notes != nil {
			q.AdminNotes = notes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, actor, "quote.priced", quote)
	s.notify(ctx, notify.QuoteResponded, quote, fmt.Sprintf("Quoted total %.2f (list %.2f), valid until %s",
		*quote.QuotedTotal, quote.OriginalTotal, quote.ValidUntil.Format(time.RFC1123)))
	return quote, nil
}

// Reject marks the quote rejected on behalf of staff regardless of its
// current status.
func (s *Service) Reject(ctx context.Context, id string, adminNotes *string, actor *shared.Actor) (*Quote, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("reject quote: %w", shared.ErrUnauthorized)
	}
	quote, err := s.mutate(ctx, id, func(q *Quote) error {
		q.Status = StatusRejected
		if notes := trimOptional(adminNotes); notes != nil {
			q.AdminNotes = notes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, actor, "quote.rejected", quote)
	s.notify(ctx, notify.QuoteRejected, quote, "The quote was declined by our sales team.")
	return quote, nil
}

// SetStatus changes the status as staff (any known status) or as the
// owning buyer (accept or reject only).
func (s *Service) SetStatus(ctx context.Context, id string, status Status, actor *shared.Actor) (*Quote, error) {
	if !status.Valid() {
		return nil, shared.Validationf("unknown status %q", status)
	}
	if !actor.IsUser() {
		return nil, fmt.Errorf("set quote status: %w", shared.ErrUnauthorized)
	}
	if !actor.IsStaff() && status != StatusAccepted && status != StatusRejected {
		return nil, fmt.Errorf("buyers may only accept or reject: %w", shared.ErrUnauthorized)
	}
	now := s.now().UTC()
	quote, err := s.mutate(ctx, id, func(q *Quote) error {
		if actor.IsStaff() {
			q.Status = status
			return nil
		}
		if !q.OwnedBy(actor) {
			return fmt.Errorf("quote %s: %w", id, shared.ErrUnauthorized)
		}
		return applyBuyerDecision(q, status, now)
	})
	if err != nil {
		return nil, err
	}
	s.afterDecision(ctx, actor, quote)
	return quote, nil
}

// GuestSetStatus lets an anonymous buyer accept or reject by asserting the
// email the quote was requested with.
func (s *Service) GuestSetStatus(ctx context.Context, id string, status Status, email string) (*Quote, error) {
	if status != StatusAccepted && status != StatusRejected {
		return nil, shared.Validationf("status must be accepted or rejected")
	}
	if strings.TrimSpace(email) == "" {
		return nil, shared.Validationf("email is required")
	}
	now := s.now().UTC()
	quote, err := s.mutate(ctx, id, func(q *Quote) error {
		if !q.EmailMatches(email) {
			return fmt.Errorf("quote %s: %w", id, shared.ErrUnauthorized)
		}
		return applyBuyerDecision(q, status, now)
	})
	if err != nil {
		return nil, err
	}
	s.afterDecision(ctx, nil, quote)
	return quote, nil
}

func applyBuyerDecision(q *Quote, status Status, now time.Time) error {
	switch status {
	case StatusAccepted:
		if q.Status != StatusQuoted {
			return fmt.Errorf("only a quoted quote can be accepted, quote is %s: %w", q.Status, shared.ErrInvalidState)
		}
		if q.expiredAt(now) {
			return fmt.Errorf("quote expired at %s: %w", q.ValidUntil.Format(time.RFC3339), shared.ErrQuoteExpired)
		}
	case StatusRejected:
		if q.Status.Terminal() {
			return fmt.Errorf("quote is %s: %w", q.Status, shared.ErrInvalidState)
		}
	default:
		return shared.Validationf("status must be accepted or rejected")
	}
	q.Status = status
	return nil
}

func (s *Service) afterDecision(ctx context.Context, actor *shared.Actor, quote *Quote) {
	s.transitioned(ctx, actor, "quote.status."+string(quote.Status), quote)
	switch quote.Status {
	case StatusAccepted:
		s.notify(ctx, notify.QuoteAccepted, quote, fmt.Sprintf("Accepted total %.2f. Proceed to payment to place the order.", deref(quote.QuotedTotal)))
	case StatusRejected:
		s.notify(ctx, notify.QuoteRejected, quote, "The quote was declined.")
	}
}

// AppendUserMessage adds a buyer message as the registered owner.
func (s *Service) AppendUserMessage(ctx context.Context, id, content string, actor *shared.Actor) (*Quote, error) {
	if !actor.IsUser() {
		return nil, fmt.Errorf("append message: %w", shared.ErrUnauthorized)
	}
	return s.appendBuyerMessage(ctx, id, content, func(q *Quote) error {
		if !q.OwnedBy(actor) {
			return fmt.Errorf("quote %s: %w", id, shared.ErrUnauthorized)
		}
		return nil
	}, actor)
}

// AppendGuestMessage adds a buyer message authenticated by email.
func (s *Service) AppendGuestMessage(ctx context.Context, id, content, email string) (*Quote, error) {
	if strings.TrimSpace(email) == "" {
		return nil, shared.Validationf("email is required")
	}
	return s.appendBuyerMessage(ctx, id, content, func(q *Quote) error {
		if !q.EmailMatches(email) {
			return fmt.Errorf("quote %s: %w", id, shared.ErrUnauthorized)
		}
		return nil
	}, nil)
}

func (s *Service) appendBuyerMessage(ctx context.Context, id, content string, authorize func(*Quote) error, actor *shared.Actor) (*Quote, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, shared.Validationf("message content is required")
	}
	var quote *Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(q); err != nil {
			return err
		}
		if q.ConversationStatus == ConversationClosed {
			return fmt.Errorf("conversation is closed: %w", shared.ErrInvalidState)
		}
		msg := Message{
			Sender:     SenderUser,
			SenderName: q.Buyer.FullName,
			Content:    content,
			CreatedAt:  s.now().UTC(),
		}
		if err := tx.AppendMessage(ctx, q.ID, msg); err != nil {
			return err
		}
		q.Messages = append(q.Messages, msg)
		q.UpdatedAt = msg.CreatedAt
		quote = q
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	s.record(ctx, actor, "quote.message.user", quote, nil)
	s.notify(ctx, notify.MessageToAdmin, quote, content)
	return quote, nil
}

// AppendAdminMessage adds a staff reply. Staff may write on closed threads.
func (s *Service) AppendAdminMessage(ctx context.Context, id, content string, actor *shared.Actor) (*Quote, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("append admin message: %w", shared.ErrUnauthorized)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, shared.Validationf("message content is required")
	}
	var quote *Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		msg := Message{
			Sender:     SenderAdmin,
			SenderName: actor.DisplayName("Sales Team"),
			Content:    content,
			CreatedAt:  s.now().UTC(),
		}
		if err := tx.AppendMessage(ctx, q.ID, msg); err != nil {
			return err
		}
		q.Messages = append(q.Messages, msg)
		q.UpdatedAt = msg.CreatedAt
		quote = q
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("append admin message: %w", err)
	}
	s.record(ctx, actor, "quote.message.admin", quote, nil)
	s.notify(ctx, notify.MessageToUser, quote, content)
	return quote, nil
}

// SetConversationStatus opens or closes the negotiation thread.
func (s *Service) SetConversationStatus(ctx context.Context, id string, status ConversationStatus, actor *shared.Actor) (*Quote, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("set conversation status: %w", shared.ErrUnauthorized)
	}
	if status != ConversationOpen && status != ConversationClosed {
		return nil, shared.Validationf("conversation status must be open or closed")
	}
	quote, err := s.mutate(ctx, id, func(q *Quote) error {
		q.ConversationStatus = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "quote.conversation."+string(status), quote, nil)
	return quote, nil
}

// Get returns a quote visible to its owner or staff.
func (s *Service) Get(ctx context.Context, id string, actor *shared.Actor) (*Quote, error) {
	quote, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && !quote.OwnedBy(actor) {
		return nil, fmt.Errorf("quote %s: %w", id, shared.ErrUnauthorized)
	}
	return quote, nil
}

// GetForGuest returns a quote when the asserted email matches.
func (s *Service) GetForGuest(ctx context.Context, id, email string) (*Quote, error) {
	if strings.TrimSpace(email) == "" {
		return nil, shared.Validationf("email is required")
	}
	quote, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !quote.EmailMatches(email) {
		return nil, fmt.Errorf("quote %s: %w", id, shared.ErrUnauthorized)
	}
	return quote, nil
}

// List returns quotes for staff, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter, actor *shared.Actor) ([]Quote, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("list quotes: %w", shared.ErrUnauthorized)
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, shared.Validationf("unknown status %q", *filter.Status)
	}
	filter.Pagination = filter.Pagination.Normalize()
	return s.repo.List(ctx, filter)
}

// ListForUser returns the actor's own quotes, newest first.
func (s *Service) ListForUser(ctx context.Context, actor *shared.Actor, page shared.Pagination) ([]Quote, error) {
	if !actor.IsUser() {
		return nil, fmt.Errorf("list quotes: %w", shared.ErrUnauthorized)
	}
	return s.repo.ListByUser(ctx, actor.UserID, page.Normalize())
}

// Delete removes a quote and its thread.
func (s *Service) Delete(ctx context.Context, id string, actor *shared.Actor) error {
	if !actor.IsStaff() {
		return fmt.Errorf("delete quote: %w", shared.ErrUnauthorized)
	}
	if err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Delete(ctx, id)
	}); err != nil {
		return fmt.Errorf("delete quote: %w", err)
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{ActorID: shared.ActorIDOf(actor), Action: "quote.deleted", Entity: "quote", EntityID: id}); err != nil {
			s.logger.Warn("audit quote failed", slog.String("quote_id", id), slog.Any("error", err))
		}
	}
	return nil
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*Quote) error) (*Quote, error) {
	var quote *Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(q); err != nil {
			return err
		}
		q.UpdatedAt = s.now().UTC()
		if err := tx.Update(ctx, q); err != nil {
			return err
		}
		quote = q
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update quote %s: %w", id, err)
	}
	return quote, nil
}

func (s *Service) transitioned(ctx context.Context, actor *shared.Actor, action string, quote *Quote) {
	if s.metrics != nil {
		s.metrics.QuoteTransition(string(quote.Status))
	}
	meta := map[string]any{"status": quote.Status}
	if quote.QuotedTotal != nil {
		meta["quoted_total"] = *quote.QuotedTotal
	}
	s.record(ctx, actor, action, quote, meta)
}

func (s *Service) record(ctx context.Context, actor *shared.Actor, action string, quote *Quote, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorIDOf(actor),
		Action:   action,
		Entity:   "quote",
		EntityID: quote.ID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit quote failed", slog.String("quote_id", quote.ID), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, event notify.Event, quote *Quote, summary string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, notify.Notification{
		Event:      event,
		Reference:  quote.ID,
		BuyerName:  quote.Buyer.FullName,
		BuyerEmail: quote.Buyer.Email,
		Summary:    summary,
	})
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/signalworks/storefront/internal/catalog"
	"github.com/signalworks/storefront/internal/invoice"
	"github.com/signalworks/storefront/internal/notify"
	"github.com/signalworks/storefront/internal/quotes"
	"github.com/signalworks/storefront/internal/shared"
)

// DefaultInvoiceTimeout bounds inline invoice generation after checkout.
const DefaultInvoiceTimeout = 15 * time.Second

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id string) (*Order, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*Order, error)
	ListByUser(ctx context.Context, userID string, page shared.Pagination) ([]Order, error)
	ListMissingInvoice(ctx context.Context, limit int) ([]Order, error)
	SetInvoiceURL(ctx context.Context, id, url string) error
	UpdateFulfillment(ctx context.Context, id string, upd FulfillmentUpdate) (*Order, error)
}

// QuoteReader loads the quote being converted.
type QuoteReader interface {
	Get(ctx context.Context, id string) (*quotes.Quote, error)
}

// ProductReader prices cart checkouts from the live catalog.
type ProductReader interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

// StockPublisher broadcasts committed stock levels.
type StockPublisher interface {
	PublishStockChange(ctx context.Context, productID string, stock int) error
}

// InvoiceGenerator renders and stores an invoice, returning its URL.
type InvoiceGenerator interface {
	Generate(ctx context.Context, doc invoice.Document) (string, error)
}

// InvoiceRetrier schedules a background invoice attempt.
type InvoiceRetrier interface {
	EnqueueInvoiceGenerate(ctx context.Context, orderID string) error
}

// CartClearer empties a buyer's cart.
type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

// Notifier delivers order events.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts checkout outcomes.
type MetricsPort interface {
	OrderPlaced(source string)
	CheckoutRejected(reason string)
	InvoiceFailed()
}

// Dependencies wires the collaborators of Service. Only Repo, Signer and
// Products are required.
type Dependencies struct {
	Repo     RepositoryPort
	Signer   *Signer
	Quotes   QuoteReader
	Products ProductReader
	Stock    StockPublisher
	Invoices InvoiceGenerator
	Retrier  InvoiceRetrier
	Cart     CartClearer
	Notifier Notifier
	Audit    AuditPort
	Metrics  MetricsPort
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	InvoiceTimeout time.Duration
	Now            func() time.Time
}

// Service verifies payments and turns them into orders.
type Service struct {
	deps           Dependencies
	logger         *slog.Logger
	validate       *validator.Validate
	invoiceTimeout time.Duration
	now            func() time.Time
}

// NewService builds Service.
func NewService(deps Dependencies, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.InvoiceTimeout
	if timeout <= 0 {
		timeout = DefaultInvoiceTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		deps:           deps,
		logger:         logger,
		validate:       shared.NewValidator(),
		invoiceTimeout: timeout,
		now:            now,
	}
}

type resolvedLines struct {
	items  []LineItem
	total  float64
	quote  *quotes.Quote
	source string
}

// VerifyAndPlaceOrder checks the gateway signature, then records the order,
// reserves stock and converts the quote in one transaction. A replayed
// payment returns the order already recorded for it.
func (s *Service) VerifyAndPlaceOrder(ctx context.Context, req PlaceOrderRequest, actor *shared.Actor) (*Order, error) {
	req.normalize()
	if !s.deps.Signer.Verify(req.GatewayOrderID, req.GatewayPaymentID, req.GatewaySignature) {
		s.rejected("signature")
		return nil, fmt.Errorf("payment %s: %w", req.GatewayPaymentID, shared.ErrPaymentVerification)
	}
	if !actor.IsUser() {
		return nil, fmt.Errorf("checkout requires a signed-in buyer: %w", shared.ErrUnauthorized)
	}

	if existing, err := s.existing(ctx, req.GatewayPaymentID, actor); existing != nil || err != nil {
		return existing, err
	}

	if err := shared.ValidateStruct(s.validate, req); err != nil {
		s.rejected("validation")
		return nil, err
	}
	if err := shared.ValidateStruct(s.validate, req.ShippingAddress); err != nil {
		s.rejected("validation")
		return nil, err
	}

	lines, err := s.resolve(ctx, req, actor)
	if err != nil {
		s.rejected("resolve")
		return nil, err
	}
	if !shared.MoneyEqual(req.TotalAmount, lines.total) {
		s.rejected("total_mismatch")
		return nil, shared.Validationf("total_amount %.2f does not match %.2f", req.TotalAmount, lines.total)
	}

	now := s.now().UTC()
	order := &Order{
		ID:               uuid.NewString(),
		UserID:           actor.UserID,
		LineItems:        lines.items,
		TotalAmount:      shared.RoundMoney(lines.total),
		ShippingAddress:  req.ShippingAddress,
		PaymentStatus:    PaymentCompleted,
		OrderStatus:      OrderProcessing,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		GatewaySignature: req.GatewaySignature,
		QuoteID:          req.QuoteID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var levels []StockLevel
	err = s.deps.Repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		levels = levels[:0]
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		for _, r := range reservations(order.LineItems) {
			left, err := tx.DecrementStock(ctx, r.productID, r.quantity)
			if err != nil {
				return err
			}
			levels = append(levels, StockLevel{ProductID: r.productID, Stock: left})
		}
		if lines.quote != nil {
			return tx.MarkQuoteOrdered(ctx, lines.quote.ID, order.ID)
		}
		return nil
	})
	if errors.Is(err, ErrDuplicatePayment) {
		// A concurrent request for the same payment committed first.
		winner, getErr := s.existing(ctx, req.GatewayPaymentID, actor)
		if winner != nil || getErr != nil {
			return winner, getErr
		}
	}
	if err != nil {
		if errors.Is(err, shared.ErrInsufficientStock) {
			s.rejected("insufficient_stock")
		}
		return nil, fmt.Errorf("place order for payment %s: %w", req.GatewayPaymentID, err)
	}

	s.logger.Info("order placed",
		slog.String("order_id", order.ID),
		slog.String("payment_id", order.GatewayPaymentID),
		slog.String("source", lines.source),
		slog.Float64("total", order.TotalAmount),
	)
	if s.deps.Metrics != nil {
		s.deps.Metrics.OrderPlaced(lines.source)
	}
	s.publishStock(ctx, levels)
	s.issueInvoice(ctx, order)
	s.clearCart(ctx, actor.UserID)
	s.notifyPlaced(ctx, order, actor)
	s.record(ctx, actor, "order.placed", order, map[string]any{
		"payment_id": order.GatewayPaymentID,
		"total":      order.TotalAmount,
		"source":     lines.source,
	})
	return order, nil
}

type reservation struct {
	productID string
	quantity  int
}

// reservations merges line items per product and orders them by product id.
// Every checkout locks product rows in the same order, so overlapping carts
// queue behind each other instead of deadlocking.
func reservations(items []LineItem) []reservation {
	byProduct := make(map[string]int, len(items))
	for _, item := range items {
		byProduct[item.ProductID] += item.Quantity
	}
	out := make([]reservation, 0, len(byProduct))
	for id, qty := range byProduct {
		out = append(out, reservation{productID: id, quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].productID < out[j].productID })
	return out
}

func (s *Service) existing(ctx context.Context, paymentID string, actor *shared.Actor) (*Order, error) {
	order, err := s.deps.Repo.GetByPaymentID(ctx, paymentID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.UserID {
		return nil, fmt.Errorf("payment %s belongs to another buyer: %w", paymentID, shared.ErrUnauthorized)
	}
	s.logger.Info("payment already recorded", slog.String("order_id", order.ID), slog.String("payment_id", paymentID))
	return order, nil
}

func (s *Service) resolve(ctx context.Context, req PlaceOrderRequest, actor *shared.Actor) (resolvedLines, error) {
	if req.QuoteID != nil {
		return s.fromQuote(ctx, *req.QuoteID, actor)
	}
	return s.fromCatalog(ctx, req.Items)
}

func (s *Service) fromQuote(ctx context.Context, quoteID string, actor *shared.Actor) (resolvedLines, error) {
	if s.deps.Quotes == nil {
		return resolvedLines{}, fmt.Errorf("quote checkout unavailable: %w", shared.ErrInvalidState)
	}
	q, err := s.deps.Quotes.Get(ctx, quoteID)
	if err != nil {
		return resolvedLines{}, err
	}
	if !q.OwnedBy(actor) && !(q.UserID == nil && q.EmailMatches(actor.Email)) {
		return resolvedLines{}, fmt.Errorf("quote %s: %w", quoteID, shared.ErrUnauthorized)
	}
	if q.Status != quotes.StatusAccepted {
		return resolvedLines{}, fmt.Errorf("quote %s is %s: %w", quoteID, q.Status, shared.ErrInvalidState)
	}
	if q.QuotedTotal == nil {
		return resolvedLines{}, fmt.Errorf("quote %s has no price: %w", quoteID, shared.ErrInvalidState)
	}
	items := make([]LineItem, len(q.LineItems))
	for i, li := range q.LineItems {
		items[i] = LineItem{
			ProductID: li.ProductID,
			Title:     li.Title,
			UnitPrice: li.UnitPrice,
			Quantity:  li.Quantity,
			ImageURL:  li.ImageURL,
		}
	}
	return resolvedLines{items: items, total: *q.QuotedTotal, quote: q, source: "quote"}, nil
}

func (s *Service) fromCatalog(ctx context.Context, inputs []ItemInput) (resolvedLines, error) {
	if len(inputs) == 0 {
		return resolvedLines{}, shared.Validationf("items is required")
	}
	items := make([]LineItem, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			p, err := s.deps.Products.Get(gctx, in.ProductID)
			if err != nil {
				return fmt.Errorf("product %s: %w", in.ProductID, err)
			}
			items[i] = LineItem{
				ProductID: p.ID,
				Title:     p.Title,
				UnitPrice: p.Price,
				Quantity:  in.Quantity,
				ImageURL:  p.ImageURL,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return resolvedLines{}, err
	}
	var total float64
	for _, item := range items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return resolvedLines{items: items, total: shared.RoundMoney(total), source: "cart"}, nil
}

func (s *Service) publishStock(ctx context.Context, levels []StockLevel) {
	if s.deps.Stock == nil {
		return
	}
	for _, lvl := range levels {
		if err := s.deps.Stock.PublishStockChange(ctx, lvl.ProductID, lvl.Stock); err != nil {
			s.logger.Warn("publish stock change failed", slog.String("product_id", lvl.ProductID), slog.Any("error", err))
		}
	}
}

// issueInvoice attempts the invoice inline and falls back to a queued retry.
func (s *Service) issueInvoice(ctx context.Context, order *Order) {
	if s.deps.Invoices == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.invoiceTimeout)
	defer cancel()
	if err := s.generateInvoice(ctx, order); err != nil {
		s.logger.Error("invoice generation failed",
			slog.String("order_id", order.ID),
			slog.Any("error", err),
		)
		if s.deps.Metrics != nil {
			s.deps.Metrics.InvoiceFailed()
		}
		if s.deps.Retrier == nil {
			return
		}
		if err := s.deps.Retrier.EnqueueInvoiceGenerate(ctx, order.ID); err != nil {
			s.logger.Error("enqueue invoice retry failed", slog.String("order_id", order.ID), slog.Any("error", err))
		}
	}
}

func (s *Service) generateInvoice(ctx context.Context, order *Order) error {
	url, err := s.deps.Invoices.Generate(ctx, s.document(order))
	if err != nil {
		return err
	}
	if err := s.deps.Repo.SetInvoiceURL(ctx, order.ID, url); err != nil {
		return err
	}
	order.InvoiceURL = &url
	return nil
}

func (s *Service) document(order *Order) invoice.Document {
	doc := invoice.Document{
		Number:     invoice.NumberFor(order.ID, order.CreatedAt),
		OrderID:    order.ID,
		PaymentID:  order.GatewayPaymentID,
		IssuedAt:   order.CreatedAt,
		BuyerName:  order.ShippingAddress.FullName,
		BuyerPhone: order.ShippingAddress.Phone,
		ShipTo:     order.ShippingAddress.Lines(),
		Total:      order.TotalAmount,
	}
	if order.QuoteID != nil {
		doc.QuoteID = *order.QuoteID
	}
	for _, item := range order.LineItems {
		doc.Lines = append(doc.Lines, invoice.Line{
			Title:     item.Title,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return doc
}

func (s *Service) clearCart(ctx context.Context, userID string) {
	if s.deps.Cart == nil {
		return
	}
	if err := s.deps.Cart.Clear(ctx, userID); err != nil {
		s.logger.Warn("clear cart failed", slog.String("user_id", userID), slog.Any("error", err))
	}
}

func (s *Service) notifyPlaced(ctx context.Context, order *Order, actor *shared.Actor) {
	if s.deps.Notifier == nil {
		return
	}
	s.deps.Notifier.Notify(ctx, notify.Notification{
		Event:      notify.OrderPlaced,
		Reference:  order.ID,
		BuyerName:  actor.DisplayName(order.ShippingAddress.FullName),
		BuyerEmail: actor.Email,
		Summary:    fmt.Sprintf("Order %s confirmed, total %.2f.", order.ID, order.TotalAmount),
	})
}

func (s *Service) rejected(reason string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.CheckoutRejected(reason)
	}
}

func (s *Service) record(ctx context.Context, actor *shared.Actor, action string, order *Order, meta map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorIDOf(actor),
		Action:   action,
		Entity:   "order",
		EntityID: order.ID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit order failed", slog.String("order_id", order.ID), slog.Any("error", err))
	}
}

// Get returns an order visible to the actor.
func (s *Service) Get(ctx context.Context, id string, actor *shared.Actor) (*Order, error) {
	order, err := s.deps.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.VisibleTo(actor) {
		return nil, fmt.Errorf("order %s: %w", id, shared.ErrUnauthorized)
	}
	return order, nil
}

// ListForUser returns the actor's own orders.
func (s *Service) ListForUser(ctx context.Context, actor *shared.Actor, page shared.Pagination) ([]Order, error) {
	if !actor.IsUser() {
		return nil, shared.ErrUnauthorized
	}
	return s.deps.Repo.ListByUser(ctx, actor.UserID, page.Normalize())
}

// UpdateFulfillment records staff shipping progress. Marking an order
// delivered stamps DeliveredAt when the caller leaves it empty.
func (s *Service) UpdateFulfillment(ctx context.Context, id string, upd FulfillmentUpdate, actor *shared.Actor) (*Order, error) {
	if !actor.IsStaff() {
		return nil, shared.ErrUnauthorized
	}
	if upd.OrderStatus != nil && !upd.OrderStatus.Valid() {
		return nil, shared.Validationf("order_status %q is not recognised", *upd.OrderStatus)
	}
	if upd.OrderStatus == nil && upd.TrackingNumber == nil && upd.EstimatedDelivery == nil && upd.DeliveredAt == nil {
		return nil, shared.Validationf("no fulfillment fields supplied")
	}
	if upd.OrderStatus != nil && *upd.OrderStatus == OrderDelivered && upd.DeliveredAt == nil {
		at := s.now().UTC()
		upd.DeliveredAt = &at
	}
	order, err := s.deps.Repo.UpdateFulfillment(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	meta := map[string]any{"order_status": order.OrderStatus}
	if order.TrackingNumber != nil {
		meta["tracking_number"] = *order.TrackingNumber
	}
	s.record(ctx, actor, "order.fulfillment", order, meta)
	return order, nil
}

// RegenerateInvoice renders the invoice for an existing order and stores its
// URL. Errors are returned so background jobs can retry.
func (s *Service) RegenerateInvoice(ctx context.Context, id string) (*Order, error) {
	if s.deps.Invoices == nil {
		return nil, fmt.Errorf("invoice generation unavailable: %w", shared.ErrInvalidState)
	}
	order, err := s.deps.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.generateInvoice(ctx, order); err != nil {
		return nil, fmt.Errorf("regenerate invoice %s: %w", id, err)
	}
	s.logger.Info("invoice generated", slog.String("order_id", order.ID), slog.String("url", *order.InvoiceURL))
	return order, nil
}

// BackfillInvoices retries orders that still lack an invoice and reports
// how many succeeded.
func (s *Service) BackfillInvoices(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}
	pending, err := s.deps.Repo.ListMissingInvoice(ctx, limit)
	if err != nil {
		return 0, err
	}
	done := 0
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := s.RegenerateInvoice(ctx, pending[i].ID); err != nil {
			s.logger.Warn("backfill invoice failed", slog.String("order_id", pending[i].ID), slog.Any("error", err))
			continue
		}
		done++
	}
	return done, nil
}

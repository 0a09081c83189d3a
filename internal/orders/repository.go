package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signalworks/storefront/internal/catalog"
	"github.com/signalworks/storefront/internal/platform/db"
	"github.com/signalworks/storefront/internal/quotes"
	"github.com/signalworks/storefront/internal/shared"
)

// paymentIDConstraint is the unique constraint on orders.gateway_payment_id.
const paymentIDConstraint = "orders_gateway_payment_id_key"

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the checkout operations that must commit together.
type TxRepository interface {
	InsertOrder(ctx context.Context, order *Order) error
	DecrementStock(ctx context.Context, productID string, qty int) (int, error)
	MarkQuoteOrdered(ctx context.Context, quoteID, orderID string) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn in a READ COMMITTED transaction. Under this level a
// conditional stock UPDATE blocked behind a concurrent decrement re-reads
// the committed row before re-checking stock >= qty.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (t *txRepo) InsertOrder(ctx context.Context, o *Order) error {
	items, err := json.Marshal(o.LineItems)
	if err != nil {
		return err
	}
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		o.ID, o.UserID, items, o.TotalAmount, address, string(o.PaymentStatus), string(o.OrderStatus),
		o.GatewayOrderID, o.GatewayPaymentID, o.GatewaySignature, o.InvoiceURL, o.QuoteID,
		o.TrackingNumber, o.EstimatedDelivery, o.DeliveredAt, o.CreatedAt, o.UpdatedAt, nil,
	)
	if err != nil {
		if db.IsUniqueViolation(err, paymentIDConstraint) {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (t *txRepo) DecrementStock(ctx context.Context, productID string, qty int) (int, error) {
	return catalog.DecrementStock(ctx, t.tx, productID, qty)
}

func (t *txRepo) MarkQuoteOrdered(ctx context.Context, quoteID, orderID string) error {
	return quotes.MarkOrdered(ctx, t.tx, quoteID, orderID)
}

const orderColumns = `
	id, user_id, line_items, total_amount, shipping_address, payment_status, order_status,
	gateway_order_id, gateway_payment_id, gateway_signature, invoice_url, quote_id,
	tracking_number, estimated_delivery, delivered_at, created_at, updated_at, invoice_attempted_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o         Order
		items     []byte
		address   []byte
		attempted *time.Time
	)
	err := row.Scan(
		&o.ID, &o.UserID, &items, &o.TotalAmount, &address, &o.PaymentStatus, &o.OrderStatus,
		&o.GatewayOrderID, &o.GatewayPaymentID, &o.GatewaySignature, &o.InvoiceURL, &o.QuoteID,
		&o.TrackingNumber, &o.EstimatedDelivery, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt, &attempted,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.LineItems); err != nil {
		return nil, fmt.Errorf("decode line items: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address: %w", err)
	}
	return &o, nil
}

func (r *Repository) getBy(ctx context.Context, column, value string) (*Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE `+column+` = $1`, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order: %w", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// Get loads an order by id.
func (r *Repository) Get(ctx context.Context, id string) (*Order, error) {
	if err := db.CheckID("order", id); err != nil {
		return nil, err
	}
	return r.getBy(ctx, "id", id)
}

// GetByPaymentID loads the order recorded for a gateway payment.
func (r *Repository) GetByPaymentID(ctx context.Context, paymentID string) (*Order, error) {
	return r.getBy(ctx, "gateway_payment_id", paymentID)
}

// ListByUser returns a buyer's orders, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string, page shared.Pagination) ([]Order, error) {
	return r.list(ctx, `SELECT`+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, page.Limit, page.Offset)
}

// ListMissingInvoice returns paid orders without an invoice, oldest first.
func (r *Repository) ListMissingInvoice(ctx context.Context, limit int) ([]Order, error) {
	return r.list(ctx, `SELECT`+orderColumns+` FROM orders
		WHERE invoice_url IS NULL AND payment_status = 'completed'
		ORDER BY created_at LIMIT $1`, limit)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// SetInvoiceURL records the stored invoice location.
func (r *Repository) SetInvoiceURL(ctx context.Context, id, url string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET invoice_url = $2, invoice_attempted_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id, url)
	if err != nil {
		return fmt.Errorf("set invoice url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

// UpdateFulfillment applies staff shipping changes; nil fields keep their value.
func (r *Repository) UpdateFulfillment(ctx context.Context, id string, upd FulfillmentUpdate) (*Order, error) {
	if err := db.CheckID("order", id); err != nil {
		return nil, err
	}
	var status *string
	if upd.OrderStatus != nil {
		s := string(*upd.OrderStatus)
		status = &s
	}
	o, err := scanOrder(r.pool.QueryRow(ctx, `
		UPDATE orders SET
			order_status = COALESCE($2, order_status),
			tracking_number = COALESCE($3, tracking_number),
			estimated_delivery = COALESCE($4, estimated_delivery),
			delivered_at = COALESCE($5, delivered_at),
			updated_at = NOW()
		WHERE id = $1
		RETURNING`+orderColumns,
		id, status, upd.TrackingNumber, upd.EstimatedDelivery, upd.DeliveredAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", id, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("update fulfillment: %w", err)
	}
	return o, nil
}

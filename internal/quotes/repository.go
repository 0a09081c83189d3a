package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signalworks/storefront/internal/platform/db"
	"github.com/signalworks/storefront/internal/shared"
)

// Repository persists quotes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	Insert(ctx context.Context, q *Quote) error
	GetForUpdate(ctx context.Context, id string) (*Quote, error)
	Update(ctx context.Context, q *Quote) error
	AppendMessage(ctx context.Context, quoteID string, msg Message) error
	Delete(ctx context.Context, id string) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a read-committed transaction. Rows
// are locked explicitly with SELECT ... FOR UPDATE.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const quoteColumns = `
	id, buyer_full_name, buyer_email, buyer_mobile, buyer_company,
	addr_house_flat, addr_street_area, addr_landmark, addr_city, addr_state, addr_pincode,
	line_items, original_total, quoted_total, discount_percentage,
	status, conversation_status, valid_until, admin_notes, user_message,
	user_id, order_id, created_at, updated_at`

func scanQuote(row pgx.Row) (*Quote, error) {
	var (
		q     Quote
		items []byte
	)
	err := row.Scan(
		&q.ID, &q.Buyer.FullName, &q.Buyer.Email, &q.Buyer.Mobile, &q.Buyer.CompanyName,
		&q.Address.HouseFlat, &q.Address.StreetArea, &q.Address.Landmark, &q.Address.City, &q.Address.State, &q.Address.Pincode,
		&items, &q.OriginalTotal, &q.QuotedTotal, &q.DiscountPercentage,
		&q.Status, &q.ConversationStatus, &q.ValidUntil, &q.AdminNotes, &q.UserMessage,
		&q.UserID, &q.OrderID, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &q.LineItems); err != nil {
		return nil, fmt.Errorf("decode line items: %w", err)
	}
	q.Messages = []Message{}
	return &q, nil
}

func loadQuote(ctx context.Context, q db.DBTX, id string, forUpdate bool) (*Quote, error) {
	query := `SELECT` + quoteColumns + ` FROM quotes WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	quote, err := scanQuote(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("quote %s: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	msgs, err := loadMessages(ctx, q, id)
	if err != nil {
		return nil, err
	}
	quote.Messages = msgs
	return quote, nil
}

func loadMessages(ctx context.Context, q db.DBTX, quoteID string) ([]Message, error) {
	rows, err := q.Query(ctx, `
		SELECT sender, sender_name, content, created_at
		FROM quote_messages
		WHERE quote_id = $1
		ORDER BY id`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Sender, &m.SenderName, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Get loads a quote with its message thread.
func (r *Repository) Get(ctx context.Context, id string) (*Quote, error) {
	if err := db.CheckID("quote", id); err != nil {
		return nil, err
	}
	return loadQuote(ctx, r.pool, id, false)
}

// List returns quotes filtered by status, newest first. Threads are not loaded.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Quote, error) {
	args := []any{}
	where := []string{}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT` + quoteColumns + ` FROM quotes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	return r.list(ctx, query, args...)
}

// ListByUser returns a registered buyer's quotes, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string, page shared.Pagination) ([]Quote, error) {
	query := `SELECT` + quoteColumns + ` FROM quotes WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.list(ctx, query, userID, page.Limit, page.Offset)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Quote, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()
	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (t *txRepo) Insert(ctx context.Context, q *Quote) error {
	items, err := json.Marshal(q.LineItems)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO quotes (`+quoteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
		q.ID, q.Buyer.FullName, q.Buyer.Email, q.Buyer.Mobile, q.Buyer.CompanyName,
		q.Address.HouseFlat, q.Address.StreetArea, q.Address.Landmark, q.Address.City, q.Address.State, q.Address.Pincode,
		items, q.OriginalTotal, q.QuotedTotal, q.DiscountPercentage,
		string(q.Status), string(q.ConversationStatus), q.ValidUntil, q.AdminNotes, q.UserMessage,
		q.UserID, q.OrderID, q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert quote: %w", err)
	}
	return nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id string) (*Quote, error) {
	if err := db.CheckID("quote", id); err != nil {
		return nil, err
	}
	return loadQuote(ctx, t.tx, id, true)
}

func (t *txRepo) Update(ctx context.Context, q *Quote) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE quotes SET
			quoted_total = $2,
			discount_percentage = $3,
			status = $4,
			conversation_status = $5,
			valid_until = $6,
			admin_notes = $7,
			order_id = $8,
			updated_at = $9
		WHERE id = $1`,
		q.ID, q.QuotedTotal, q.DiscountPercentage, string(q.Status), string(q.ConversationStatus),
		q.ValidUntil, q.AdminNotes, q.OrderID, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update quote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quote %s: %w", q.ID, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepo) AppendMessage(ctx context.Context, quoteID string, msg Message) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO quote_messages (quote_id, sender, sender_name, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		quoteID, string(msg.Sender), msg.SenderName, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert quote message: %w", err)
	}
	_, err = t.tx.Exec(ctx, `UPDATE quotes SET updated_at = $2 WHERE id = $1`, quoteID, msg.CreatedAt)
	return err
}

func (t *txRepo) Delete(ctx context.Context, id string) error {
	if err := db.CheckID("quote", id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM quotes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete quote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quote %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

// MarkOrdered links an accepted quote to its order inside the checkout
// transaction. It fails with ErrInvalidState when the quote is no longer
// accepted, which also stops two checkouts converting the same quote.
func MarkOrdered(ctx context.Context, q db.DBTX, quoteID, orderID string) error {
	tag, err := q.Exec(ctx, `
		UPDATE quotes
		SET status = $3, order_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		quoteID, orderID, string(StatusOrdered), string(StatusAccepted))
	if err != nil {
		return fmt.Errorf("mark quote ordered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quote %s is no longer accepted: %w", quoteID, shared.ErrInvalidState)
	}
	return nil
}

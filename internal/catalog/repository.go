package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signalworks/storefront/internal/platform/db"
	"github.com/signalworks/storefront/internal/shared"
)

// Repository reads products and applies conditional stock decrements.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads a product by id.
func (r *Repository) Get(ctx context.Context, id string) (Product, error) {
	return getProduct(ctx, r.pool, id)
}

func getProduct(ctx context.Context, q db.DBTX, id string) (Product, error) {
	if err := db.CheckID("product", id); err != nil {
		return Product{}, err
	}
	const query = `SELECT id, title, price, COALESCE(image_url, ''), stock, updated_at FROM products WHERE id = $1`
	var p Product
	err := q.QueryRow(ctx, query, id).Scan(&p.ID, &p.Title, &p.Price, &p.ImageURL, &p.Stock, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("product %s: %w", id, shared.ErrNotFound)
		}
		return Product{}, fmt.Errorf("catalog: get product: %w", err)
	}
	return p, nil
}

// DecrementStock subtracts qty from the product's stock only when enough
// stock remains, returning the new stock. It runs on q so callers can place
// several decrements in one transaction. A shortfall yields
// *shared.InsufficientStockError and leaves the row untouched.
func DecrementStock(ctx context.Context, q db.DBTX, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, shared.Validationf("quantity must be at least 1")
	}
	const query = `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
		RETURNING stock
	`
	var stock int
	err := q.QueryRow(ctx, query, productID, qty).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("catalog: decrement stock: %w", err)
	}
	p, err := getProduct(ctx, q, productID)
	if err != nil {
		return 0, err
	}
	return 0, &shared.InsufficientStockError{
		ProductID: productID,
		Title:     p.Title,
		Requested: qty,
		Available: p.Stock,
	}
}

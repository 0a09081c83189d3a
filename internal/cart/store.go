package cart

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/signalworks/storefront/internal/shared"
)

const keyPrefix = "cart:"

// Item is one product line in a buyer's cart.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Store keeps one Redis hash per user mapping product id to quantity.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore constructs a Store. Idle carts expire after ttl when ttl > 0.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func cartKey(userID string) string {
	return keyPrefix + userID
}

// Items returns the cart contents ordered by product id.
func (s *Store) Items(ctx context.Context, userID string) ([]Item, error) {
	raw, err := s.client.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("cart: load: %w", err)
	}
	items := make([]Item, 0, len(raw))
	for productID, value := range raw {
		qty, err := strconv.Atoi(value)
		if err != nil || qty <= 0 {
			continue
		}
		items = append(items, Item{ProductID: productID, Quantity: qty})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items, nil
}

// SetQuantity sets the quantity of a product; zero removes the line.
func (s *Store) SetQuantity(ctx context.Context, userID, productID string, qty int) error {
	if userID == "" || productID == "" {
		return shared.Validationf("user and product are required")
	}
	if qty < 0 {
		return shared.Validationf("quantity must not be negative")
	}
	if qty == 0 {
		return s.Remove(ctx, userID, productID)
	}
	key := cartKey(userID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, productID, qty)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cart: set quantity: %w", err)
	}
	return nil
}

// Remove deletes a product line.
func (s *Store) Remove(ctx context.Context, userID, productID string) error {
	if err := s.client.HDel(ctx, cartKey(userID), productID).Err(); err != nil {
		return fmt.Errorf("cart: remove: %w", err)
	}
	return nil
}

// Clear empties the user's cart.
func (s *Store) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("cart: clear: %w", err)
	}
	return nil
}

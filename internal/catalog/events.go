package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StockChannel is the Redis pub/sub channel carrying StockChange messages.
const StockChannel = "catalog:stock"

// StockEvents publishes and subscribes to stock changes over Redis.
type StockEvents struct {
	client *redis.Client
	now    func() time.Time
}

// NewStockEvents constructs StockEvents.
func NewStockEvents(client *redis.Client) *StockEvents {
	return &StockEvents{client: client, now: time.Now}
}

// PublishStockChange broadcasts the new stock level of a product.
func (e *StockEvents) PublishStockChange(ctx context.Context, productID string, stock int) error {
	if e == nil || e.client == nil {
		return nil
	}
	body, err := json.Marshal(StockChange{ProductID: productID, Stock: stock, At: e.now().UTC()})
	if err != nil {
		return err
	}
	if err := e.client.Publish(ctx, StockChannel, body).Err(); err != nil {
		return fmt.Errorf("catalog: publish stock change: %w", err)
	}
	return nil
}

// Subscribe streams decoded stock changes until ctx is cancelled. The
// returned channel is closed when the subscription ends.
func (e *StockEvents) Subscribe(ctx context.Context) (<-chan StockChange, error) {
	sub := e.client.Subscribe(ctx, StockChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("catalog: subscribe: %w", err)
	}
	out := make(chan StockChange)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change StockChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

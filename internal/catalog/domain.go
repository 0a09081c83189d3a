package catalog

import "time"

// Product is a catalog entry. Stock is the only field the storefront mutates.
type Product struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	ImageURL  string    `json:"image_url"`
	Stock     int       `json:"stock"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockChange is published after a committed decrement. Consumers treat it
// as last-write-wins display data.
type StockChange struct {
	ProductID string    `json:"product_id"`
	Stock     int       `json:"stock"`
	At        time.Time `json:"at"`
}

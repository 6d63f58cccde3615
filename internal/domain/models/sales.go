package models

import "time"

// SalesRecord is one day of sold quantity for a product.
type SalesRecord struct {
	Date     time.Time `json:"date"`
	Quantity float64   `json:"quantity"`
}

// SalesEvent is the wire form of a sale arriving on the sales topic.
type SalesEvent struct {
	ProductID string  `json:"product_id" validate:"required"`
	Date      string  `json:"date" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"gte=0"`
}

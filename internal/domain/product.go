package domain

import "time"

// Product is a sellable item. Stock is decremented exclusively inside a
// committed order transaction and never goes negative.
type Product struct {
	ID          int64     `json:"id"`
	CategoryID  int64     `json:"categoryId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Barcode     string    `json:"barcode,omitempty"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Category groups products for browsing. Categories may nest one level via
// ParentID.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ParentID    *int64 `json:"parentId,omitempty"`
	Active      bool   `json:"active"`
}

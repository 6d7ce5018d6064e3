// Package store holds the catalog persistence boundary. The cache layer
// treats everything returned from here as opaque documents; query
// semantics beyond this interface are not its concern.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the requested document does not exist.
var ErrNotFound = errors.New("store: not found")

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Brand       string    `json:"brand,omitempty"`
	Active      bool      `json:"active"`
	SoldCount   int       `json:"sold_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListFilter narrows and pages a product listing.
type ListFilter struct {
	Category string
	Page     int
	Limit    int
}

// ProductStore is the persistence contract used by the handlers.
type ProductStore interface {
	List(ctx context.Context, f ListFilter) (products []Product, total int, err error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, id string, p *Product) error
	Delete(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
	Popular(ctx context.Context, limit int) ([]Product, error)

	Categories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, c *Category) error
	Brands(ctx context.Context) ([]string, error)
}

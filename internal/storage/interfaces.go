// Package storage defines the persistence gateway the business services
// talk to. Implementations live in the postgres and memory subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/retailcore/posd/internal/domain"
)

// ErrNotFound reports that the requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrDuplicate reports a unique-constraint violation, e.g. a taken username
// or barcode.
var ErrDuplicate = errors.New("storage: duplicate value")

// UserStore persists users.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	ListUsersByRole(ctx context.Context, role string) ([]domain.User, error)
	SearchUsers(ctx context.Context, keyword string) ([]domain.User, error)
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (domain.User, error)
}

// ProductStore persists products. Stock mutation during order commit goes
// through Tx instead, so a plain UpdateProductStock never races a sale.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error)
	SearchProducts(ctx context.Context, keyword string) ([]domain.Product, error)
	ListLowStockProducts(ctx context.Context, threshold int) ([]domain.Product, error)
	UpdateProductPrice(ctx context.Context, id int64, price float64) error
	SetProductStock(ctx context.Context, id int64, stock int) error
}

// OrderStore reads committed orders.
type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	ListOrdersBetween(ctx context.Context, from, to time.Time, status string) ([]domain.Order, error)
}

// CategoryStore reads the category tree.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// Tx exposes the row-level operations the order-commit workflow performs
// inside one atomic unit. Implementations guarantee that either every write
// issued through a Tx commits, or none do.
type Tx interface {
	// ProductForUpdate fetches a product and locks its row for the
	// remainder of the transaction.
	ProductForUpdate(ctx context.Context, id int64) (domain.Product, error)
	UpdateProductStock(ctx context.Context, id int64, stock int) error
	InsertOrder(ctx context.Context, order domain.Order) (int64, error)
	InsertOrderLine(ctx context.Context, line domain.OrderLine) (int64, error)
	SetOrderTotal(ctx context.Context, orderID int64, total float64) error
}

// Store is the full persistence gateway.
type Store interface {
	UserStore
	ProductStore
	OrderStore
	CategoryStore

	// InTransaction runs fn inside one transaction. A non-nil error from fn
	// rolls every write back and is returned unchanged.
	InTransaction(ctx context.Context, fn func(Tx) error) error
}

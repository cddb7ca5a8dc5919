// Package memory implements the storage gateway in process memory. It backs
// unit tests and the dev-mode server; semantics match the postgres store,
// including real rollback of failed transactions.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/retailcore/posd/internal/domain"
	"github.com/retailcore/posd/internal/storage"
)

// Store implements storage.Store in memory.
type Store struct {
	mu         sync.RWMutex
	users      map[int64]domain.User
	products   map[int64]domain.Product
	categories map[int64]domain.Category
	orders     map[int64]domain.Order

	nextUserID    int64
	nextProductID int64
	nextOrderID   int64
	nextLineID    int64
}

var _ storage.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		users:      make(map[int64]domain.User),
		products:   make(map[int64]domain.Product),
		categories: make(map[int64]domain.Category),
		orders:     make(map[int64]domain.Order),
	}
}

// --- seeding helpers (dev mode and tests) -----------------------------------

// PutUser inserts or replaces a user, assigning an id when absent.
func (s *Store) PutUser(user domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == 0 {
		s.nextUserID++
		user.ID = s.nextUserID
	} else if user.ID > s.nextUserID {
		s.nextUserID = user.ID
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = user
	return user
}

// PutProduct inserts or replaces a product, assigning an id when absent.
func (s *Store) PutProduct(product domain.Product) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if product.ID == 0 {
		s.nextProductID++
		product.ID = s.nextProductID
	} else if product.ID > s.nextProductID {
		s.nextProductID = product.ID
	}
	s.products[product.ID] = product
	return product
}

// PutCategory inserts or replaces a category.
func (s *Store) PutCategory(category domain.Category) domain.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	if category.ID == 0 {
		category.ID = int64(len(s.categories) + 1)
	}
	s.categories[category.ID] = category
	return category
}

// --- UserStore --------------------------------------------------------------

func (s *Store) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, storage.ErrNotFound
	}
	return user, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return domain.User{}, storage.ErrNotFound
}

func (s *Store) ListUsersByRole(_ context.Context, role string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.User
	for _, user := range s.users {
		if user.Role == role && user.Active {
			result = append(result, user)
		}
	}
	sortUsers(result)
	return result, nil
}

func (s *Store) SearchUsers(_ context.Context, keyword string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(keyword)
	var result []domain.User
	for _, user := range s.users {
		if strings.Contains(strings.ToLower(user.Username), needle) ||
			strings.Contains(strings.ToLower(user.FullName), needle) ||
			strings.Contains(strings.ToLower(user.Email), needle) {
			result = append(result, user)
		}
	}
	sortUsers(result)
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == user.Username {
			return domain.User{}, storage.ErrDuplicate
		}
	}
	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = time.Now().UTC()
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.ID]
	if !ok {
		return domain.User{}, storage.ErrNotFound
	}
	user.Username = existing.Username
	user.PasswordHash = existing.PasswordHash
	user.CreatedAt = existing.CreatedAt
	s.users[user.ID] = user
	return user, nil
}

func sortUsers(users []domain.User) {
	sort.Slice(users, func(i, j int) bool { return users[i].FullName < users[j].FullName })
}

// --- ProductStore -----------------------------------------------------------

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Product
	for _, p := range s.products {
		if p.Active {
			result = append(result, p)
		}
	}
	sortProducts(result)
	return result, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.Barcode == barcode {
			return p, nil
		}
	}
	return domain.Product{}, storage.ErrNotFound
}

func (s *Store) SearchProducts(_ context.Context, keyword string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(keyword)
	var result []domain.Product
	for _, p := range s.products {
		if p.Active && (strings.Contains(strings.ToLower(p.Name), needle) || p.Barcode == keyword) {
			result = append(result, p)
		}
	}
	sortProducts(result)
	return result, nil
}

func (s *Store) ListLowStockProducts(_ context.Context, threshold int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Product
	for _, p := range s.products {
		if p.Active && p.Stock <= threshold {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Stock != result[j].Stock {
			return result[i].Stock < result[j].Stock
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *Store) UpdateProductPrice(_ context.Context, id int64, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.Price = price
	s.products[id] = p
	return nil
}

func (s *Store) SetProductStock(_ context.Context, id int64, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.Stock = stock
	s.products[id] = p
	return nil
}

func sortProducts(products []domain.Product) {
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
}

// --- CategoryStore ----------------------------------------------------------

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Category
	for _, c := range s.categories {
		if c.Active {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// --- OrderStore -------------------------------------------------------------

func (s *Store) GetOrder(_ context.Context, id int64) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, storage.ErrNotFound
	}
	return s.decorate(order), nil
}

func (s *Store) ListOrders(_ context.Context) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Order
	for _, order := range s.orders {
		result = append(result, s.decorate(order))
	}
	sortOrders(result)
	return result, nil
}

func (s *Store) ListOrdersBetween(_ context.Context, from, to time.Time, status string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Order
	for _, order := range s.orders {
		if order.Status != status || order.OrderDate.Before(from) || order.OrderDate.After(to) {
			continue
		}
		result = append(result, s.decorate(order))
	}
	sortOrders(result)
	return result, nil
}

// decorate fills the customer and employee display names. Caller holds mu.
func (s *Store) decorate(order domain.Order) domain.Order {
	if customer, ok := s.users[order.CustomerID]; ok {
		order.CustomerName = customer.FullName
	}
	if order.EmployeeID != nil {
		if employee, ok := s.users[*order.EmployeeID]; ok {
			order.EmployeeName = employee.FullName
		}
	}
	order.Lines = append([]domain.OrderLine(nil), order.Lines...)
	return order
}

func sortOrders(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderDate.After(orders[j].OrderDate) })
}

// --- Transaction boundary ---------------------------------------------------

// tx stages every write against copies; the store is untouched until commit.
type tx struct {
	store    *Store
	products map[int64]domain.Product
	orders   map[int64]domain.Order

	nextOrderID int64
	nextLineID  int64
}

var _ storage.Tx = (*tx)(nil)

// InTransaction runs fn against a staged copy of the mutable state and swaps
// it in only when fn succeeds. Transactions serialise on the store lock,
// which matches the row-locking postgres store closely enough for tests.
func (s *Store) InTransaction(_ context.Context, fn func(storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := &tx{
		store:       s,
		products:    make(map[int64]domain.Product, len(s.products)),
		orders:      make(map[int64]domain.Order, len(s.orders)),
		nextOrderID: s.nextOrderID,
		nextLineID:  s.nextLineID,
	}
	for id, p := range s.products {
		staged.products[id] = p
	}
	for id, o := range s.orders {
		o.Lines = append([]domain.OrderLine(nil), o.Lines...)
		staged.orders[id] = o
	}

	if err := fn(staged); err != nil {
		return err
	}

	s.products = staged.products
	s.orders = staged.orders
	s.nextOrderID = staged.nextOrderID
	s.nextLineID = staged.nextLineID
	return nil
}

func (t *tx) ProductForUpdate(_ context.Context, id int64) (domain.Product, error) {
	p, ok := t.products[id]
	if !ok {
		return domain.Product{}, storage.ErrNotFound
	}
	return p, nil
}

func (t *tx) UpdateProductStock(_ context.Context, id int64, stock int) error {
	p, ok := t.products[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.Stock = stock
	t.products[id] = p
	return nil
}

func (t *tx) InsertOrder(_ context.Context, order domain.Order) (int64, error) {
	t.nextOrderID++
	order.ID = t.nextOrderID
	order.Lines = nil
	t.orders[order.ID] = order
	return order.ID, nil
}

func (t *tx) InsertOrderLine(_ context.Context, line domain.OrderLine) (int64, error) {
	order, ok := t.orders[line.OrderID]
	if !ok {
		return 0, storage.ErrNotFound
	}
	t.nextLineID++
	line.ID = t.nextLineID
	order.Lines = append(order.Lines, line)
	t.orders[line.OrderID] = order
	return line.ID, nil
}

func (t *tx) SetOrderTotal(_ context.Context, orderID int64, total float64) error {
	order, ok := t.orders[orderID]
	if !ok {
		return storage.ErrNotFound
	}
	order.TotalAmount = total
	t.orders[orderID] = order
	return nil
}

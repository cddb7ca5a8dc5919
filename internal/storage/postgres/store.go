// Package postgres implements the storage gateway on PostgreSQL via
// database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/retailcore/posd/internal/domain"
	"github.com/retailcore/posd/internal/storage"
)

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return storage.ErrDuplicate
	}
	return err
}

// --- UserStore --------------------------------------------------------------

const userColumns = `id, username, password_hash, full_name, email, phone, address, role, active, created_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u              domain.User
		phone, address sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.Email, &phone, &address, &u.Role, &u.Active, &u.CreatedAt); err != nil {
		return domain.User{}, mapErr(err)
	}
	u.Phone = phone.String
	u.Address = address.String
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM pos_users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM pos_users
		WHERE username = $1
	`, username)
	return scanUser(row)
}

func (s *Store) ListUsersByRole(ctx context.Context, role string) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM pos_users
		WHERE role = $1 AND active
		ORDER BY full_name
	`, role)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (s *Store) SearchUsers(ctx context.Context, keyword string) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM pos_users
		WHERE username ILIKE '%' || $1 || '%'
		   OR full_name ILIKE '%' || $1 || '%'
		   OR email ILIKE '%' || $1 || '%'
		ORDER BY full_name
	`, keyword)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]domain.User, error) {
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	user.CreatedAt = time.Now().UTC()

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO pos_users (username, password_hash, full_name, email, phone, address, role, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, user.Username, user.PasswordHash, user.FullName, user.Email, nullString(user.Phone), nullString(user.Address), user.Role, user.Active, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		return domain.User{}, mapErr(err)
	}
	return user, nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User) (domain.User, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE pos_users
		SET full_name = $2, email = $3, phone = $4, address = $5, role = $6, active = $7
		WHERE id = $1
	`, user.ID, user.FullName, user.Email, nullString(user.Phone), nullString(user.Address), user.Role, user.Active)
	if err != nil {
		return domain.User{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.User{}, storage.ErrNotFound
	}
	return s.GetUser(ctx, user.ID)
}

// --- ProductStore -----------------------------------------------------------

const productColumns = `id, category_id, name, description, barcode, price, stock, image_url, active, created_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var (
		p                              domain.Product
		description, barcode, imageURL sql.NullString
	)
	if err := row.Scan(&p.ID, &p.CategoryID, &p.Name, &description, &barcode, &p.Price, &p.Stock, &imageURL, &p.Active, &p.CreatedAt); err != nil {
		return domain.Product{}, mapErr(err)
	}
	p.Description = description.String
	p.Barcode = barcode.String
	p.ImageURL = imageURL.String
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM pos_products
		WHERE active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (s *Store) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM pos_products
		WHERE id = $1
	`, id)
	return scanProduct(row)
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM pos_products
		WHERE barcode = $1
	`, barcode)
	return scanProduct(row)
}

func (s *Store) SearchProducts(ctx context.Context, keyword string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM pos_products
		WHERE active AND (name ILIKE '%' || $1 || '%' OR barcode = $1)
		ORDER BY name
	`, keyword)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (s *Store) ListLowStockProducts(ctx context.Context, threshold int) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM pos_products
		WHERE active AND stock <= $1
		ORDER BY stock, name
	`, threshold)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func collectProducts(rows *sql.Rows) ([]domain.Product, error) {
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) UpdateProductPrice(ctx context.Context, id int64, price float64) error {
	return s.execOnProduct(ctx, `UPDATE pos_products SET price = $2 WHERE id = $1`, id, price)
}

func (s *Store) SetProductStock(ctx context.Context, id int64, stock int) error {
	return s.execOnProduct(ctx, `UPDATE pos_products SET stock = $2 WHERE id = $1`, id, stock)
}

func (s *Store) execOnProduct(ctx context.Context, query string, id int64, arg any) error {
	result, err := s.db.ExecContext(ctx, query, id, arg)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- CategoryStore ----------------------------------------------------------

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, parent_id, active
		FROM pos_categories
		WHERE active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Category
	for rows.Next() {
		var (
			c           domain.Category
			description sql.NullString
			parent      sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.Name, &description, &parent, &c.Active); err != nil {
			return nil, err
		}
		c.Description = description.String
		if parent.Valid {
			c.ParentID = &parent.Int64
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// --- OrderStore -------------------------------------------------------------

const orderColumns = `
	o.id, o.customer_id, c.full_name, o.employee_id, e.full_name,
	o.order_date, o.total_amount, o.status, o.order_type, o.notes`

const orderJoins = `
	FROM pos_orders o
	JOIN pos_users c ON c.id = o.customer_id
	LEFT JOIN pos_users e ON e.id = o.employee_id`

func scanOrder(row interface{ Scan(...any) error }) (domain.Order, error) {
	var (
		o            domain.Order
		employeeID   sql.NullInt64
		employeeName sql.NullString
		notes        sql.NullString
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &employeeID, &employeeName,
		&o.OrderDate, &o.TotalAmount, &o.Status, &o.OrderType, &notes); err != nil {
		return domain.Order{}, mapErr(err)
	}
	if employeeID.Valid {
		o.EmployeeID = &employeeID.Int64
	}
	o.EmployeeName = employeeName.String
	o.Notes = notes.String
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+orderColumns+orderJoins+` WHERE o.id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, err
	}

	lines, err := s.loadLines(ctx, []int64{order.ID})
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines[order.ID]
	return order, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT`+orderColumns+orderJoins+` ORDER BY o.order_date DESC`)
	if err != nil {
		return nil, err
	}
	return s.collectOrders(ctx, rows)
}

func (s *Store) ListOrdersBetween(ctx context.Context, from, to time.Time, status string) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+orderColumns+orderJoins+`
		WHERE o.order_date >= $1 AND o.order_date <= $2 AND o.status = $3
		ORDER BY o.order_date DESC
	`, from, to, status)
	if err != nil {
		return nil, err
	}
	return s.collectOrders(ctx, rows)
}

func (s *Store) collectOrders(ctx context.Context, rows *sql.Rows) ([]domain.Order, error) {
	defer rows.Close()

	var (
		result []domain.Order
		ids    []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return result, nil
	}

	lines, err := s.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Lines = lines[result[i].ID]
	}
	return result, nil
}

func (s *Store) loadLines(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, subtotal
		FROM pos_order_lines
		WHERE order_id = ANY($1)
		ORDER BY id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64][]domain.OrderLine)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.ProductName,
			&line.Quantity, &line.UnitPrice, &line.Subtotal); err != nil {
			return nil, err
		}
		result[line.OrderID] = append(result[line.OrderID], line)
	}
	return result, rows.Err()
}

// --- Transaction boundary ---------------------------------------------------

type tx struct {
	tx *sql.Tx
}

var _ storage.Tx = (*tx)(nil)

// InTransaction runs fn inside a single database transaction. Conflicting
// stock decrements serialise on the row locks taken by ProductForUpdate.
func (s *Store) InTransaction(ctx context.Context, fn func(storage.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&tx{tx: dbTx}); err != nil {
		if rbErr := dbTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (t *tx) ProductForUpdate(ctx context.Context, id int64) (domain.Product, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM pos_products
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanProduct(row)
}

func (t *tx) UpdateProductStock(ctx context.Context, id int64, stock int) error {
	result, err := t.tx.ExecContext(ctx, `UPDATE pos_products SET stock = $2 WHERE id = $1`, id, stock)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *tx) InsertOrder(ctx context.Context, order domain.Order) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO pos_orders (customer_id, employee_id, order_date, total_amount, status, order_type, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, order.CustomerID, nullInt64(order.EmployeeID), order.OrderDate, order.TotalAmount,
		order.Status, order.OrderType, nullString(order.Notes)).Scan(&id)
	if err != nil {
		return 0, mapErr(err)
	}
	return id, nil
}

func (t *tx) InsertOrderLine(ctx context.Context, line domain.OrderLine) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO pos_order_lines (order_id, product_id, product_name, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, line.OrderID, line.ProductID, line.ProductName, line.Quantity, line.UnitPrice, line.Subtotal).Scan(&id)
	if err != nil {
		return 0, mapErr(err)
	}
	return id, nil
}

func (t *tx) SetOrderTotal(ctx context.Context, orderID int64, total float64) error {
	result, err := t.tx.ExecContext(ctx, `UPDATE pos_orders SET total_amount = $2 WHERE id = $1`, orderID, total)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

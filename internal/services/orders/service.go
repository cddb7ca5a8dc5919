// Package orders implements order placement and reporting. Placing an order
// is the one multi-step transaction in the system: validate stock, persist
// the order and its lines, decrement stock, total up — all or nothing.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/retailcore/posd/internal/domain"
	"github.com/retailcore/posd/internal/protocol"
	"github.com/retailcore/posd/internal/services/authz"
	"github.com/retailcore/posd/internal/session"
	"github.com/retailcore/posd/internal/storage"
	"github.com/retailcore/posd/pkg/logger"
)

// ErrEmptyOrder rejects orders with no lines before any transaction opens.
var ErrEmptyOrder = errors.New("order has no lines")

// ProductNotFoundError names the offending line when a referenced product
// does not exist.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product ID %d not found", e.ProductID)
}

// InsufficientStockError reports a line demanding more than is available.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s. Available: %d", e.ProductName, e.Available)
}

// LineInput is one requested order position. UnitPrice overrides the catalog
// price when present (e.g. a discount applied at the till).
type LineInput struct {
	ProductID int64    `json:"productId"`
	Quantity  int      `json:"quantity"`
	UnitPrice *float64 `json:"unitPrice,omitempty"`
}

// CreateOrderInput is the decoded CREATE_ORDER payload.
type CreateOrderInput struct {
	CustomerID int64       `json:"customerId"`
	EmployeeID *int64      `json:"employeeId,omitempty"`
	OrderType  string      `json:"orderType,omitempty"`
	Notes      string      `json:"notes,omitempty"`
	Lines      []LineInput `json:"lines"`
}

// Service places orders and serves order history and sales reports.
type Service struct {
	store    storage.Store
	sessions *session.Store
	log      *logger.Logger
	now      func() time.Time
}

// New constructs the order service.
func New(store storage.Store, sessions *session.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("orders")
	}
	return &Service{store: store, sessions: sessions, log: log, now: time.Now}
}

// Place runs the order-commit workflow and returns the committed order with
// its lines. Business violations come back as ErrEmptyOrder,
// *ProductNotFoundError or *InsufficientStockError; any error means nothing
// was persisted.
func (s *Service) Place(ctx context.Context, input CreateOrderInput) (domain.Order, error) {
	if len(input.Lines) == 0 {
		return domain.Order{}, ErrEmptyOrder
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return domain.Order{}, fmt.Errorf("invalid quantity %d for product %d", line.Quantity, line.ProductID)
		}
		if line.UnitPrice != nil && *line.UnitPrice < 0 {
			return domain.Order{}, fmt.Errorf("invalid unit price for product %d", line.ProductID)
		}
	}

	orderType := input.OrderType
	if orderType == "" {
		orderType = domain.OrderTypePOS
	}

	var orderID int64
	err := s.store.InTransaction(ctx, func(tx storage.Tx) error {
		id, err := tx.InsertOrder(ctx, domain.Order{
			CustomerID: input.CustomerID,
			EmployeeID: input.EmployeeID,
			OrderDate:  s.now().UTC(),
			Status:     domain.OrderStatusCompleted,
			OrderType:  orderType,
			Notes:      input.Notes,
		})
		if err != nil {
			return err
		}
		orderID = id

		total := 0.0
		for _, line := range input.Lines {
			product, err := tx.ProductForUpdate(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return &ProductNotFoundError{ProductID: line.ProductID}
				}
				return err
			}
			if product.Stock < line.Quantity {
				return &InsufficientStockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Available:   product.Stock,
					Requested:   line.Quantity,
				}
			}

			unitPrice := product.Price
			if line.UnitPrice != nil {
				unitPrice = *line.UnitPrice
			}
			subtotal := unitPrice * float64(line.Quantity)
			total += subtotal

			if _, err := tx.InsertOrderLine(ctx, domain.OrderLine{
				OrderID:     orderID,
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    line.Quantity,
				UnitPrice:   unitPrice,
				Subtotal:    subtotal,
			}); err != nil {
				return err
			}
			if err := tx.UpdateProductStock(ctx, product.ID, product.Stock-line.Quantity); err != nil {
				return err
			}
		}
		return tx.SetOrderTotal(ctx, orderID, total)
	})
	if err != nil {
		return domain.Order{}, err
	}

	// Re-read the committed order for the response payload.
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	s.log.WithField("order_id", order.ID).
		WithField("lines", len(order.Lines)).
		WithField("total", order.TotalAmount).
		Info("order committed")
	return order, nil
}

// CreateOrder handles the CREATE_ORDER action.
func (s *Service) CreateOrder(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if _, errResp := authz.RequireSession(s.sessions, req); errResp != nil {
		return errResp, nil
	}
	var input CreateOrderInput
	if err := req.Bind(&input); err != nil {
		return protocol.Errorf(req.RequestID, "Invalid order data"), nil
	}

	order, err := s.Place(ctx, input)
	if err != nil {
		var notFound *ProductNotFoundError
		var noStock *InsufficientStockError
		switch {
		case errors.Is(err, ErrEmptyOrder):
			return protocol.Errorf(req.RequestID, "Invalid order data"), nil
		case errors.As(err, &notFound):
			return protocol.Errorf(req.RequestID, "Product ID %d not found", notFound.ProductID), nil
		case errors.As(err, &noStock):
			return protocol.Errorf(req.RequestID, "Insufficient stock for %s. Available: %d", noStock.ProductName, noStock.Available), nil
		default:
			return nil, err
		}
	}
	return protocol.OK(order, "Order created successfully", req.RequestID), nil
}

// GetOrders handles GET_ORDERS.
func (s *Service) GetOrders(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if _, errResp := authz.RequireSession(s.sessions, req); errResp != nil {
		return errResp, nil
	}
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.OK(orders, "Get orders successful", req.RequestID), nil
}

// GetOrderDetails handles GET_ORDER_DETAILS.
func (s *Service) GetOrderDetails(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if _, errResp := authz.RequireSession(s.sessions, req); errResp != nil {
		return errResp, nil
	}
	var data struct {
		OrderID int64 `json:"orderId"`
	}
	if err := req.Bind(&data); err != nil {
		return protocol.Errorf(req.RequestID, "Order id required"), nil
	}
	order, err := s.store.GetOrder(ctx, data.OrderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return protocol.Errorf(req.RequestID, "Order not found"), nil
		}
		return nil, err
	}
	return protocol.OK(order, "Order details retrieved", req.RequestID), nil
}

// GetSalesReport handles GET_SALES_REPORT. Omitted bounds default to the
// last month.
func (s *Service) GetSalesReport(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if _, errResp := authz.RequireSession(s.sessions, req); errResp != nil {
		return errResp, nil
	}
	now := s.now().UTC()
	from := now.AddDate(0, -1, 0)
	to := now
	if len(req.Data) > 0 {
		var data struct {
			FromDate *time.Time `json:"fromDate"`
			ToDate   *time.Time `json:"toDate"`
		}
		if err := req.Bind(&data); err != nil {
			return protocol.Errorf(req.RequestID, "Invalid report range"), nil
		}
		if data.FromDate != nil {
			from = data.FromDate.UTC()
		}
		if data.ToDate != nil {
			to = data.ToDate.UTC()
		}
	}

	completed, err := s.store.ListOrdersBetween(ctx, from, to, domain.OrderStatusCompleted)
	if err != nil {
		return nil, err
	}

	report := domain.SalesReport{FromDate: from, ToDate: to, Orders: completed, TotalOrders: len(completed)}
	for _, order := range completed {
		report.TotalRevenue += order.TotalAmount
	}
	if report.TotalOrders > 0 {
		report.AverageOrderValue = report.TotalRevenue / float64(report.TotalOrders)
	}
	return protocol.OK(report, "Sales report retrieved", req.RequestID), nil
}

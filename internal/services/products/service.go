// Package products serves the product catalog actions.
package products

import (
	"context"
	"errors"

	"github.com/retailcore/posd/internal/protocol"
	"github.com/retailcore/posd/internal/services/authz"
	"github.com/retailcore/posd/internal/session"
	"github.com/retailcore/posd/internal/storage"
	"github.com/retailcore/posd/pkg/logger"
)

// defaultLowStockThreshold applies when the client omits one.
const defaultLowStockThreshold = 10

// Service answers product catalog queries and admin updates.
type Service struct {
	store    storage.ProductStore
	sessions *session.Store
	log      *logger.Logger
}

// New constructs the product service.
func New(store storage.ProductStore, sessions *session.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("products")
	}
	return &Service{store: store, sessions: sessions, log: log}
}

// GetProducts returns every active product.
func (s *Service) GetProducts(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if _, errResp := authz.RequireSession(s.sessions, req); errResp != nil {
		return errResp, nil
	}
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.OK(products, "Get products successful", req.RequestID), nil
}

// SearchProducts filters by name substring or exact barcode.
func (s *Service) SearchProducts(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if _, errResp := authz.RequireSession(s.sessions, req); errResp != nil {
		return errResp, nil
	}
	var data struct {
		Keyword string `json:"keyword"`
	}
	if err := req.Bind(&data); err != nil {
		return protocol.Errorf(req.RequestID, "Keyword required"), nil
	}
	products, err := s.store.SearchProducts(ctx, data.Keyword)
	if err != nil {
		return nil, err
	}
	return protocol.OK(products, "Search successful", req.RequestID), nil
}

// GetProductByBarcode resolves one product by its scanned barcode.
func (s *Service) GetProductByBarcode(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if _, errResp := authz.RequireSession(s.sessions, req); errResp != nil {
		return errResp, nil
	}
	var data struct {
		Barcode string `json:"barcode"`
	}
	if err := req.Bind(&data); err != nil || data.Barcode == "" {
		return protocol.Errorf(req.RequestID, "Barcode required"), nil
	}
	product, err := s.store.GetProductByBarcode(ctx, data.Barcode)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return protocol.Errorf(req.RequestID, "Product not found"), nil
		}
		return nil, err
	}
	return protocol.OK(product, "Product found", req.RequestID), nil
}

// UpdateProductPrice sets a new unit price.
func (s *Service) UpdateProductPrice(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	sess, errResp := authz.RequireSession(s.sessions, req)
	if errResp != nil {
		return errResp, nil
	}
	var data struct {
		ProductID int64   `json:"productId"`
		NewPrice  float64 `json:"newPrice"`
	}
	if err := req.Bind(&data); err != nil {
		return protocol.Errorf(req.RequestID, "Invalid data"), nil
	}
	if data.NewPrice < 0 {
		return protocol.Errorf(req.RequestID, "Price cannot be negative"), nil
	}
	if err := s.store.UpdateProductPrice(ctx, data.ProductID, data.NewPrice); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return protocol.Errorf(req.RequestID, "Product not found"), nil
		}
		return nil, err
	}
	s.log.WithField("product_id", data.ProductID).
		WithField("price", data.NewPrice).
		WithField("by", sess.User.Username).
		Info("product price updated")
	return protocol.OK(nil, "Price updated", req.RequestID), nil
}

// UpdateProductStock sets an absolute stock level, e.g. after a delivery or
// a stocktake. Sales never go through here; they decrement inside the order
// transaction.
func (s *Service) UpdateProductStock(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	sess, errResp := authz.RequireSession(s.sessions, req)
	if errResp != nil {
		return errResp, nil
	}
	var data struct {
		ProductID int64 `json:"productId"`
		NewStock  int   `json:"newStock"`
	}
	if err := req.Bind(&data); err != nil {
		return protocol.Errorf(req.RequestID, "Invalid data"), nil
	}
	if data.NewStock < 0 {
		return protocol.Errorf(req.RequestID, "Stock cannot be negative"), nil
	}
	if err := s.store.SetProductStock(ctx, data.ProductID, data.NewStock); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return protocol.Errorf(req.RequestID, "Product not found"), nil
		}
		return nil, err
	}
	s.log.WithField("product_id", data.ProductID).
		WithField("stock", data.NewStock).
		WithField("by", sess.User.Username).
		Info("product stock updated")
	return protocol.OK(nil, "Stock updated", req.RequestID), nil
}

// GetLowStockProducts lists products at or below the reorder threshold.
func (s *Service) GetLowStockProducts(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if _, errResp := authz.RequireSession(s.sessions, req); errResp != nil {
		return errResp, nil
	}
	threshold := defaultLowStockThreshold
	if len(req.Data) > 0 {
		var data struct {
			Threshold *int `json:"threshold"`
		}
		if err := req.Bind(&data); err == nil && data.Threshold != nil {
			threshold = *data.Threshold
		}
	}
	products, err := s.store.ListLowStockProducts(ctx, threshold)
	if err != nil {
		return nil, err
	}
	return protocol.OK(products, "Low stock products retrieved", req.RequestID), nil
}

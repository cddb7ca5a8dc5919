package products

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailcore/posd/internal/domain"
	"github.com/retailcore/posd/internal/protocol"
	"github.com/retailcore/posd/internal/session"
	"github.com/retailcore/posd/internal/storage/memory"
)

func newFixture(t *testing.T) (*Service, *memory.Store, string) {
	t.Helper()
	store := memory.New()
	sessions := session.NewStore()
	user := store.PutUser(domain.User{Username: "till", FullName: "Till", Role: domain.RoleEmployee, Active: true})
	token, err := sessions.Create(user)
	require.NoError(t, err)
	return New(store, sessions, nil), store, token
}

func request(t *testing.T, action, token string, data any) *protocol.Request {
	t.Helper()
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		require.NoError(t, err)
		raw = b
	}
	return &protocol.Request{Action: action, Data: raw, SessionID: token, RequestID: "req-1"}
}

func TestGetProductsRequiresSession(t *testing.T) {
	svc, _, _ := newFixture(t)

	resp, err := svc.GetProducts(context.Background(), request(t, protocol.ActionGetProducts, "", nil))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Session required", resp.Message)

	resp, err = svc.GetProducts(context.Background(), request(t, protocol.ActionGetProducts, "bogus-token", nil))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid session", resp.Message)
}

func TestGetProductByBarcode(t *testing.T) {
	svc, store, token := newFixture(t)
	store.PutProduct(domain.Product{Name: "Espresso Beans", Barcode: "4006381333931", Price: 10, Stock: 5, Active: true})

	resp, err := svc.GetProductByBarcode(context.Background(), request(t, protocol.ActionGetProductByBarcode, token, map[string]string{"barcode": "4006381333931"}))
	require.NoError(t, err)
	require.True(t, resp.Success)
	product, ok := resp.Data.(domain.Product)
	require.True(t, ok)
	assert.Equal(t, "Espresso Beans", product.Name)

	resp, err = svc.GetProductByBarcode(context.Background(), request(t, protocol.ActionGetProductByBarcode, token, map[string]string{"barcode": "0000000000000"}))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Product not found", resp.Message)
}

func TestUpdateProductPrice(t *testing.T) {
	svc, store, token := newFixture(t)
	prod := store.PutProduct(domain.Product{Name: "Mug", Price: 8, Stock: 4, Active: true})

	resp, err := svc.UpdateProductPrice(context.Background(), request(t, protocol.ActionUpdateProductPrice, token, map[string]any{"productId": prod.ID, "newPrice": 9.5}))
	require.NoError(t, err)
	assert.True(t, resp.Success)

	after, err := store.GetProduct(context.Background(), prod.ID)
	require.NoError(t, err)
	assert.Equal(t, 9.5, after.Price)

	resp, err = svc.UpdateProductPrice(context.Background(), request(t, protocol.ActionUpdateProductPrice, token, map[string]any{"productId": prod.ID, "newPrice": -1}))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Price cannot be negative", resp.Message)

	resp, err = svc.UpdateProductPrice(context.Background(), request(t, protocol.ActionUpdateProductPrice, token, map[string]any{"productId": 999, "newPrice": 1}))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Product not found", resp.Message)
}

func TestUpdateProductStock(t *testing.T) {
	svc, store, token := newFixture(t)
	prod := store.PutProduct(domain.Product{Name: "Mug", Price: 8, Stock: 4, Active: true})

	resp, err := svc.UpdateProductStock(context.Background(), request(t, protocol.ActionUpdateProductStock, token, map[string]any{"productId": prod.ID, "newStock": 40}))
	require.NoError(t, err)
	assert.True(t, resp.Success)

	after, err := store.GetProduct(context.Background(), prod.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, after.Stock)

	resp, err = svc.UpdateProductStock(context.Background(), request(t, protocol.ActionUpdateProductStock, token, map[string]any{"productId": prod.ID, "newStock": -5}))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Stock cannot be negative", resp.Message)
}

func TestGetLowStockProducts(t *testing.T) {
	svc, store, token := newFixture(t)
	store.PutProduct(domain.Product{Name: "Plenty", Price: 1, Stock: 50, Active: true})
	low := store.PutProduct(domain.Product{Name: "Scarce", Price: 1, Stock: 3, Active: true})
	store.PutProduct(domain.Product{Name: "Borderline", Price: 1, Stock: 10, Active: true})

	// Default threshold of 10 is inclusive.
	resp, err := svc.GetLowStockProducts(context.Background(), request(t, protocol.ActionGetLowStockProducts, token, nil))
	require.NoError(t, err)
	require.True(t, resp.Success)
	products, ok := resp.Data.([]domain.Product)
	require.True(t, ok)
	require.Len(t, products, 2)

	resp, err = svc.GetLowStockProducts(context.Background(), request(t, protocol.ActionGetLowStockProducts, token, map[string]int{"threshold": 5}))
	require.NoError(t, err)
	products, ok = resp.Data.([]domain.Product)
	require.True(t, ok)
	require.Len(t, products, 1)
	assert.Equal(t, low.ID, products[0].ID)
}

func TestSearchProducts(t *testing.T) {
	svc, store, token := newFixture(t)
	store.PutProduct(domain.Product{Name: "Espresso Beans", Barcode: "111", Price: 10, Stock: 5, Active: true})
	store.PutProduct(domain.Product{Name: "Filter Coffee", Barcode: "222", Price: 7, Stock: 5, Active: true})

	resp, err := svc.SearchProducts(context.Background(), request(t, protocol.ActionSearchProducts, token, map[string]string{"keyword": "espresso"}))
	require.NoError(t, err)
	require.True(t, resp.Success)
	products, ok := resp.Data.([]domain.Product)
	require.True(t, ok)
	require.Len(t, products, 1)
	assert.Equal(t, "Espresso Beans", products[0].Name)
}

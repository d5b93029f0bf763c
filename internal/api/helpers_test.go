package api

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/cart"
	"storefront-service/internal/catalog"
	"storefront-service/internal/domain"
	"storefront-service/internal/pkg/logger"
	"storefront-service/internal/store"
)

// Helper function to get a pointer (useful for optional input fields).
func PtrTo[T any](v T) *T {
	return &v
}

type stubFetcher struct {
	products []domain.Product
	err      error
}

func (f stubFetcher) FetchProducts(context.Context) ([]domain.Product, error) {
	return f.products, f.err
}

func fixtureProducts() []domain.Product {
	return []domain.Product{
		{ID: "1", Title: "Fjallraven Backpack", Price: decimal.RequireFromString("9.99"), Category: "men's clothing"},
		{ID: "2", Title: "Slim Fit T-Shirt", Price: decimal.RequireFromString("22.3"), Category: "men's clothing"},
		{ID: "9", Title: "Portable Hard Drive", Price: decimal.RequireFromString("64"), Category: "electronics"},
	}
}

// newCatalog returns a catalog store in the requested state.
func newCatalog(t *testing.T, status catalog.Status) *catalog.Store {
	t.Helper()
	var f stubFetcher
	switch status {
	case catalog.StatusReady:
		f.products = fixtureProducts()
	case catalog.StatusFailed:
		f.err = &catalog.FetchError{StatusCode: 500, Message: "API error 500"}
	case catalog.StatusLoading:
		return catalog.NewStore(f, logger.NewNop())
	}
	s := catalog.NewStore(f, logger.NewNop())
	_, _ = s.Load(context.Background())
	require.Equal(t, status, s.Status())
	return s
}

func newLedger(t *testing.T) (*cart.Ledger, *store.MemoryStore) {
	t.Helper()
	kv := store.NewMemoryStore()
	return cart.NewLedger(context.Background(), kv, cart.DefaultKey, logger.NewNop()), kv
}

// MockCartLedger is a mock implementation of CartLedger.
type MockCartLedger struct {
	mock.Mock
}

func (m *MockCartLedger) Add(ctx context.Context, product domain.Product, qty int) (domain.CartLine, error) {
	args := m.Called(ctx, product, qty)
	return args.Get(0).(domain.CartLine), args.Error(1)
}

func (m *MockCartLedger) Remove(ctx context.Context, id domain.ProductID) {
	m.Called(ctx, id)
}

func (m *MockCartLedger) SetQuantity(ctx context.Context, id domain.ProductID, qty float64) (domain.CartLine, bool) {
	args := m.Called(ctx, id, qty)
	return args.Get(0).(domain.CartLine), args.Bool(1)
}

func (m *MockCartLedger) Clear(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockCartLedger) View() cart.View {
	args := m.Called()
	return args.Get(0).(cart.View)
}

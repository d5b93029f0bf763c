package cart

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/domain"
	"storefront-service/internal/pkg/logger"
	"storefront-service/internal/store"
)

// MockStorer is a mock implementation of store.KeyValueStorer
type MockStorer struct {
	mock.Mock
}

func (m *MockStorer) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	var value []byte
	if arg0 := args.Get(0); arg0 != nil {
		value = arg0.([]byte)
	}
	return value, args.Error(1)
}

func (m *MockStorer) Set(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockStorer) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStorer) Close() error {
	return m.Called().Error(0)
}

func product(id string, price string) domain.Product {
	return domain.Product{
		ID:          domain.ProductID(id),
		Title:       "Product " + id,
		Price:       decimal.RequireFromString(price),
		Category:    "misc",
		Image:       "https://img.example/" + id + ".png",
		Description: "description " + id,
	}
}

func newMemoryLedger(t *testing.T) (*Ledger, *store.MemoryStore) {
	t.Helper()
	kv := store.NewMemoryStore()
	return NewLedger(context.Background(), kv, DefaultKey, logger.NewNop()), kv
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got.String())
}

func TestLedger_AddSingleProduct(t *testing.T) {
	l, _ := newMemoryLedger(t)
	ctx := context.Background()

	line, err := l.Add(ctx, product("7", "9.99"), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, 1, l.Count())
	requireDecimal(t, "9.99", l.Subtotal())
}

func TestLedger_AddIncrementsExistingLine(t *testing.T) {
	l, _ := newMemoryLedger(t)
	ctx := context.Background()

	_, err := l.Add(ctx, product("7", "9.99"), 1)
	require.NoError(t, err)
	_, err = l.Add(ctx, product("7", "9.99"), 2)
	require.NoError(t, err)

	line, ok := l.Line("7")
	require.True(t, ok)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, 3, l.Count())
	requireDecimal(t, "29.97", l.Subtotal())
}

func TestLedger_AddKeepsFirstSnapshot(t *testing.T) {
	l, _ := newMemoryLedger(t)
	ctx := context.Background()

	original := product("7", "9.99")
	_, err := l.Add(ctx, original, 1)
	require.NoError(t, err)

	repriced := original
	repriced.Price = decimal.RequireFromString("19.99")
	repriced.Title = "Renamed"
	_, err = l.Add(ctx, repriced, 1)
	require.NoError(t, err)

	line, _ := l.Line("7")
	assert.Equal(t, "Product 7", line.Product.Title)
	requireDecimal(t, "19.98", l.Subtotal())
}

func TestLedger_AddRejectsNonPositiveQuantity(t *testing.T) {
	l, kv := newMemoryLedger(t)
	ctx := context.Background()

	for _, qty := range []int{0, -3} {
		_, err := l.Add(ctx, product("7", "9.99"), qty)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
	_, err := l.Add(ctx, domain.Product{Title: "no id"}, 1)
	assert.ErrorIs(t, err, ErrMissingID)

	assert.Empty(t, l.Lines())
	_, err = kv.Get(ctx, DefaultKey)
	assert.ErrorIs(t, err, store.ErrKeyNotFound, "rejected adds must not write")
}

func TestLedger_SetQuantity(t *testing.T) {
	tests := []struct {
		name string
		qty  float64
		want int
	}{
		{"zero clamps to one", 0, 1},
		{"negative clamps to one", -3, 1},
		{"rounds down", 4.4, 4},
		{"rounds half up", 2.5, 3},
		{"fraction below half", 0.4, 1},
		{"whole number", 5, 5},
		{"NaN becomes one", math.NaN(), 1},
		{"huge is capped", math.Inf(1), math.MaxInt32},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, _ := newMemoryLedger(t)
			ctx := context.Background()
			_, err := l.Add(ctx, product("7", "9.99"), 2)
			require.NoError(t, err)

			line, ok := l.SetQuantity(ctx, "7", tc.qty)
			require.True(t, ok)
			assert.Equal(t, tc.want, line.Quantity)

			stored, _ := l.Line("7")
			assert.Equal(t, tc.want, stored.Quantity)
		})
	}
}

func TestLedger_SetQuantityOnAbsentIDIsNoop(t *testing.T) {
	kv := new(MockStorer)
	kv.On("Get", mock.Anything, DefaultKey).Return(nil, store.ErrKeyNotFound).Once()
	kv.On("Set", mock.Anything, DefaultKey, mock.Anything).Return(nil).Once()

	l := NewLedger(context.Background(), kv, DefaultKey, logger.NewNop())
	_, err := l.Add(context.Background(), product("7", "9.99"), 1)
	require.NoError(t, err)
	before := l.View()

	_, ok := l.SetQuantity(context.Background(), "999", 5)
	assert.False(t, ok)
	assert.Equal(t, before, l.View())

	_, ok = l.Line("999")
	assert.False(t, ok, "set must never create a line")
	kv.AssertExpectations(t) // exactly one Set, from Add
}

func TestLedger_RemoveIsIdempotent(t *testing.T) {
	l, _ := newMemoryLedger(t)
	ctx := context.Background()
	_, _ = l.Add(ctx, product("7", "9.99"), 1)
	_, _ = l.Add(ctx, product("8", "1.50"), 4)

	l.Remove(ctx, "7")
	once := l.View()
	l.Remove(ctx, "7")
	twice := l.View()

	assert.Equal(t, once, twice)
	assert.Equal(t, 4, twice.Count)
	requireDecimal(t, "6.00", twice.Subtotal)
}

func TestLedger_Clear(t *testing.T) {
	l, kv := newMemoryLedger(t)
	ctx := context.Background()
	_, _ = l.Add(ctx, product("7", "9.99"), 3)

	l.Clear(ctx)

	assert.Empty(t, l.Lines())
	assert.Zero(t, l.Count())
	requireDecimal(t, "0", l.Subtotal())

	raw, err := kv.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"lines":{}}`, string(raw))
}

func TestLedger_LinesOrderedByID(t *testing.T) {
	l, _ := newMemoryLedger(t)
	ctx := context.Background()
	for _, id := range []string{"10", "2", "abc", "1"} {
		_, err := l.Add(ctx, product(id, "1"), 1)
		require.NoError(t, err)
	}

	var got []domain.ProductID
	for _, line := range l.Lines() {
		got = append(got, line.Product.ID)
	}
	assert.Equal(t, []domain.ProductID{"1", "2", "10", "abc"}, got)
}

func TestLedger_PersistenceRoundTrip(t *testing.T) {
	l, kv := newMemoryLedger(t)
	ctx := context.Background()
	_, _ = l.Add(ctx, product("7", "9.99"), 2)
	_, _ = l.Add(ctx, product("12", "109.95"), 1)
	_, _ = l.SetQuantity(ctx, "12", 4)
	_, _ = l.Add(ctx, product("3", "0.10"), 1)
	l.Remove(ctx, "3")

	restored := NewLedger(ctx, kv, DefaultKey, logger.NewNop())

	assert.Equal(t, l.Lines(), restored.Lines())
	assert.Equal(t, l.Count(), restored.Count())
	assert.True(t, l.Subtotal().Equal(restored.Subtotal()))
	requireDecimal(t, "459.78", restored.Subtotal())
}

func TestLedger_EveryMutationIsPersisted(t *testing.T) {
	l, kv := newMemoryLedger(t)
	ctx := context.Background()
	v := domain.NewValidator()

	check := func() {
		t.Helper()
		raw, err := kv.Get(ctx, DefaultKey)
		require.NoError(t, err)
		lines, err := decode(raw, v)
		require.NoError(t, err)
		assert.Len(t, lines, len(l.Lines()))
		for _, line := range l.Lines() {
			assert.Equal(t, line, lines[line.Product.ID])
		}
	}

	_, _ = l.Add(ctx, product("1", "2.5"), 1)
	check()
	_, _ = l.SetQuantity(ctx, "1", 6)
	check()
	_, _ = l.Add(ctx, product("2", "3.25"), 2)
	check()
	l.Remove(ctx, "1")
	check()
	l.Clear(ctx)
	check()
}

func TestLedger_WriteFailureIsSwallowed(t *testing.T) {
	kv := new(MockStorer)
	kv.On("Get", mock.Anything, DefaultKey).Return(nil, store.ErrKeyNotFound).Once()
	kv.On("Set", mock.Anything, DefaultKey, mock.Anything).Return(errors.New("quota exceeded"))

	l := NewLedger(context.Background(), kv, DefaultKey, logger.NewNop())
	line, err := l.Add(context.Background(), product("7", "9.99"), 2)

	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, 2, l.Count(), "in-memory cart stays authoritative")
	kv.AssertNumberOfCalls(t, "Set", 1)
}

func TestLedger_RestoreFallsBackToEmpty(t *testing.T) {
	valid := `{"version":1,"lines":{"7":{"product":{"id":7,"title":"Mug","price":9.99,"category":"home","image":"","description":""},"qty":2}}}`
	cases := map[string]string{
		"not json":           `{{{`,
		"legacy bare object": `{"7":{"product":{"id":7,"price":9.99},"qty":1}}`,
		"future version":     `{"version":2,"lines":{}}`,
		"missing lines":      `{"version":1}`,
		"aliased key":        `{"version":1,"lines":{"8":{"product":{"id":7,"price":1},"qty":1}}}`,
		"zero quantity":      `{"version":1,"lines":{"7":{"product":{"id":7,"price":1},"qty":0}}}`,
		"negative price":     `{"version":1,"lines":{"7":{"product":{"id":7,"price":-1},"qty":1}}}`,
		"unknown field":      `{"version":1,"lines":{},"extra":true}`,
		"trailing data":      valid + `{}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			kv := store.NewMemoryStore()
			require.NoError(t, kv.Set(context.Background(), DefaultKey, []byte(raw)))

			l := NewLedger(context.Background(), kv, DefaultKey, logger.NewNop())
			assert.Empty(t, l.Lines())
			assert.Zero(t, l.Count())
		})
	}

	t.Run("valid value restores", func(t *testing.T) {
		kv := store.NewMemoryStore()
		require.NoError(t, kv.Set(context.Background(), DefaultKey, []byte(valid)))

		l := NewLedger(context.Background(), kv, DefaultKey, logger.NewNop())
		assert.Equal(t, 2, l.Count())
		requireDecimal(t, "19.98", l.Subtotal())
	})
}

func TestLedger_RestoreReadErrorStartsEmpty(t *testing.T) {
	kv := new(MockStorer)
	kv.On("Get", mock.Anything, "custom").Return(nil, errors.New("disk unavailable")).Once()

	l := NewLedger(context.Background(), kv, "custom", logger.NewNop())
	assert.Empty(t, l.Lines())
	kv.AssertExpectations(t)
}

func TestLedger_QuantityInvariantUnderRandomOperations(t *testing.T) {
	l, kv := newMemoryLedger(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	ids := []string{"1", "2", "3", "4"}

	for i := 0; i < 500; i++ {
		id := ids[rng.Intn(len(ids))]
		switch rng.Intn(5) {
		case 0:
			_, _ = l.Add(ctx, product(id, "1.25"), rng.Intn(5)-1)
		case 1:
			l.Remove(ctx, domain.ProductID(id))
		case 2:
			_, _ = l.SetQuantity(ctx, domain.ProductID(id), rng.Float64()*10-5)
		case 3:
			if rng.Intn(10) == 0 {
				l.Clear(ctx)
			}
		default:
			_, _ = l.Add(ctx, product(id, "1.25"), 1)
		}

		view := l.View()
		sum := 0
		total := decimal.Zero
		for _, line := range view.Lines {
			require.GreaterOrEqual(t, line.Quantity, 1)
			sum += line.Quantity
			total = total.Add(line.Product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		require.Equal(t, sum, view.Count)
		require.True(t, total.Round(2).Equal(view.Subtotal))
	}

	restored := NewLedger(ctx, kv, DefaultKey, logger.NewNop())
	assert.Equal(t, l.Lines(), restored.Lines())
}

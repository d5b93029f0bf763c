// Package cart implements the cart ledger: quantity mutations, derived totals
// and best-effort persistence of the cart after every change.
package cart

import (
	"context"
	"math"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"storefront-service/internal/domain"
	"storefront-service/internal/pkg/logger"
	"storefront-service/internal/store"
)

var (
	// ErrInvalidQuantity is returned by Add for quantities below 1.
	ErrInvalidQuantity = errors.New("cart: quantity must be at least 1")
	// ErrMissingID is returned by Add for a product without an id.
	ErrMissingID = errors.New("cart: product has no id")
)

const maxQuantity = math.MaxInt32

// View is a consistent read of the cart with its derived totals.
type View struct {
	Lines    []domain.CartLine
	Count    int
	Subtotal decimal.Decimal
}

// Ledger owns the cart. Mutations are serialized and each one that changes the
// cart is followed by a full write of the cart to storage, in mutation order.
type Ledger struct {
	storage  store.KeyValueStorer
	key      string
	log      *logger.Logger
	validate *validator.Validate

	mu    sync.Mutex
	lines map[domain.ProductID]domain.CartLine
}

// NewLedger restores the cart stored under key. A missing, unreadable or
// malformed value yields an empty cart.
func NewLedger(ctx context.Context, storage store.KeyValueStorer, key string, log *logger.Logger) *Ledger {
	if key == "" {
		key = DefaultKey
	}
	l := &Ledger{
		storage:  storage,
		key:      key,
		log:      log.With("component", "cart", "key", key),
		validate: domain.NewValidator(),
		lines:    map[domain.ProductID]domain.CartLine{},
	}
	l.restore(ctx)
	return l
}

func (l *Ledger) restore(ctx context.Context) {
	raw, err := l.storage.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			l.log.Debug("no stored cart")
		} else {
			l.log.Warn("reading stored cart failed, starting empty", "error", err)
		}
		return
	}
	lines, err := decode(raw, l.validate)
	if err != nil {
		l.log.Warn("stored cart is unreadable, starting empty", "error", err)
		return
	}
	l.lines = lines
	l.log.Info("cart restored", "lines", len(lines))
}

// persist must be called with l.mu held. The write is not tied to the caller's
// cancellation so storage never falls behind an applied mutation.
func (l *Ledger) persist(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	raw, err := encode(l.lines)
	if err != nil {
		l.log.Warn("encoding cart failed", "error", err)
		return
	}
	if err := l.storage.Set(ctx, l.key, raw); err != nil {
		l.log.Warn("persisting cart failed", "error", err)
	}
}

// Add puts qty units of product in the cart. A new line keeps a snapshot of
// product; an existing line keeps its original snapshot and grows by qty.
func (l *Ledger) Add(ctx context.Context, product domain.Product, qty int) (domain.CartLine, error) {
	if product.ID == "" {
		return domain.CartLine{}, ErrMissingID
	}
	if qty < 1 {
		return domain.CartLine{}, ErrInvalidQuantity
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	line, ok := l.lines[product.ID]
	if !ok {
		line = domain.CartLine{Product: product}
	}
	line.Quantity = clampAdd(line.Quantity, qty)
	l.lines[product.ID] = line
	l.persist(ctx)
	return line, nil
}

func clampAdd(a, b int) int {
	if a > maxQuantity-b {
		return maxQuantity
	}
	return a + b
}

// Remove deletes the line for id. Removing an absent id does nothing.
func (l *Ledger) Remove(ctx context.Context, id domain.ProductID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.lines[id]; !ok {
		return
	}
	delete(l.lines, id)
	l.persist(ctx)
}

// SetQuantity replaces the quantity of an existing line. qty is rounded to the
// nearest whole unit and raised to at least 1. An absent id is ignored.
func (l *Ledger) SetQuantity(ctx context.Context, id domain.ProductID, qty float64) (domain.CartLine, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	line, ok := l.lines[id]
	if !ok {
		return domain.CartLine{}, false
	}
	line.Quantity = NormalizeQuantity(qty)
	l.lines[id] = line
	l.persist(ctx)
	return line, true
}

// NormalizeQuantity rounds half up and clamps into [1, MaxInt32]. NaN becomes 1.
func NormalizeQuantity(qty float64) int {
	if math.IsNaN(qty) {
		return 1
	}
	r := math.Floor(qty + 0.5)
	switch {
	case r < 1:
		return 1
	case r > maxQuantity:
		return maxQuantity
	default:
		return int(r)
	}
}

// Clear empties the cart.
func (l *Ledger) Clear(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines = map[domain.ProductID]domain.CartLine{}
	l.persist(ctx)
}

// Line returns the line for id.
func (l *Ledger) Line(id domain.ProductID) (domain.CartLine, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	line, ok := l.lines[id]
	return line, ok
}

// Lines returns the cart lines ordered by product id.
func (l *Ledger) Lines() []domain.CartLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sortedLines()
}

func (l *Ledger) sortedLines() []domain.CartLine {
	out := make([]domain.CartLine, 0, len(l.lines))
	for _, line := range l.lines {
		out = append(out, line)
	}
	slices.SortFunc(out, func(a, b domain.CartLine) int {
		switch {
		case a.Product.ID.Less(b.Product.ID):
			return -1
		case b.Product.ID.Less(a.Product.ID):
			return 1
		default:
			return 0
		}
	})
	return out
}

// Count is the total number of units in the cart.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return count(l.lines)
}

// Subtotal is the sum of quantity × price, rounded to cents.
func (l *Ledger) Subtotal() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return subtotal(l.lines)
}

// View returns lines and totals computed under one lock.
func (l *Ledger) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return View{
		Lines:    l.sortedLines(),
		Count:    count(l.lines),
		Subtotal: subtotal(l.lines),
	}
}

func count(lines map[domain.ProductID]domain.CartLine) int {
	n := 0
	for _, line := range lines {
		n += line.Quantity
	}
	return n
}

func subtotal(lines map[domain.ProductID]domain.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total.Round(2)
}

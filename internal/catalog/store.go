// Package catalog holds the product list fetched from the remote catalog and
// the category set derived from it.
package catalog

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"

	"storefront-service/internal/domain"
	"storefront-service/internal/pkg/logger"
)

// Status is the lifecycle state of the catalog.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// ErrDetached is returned by Load when the store was closed, or the load context
// cancelled, before the fetch completed. The late result is dropped.
var ErrDetached = errors.New("catalog: store detached before fetch completed")

// Snapshot is a consistent read of the store.
type Snapshot struct {
	Status     Status
	Error      string
	Products   []domain.Product
	Categories []string
}

// Store owns the catalog. It is loaded once; a failure is final for the
// lifetime of the process.
type Store struct {
	fetcher Fetcher
	log     *logger.Logger

	once    sync.Once
	loadErr error

	mu         sync.RWMutex
	status     Status
	err        error
	products   []domain.Product
	categories []string
	index      map[domain.ProductID]int
	detached   bool
}

func NewStore(fetcher Fetcher, log *logger.Logger) *Store {
	return &Store{
		fetcher: fetcher,
		log:     log.With("component", "catalog"),
		status:  StatusLoading,
		index:   map[domain.ProductID]int{},
	}
}

// Load fetches the catalog on the first call. Later calls, including concurrent
// ones, wait for and return the outcome of that first call.
func (s *Store) Load(ctx context.Context) ([]domain.Product, error) {
	s.once.Do(func() { s.loadErr = s.load(ctx) })
	return s.Products(), s.loadErr
}

func (s *Store) load(ctx context.Context) error {
	s.log.Info("fetching catalog")
	products, fetchErr := s.fetcher.FetchProducts(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.detached || ctx.Err() != nil {
		s.log.Info("discarding catalog response", "detached", s.detached, "ctx_err", ctx.Err())
		return ErrDetached
	}

	if fetchErr != nil {
		var fe *FetchError
		if !errors.As(fetchErr, &fe) {
			fe = &FetchError{Message: fetchErr.Error(), Err: fetchErr}
		}
		s.status = StatusFailed
		s.err = fe
		s.products = nil
		s.categories = nil
		s.index = map[domain.ProductID]int{}
		s.log.Error("catalog fetch failed", "status_code", fe.StatusCode, "error", fetchErr)
		return fe
	}

	s.products = slices.Clone(products)
	s.categories = deriveCategories(products)
	s.index = make(map[domain.ProductID]int, len(products))
	for i, p := range products {
		if _, dup := s.index[p.ID]; !dup {
			s.index[p.ID] = i
		}
	}
	s.status = StatusReady
	s.err = nil
	s.log.Info("catalog loaded", "products", len(products), "categories", len(s.categories))
	return nil
}

// deriveCategories returns the distinct categories in first-seen order.
func deriveCategories(products []domain.Product) []string {
	seen := make(map[string]struct{}, len(products))
	out := make([]string, 0)
	for _, p := range products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

// Close detaches the store; a fetch that completes afterwards is not applied.
// A store detached before its fetch completes stays in StatusLoading for good.
func (s *Store) Close() {
	s.mu.Lock()
	s.detached = true
	s.mu.Unlock()
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Err returns the *FetchError of a failed load, nil otherwise.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store) Products() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.products)
}

func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.categories)
}

// Product looks a product up by id for quick view and add-to-cart.
func (s *Store) Product(id domain.ProductID) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.Product{}, false
	}
	return s.products[i], true
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Status:     s.status,
		Products:   slices.Clone(s.products),
		Categories: slices.Clone(s.categories),
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	if snap.Products == nil {
		snap.Products = []domain.Product{}
	}
	if snap.Categories == nil {
		snap.Categories = []string{}
	}
	return snap
}

package api

import (
	"context"
	"errors"

	"storefront-service/internal/catalog"
)

var (
	errCatalogLoading  = errors.New("catalog is still loading")
	errProductNotFound = errors.New("product not found")
)

type catalogUnavailableError struct {
	reason string
}

func (e *catalogUnavailableError) Error() string {
	return "catalog unavailable: " + e.reason
}

// addToCart resolves a validated add intent against the catalog and forwards it
// to the ledger. Products can only be added once the catalog is ready.
func addToCart(ctx context.Context, cr CatalogReader, cl CartLedger, input CartAddInput) error {
	snap := cr.Snapshot()
	switch snap.Status {
	case catalog.StatusLoading:
		return errCatalogLoading
	case catalog.StatusFailed:
		return &catalogUnavailableError{reason: snap.Error}
	}

	product, found := cr.Product(input.ProductID)
	if !found {
		return errProductNotFound
	}

	qty := 1
	if input.Quantity != nil {
		qty = *input.Quantity
	}
	_, err := cl.Add(ctx, product, qty)
	return err
}

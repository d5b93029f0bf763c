package api

import (
	"context"

	"storefront-service/internal/cart"
	"storefront-service/internal/catalog"
	"storefront-service/internal/domain"
)

// CatalogReader is the read side of the catalog store used by the handlers.
type CatalogReader interface {
	Snapshot() catalog.Snapshot
	Product(id domain.ProductID) (domain.Product, bool)
}

// CartLedger is the set of cart operations the handlers forward user intents to.
type CartLedger interface {
	Add(ctx context.Context, product domain.Product, qty int) (domain.CartLine, error)
	Remove(ctx context.Context, id domain.ProductID)
	SetQuantity(ctx context.Context, id domain.ProductID, qty float64) (domain.CartLine, bool)
	Clear(ctx context.Context)
	View() cart.View
}

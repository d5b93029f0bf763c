package api

import (
	"storefront-service/internal/cart"
	"storefront-service/internal/catalog"
	"storefront-service/internal/domain"
	"storefront-service/internal/filter"
)

// CartLineResponse is one cart line with its line total.
type CartLineResponse struct {
	Product   domain.Product `json:"product"`
	Quantity  int            `json:"quantity"`
	LineTotal string         `json:"line_total"`
}

// CartResponse is the cart as shown to the user. Money is formatted to cents.
type CartResponse struct {
	Lines    []CartLineResponse `json:"lines"`
	Count    int                `json:"count"`
	Subtotal string             `json:"subtotal"`
}

func newCartResponse(v cart.View) CartResponse {
	lines := make([]CartLineResponse, 0, len(v.Lines))
	for _, l := range v.Lines {
		lines = append(lines, CartLineResponse{
			Product:   l.Product,
			Quantity:  l.Quantity,
			LineTotal: l.Product.Price.Mul(decimalFromInt(l.Quantity)).StringFixed(2),
		})
	}
	return CartResponse{
		Lines:    lines,
		Count:    v.Count,
		Subtotal: v.Subtotal.StringFixed(2),
	}
}

// CatalogResponse reports the catalog lifecycle for loading/error banners.
type CatalogResponse struct {
	Status     catalog.Status `json:"status"`
	Error      string         `json:"error,omitempty"`
	Total      int            `json:"total"`
	Categories []string       `json:"categories"`
}

func newCatalogResponse(s catalog.Snapshot) CatalogResponse {
	return CatalogResponse{
		Status:     s.Status,
		Error:      s.Error,
		Total:      len(s.Products),
		Categories: s.Categories,
	}
}

// ProductListResponse is the filtered product grid.
type ProductListResponse struct {
	Status   catalog.Status        `json:"status"`
	Error    string                `json:"error,omitempty"`
	Criteria domain.FilterCriteria `json:"criteria"`
	Data     []domain.Product      `json:"data"`
	Total    int                   `json:"total"`
}

func newProductListResponse(s catalog.Snapshot, criteria domain.FilterCriteria) ProductListResponse {
	visible := filter.Visible(s.Products, criteria)
	return ProductListResponse{
		Status:   s.Status,
		Error:    s.Error,
		Criteria: criteria,
		Data:     visible,
		Total:    len(visible),
	}
}

// CheckoutResponse acknowledges the demo checkout. Nothing is charged or cleared.
type CheckoutResponse struct {
	Message  string `json:"message"`
	Count    int    `json:"count"`
	Subtotal string `json:"subtotal"`
}

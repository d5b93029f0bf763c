// Package filter derives the visible product list from a catalog and the current criteria.
package filter

import (
	"strings"

	"storefront-service/internal/domain"
)

// Visible returns the products matching both the category and the title query,
// in catalog order. The input slice is never modified.
func Visible(products []domain.Product, criteria domain.FilterCriteria) []domain.Product {
	query := strings.ToLower(strings.TrimSpace(criteria.Query))

	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if !MatchesCategory(p, criteria.Category) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.Title), query) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// MatchesCategory reports whether p belongs to category, treating domain.AllCategories as a wildcard.
func MatchesCategory(p domain.Product, category string) bool {
	return category == domain.AllCategories || p.Category == category
}

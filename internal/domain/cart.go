package domain

// CartLine is one product's presence in the cart.
// Product is a snapshot taken when the line was created; Quantity is always >= 1.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"qty" validate:"gte=1"`
}

// AllCategories is the category sentinel that disables category filtering.
const AllCategories = "all"

// FilterCriteria is the current search text and category selection.
type FilterCriteria struct {
	Query    string `json:"query"`
	Category string `json:"category"`
}

// DefaultCriteria matches every product.
func DefaultCriteria() FilterCriteria {
	return FilterCriteria{Category: AllCategories}
}

// Reset restores the criteria to match everything.
func (c *FilterCriteria) Reset() {
	*c = DefaultCriteria()
}

// ClearQuery empties the search text and keeps the category.
func (c *FilterCriteria) ClearQuery() {
	c.Query = ""
}

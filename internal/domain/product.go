package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ProductID identifies a product. The remote catalog may send ids as JSON numbers
// or strings, so both forms decode into the same textual identity.
type ProductID string

// UnmarshalJSON accepts `7`, `"7"` and `"abc-1"`.
func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return errors.New("product id: null or empty")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "product id")
		}
		*id = ProductID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrap(err, "product id")
	}
	*id = ProductID(n.String())
	return nil
}

// Less orders ids numerically when both are integers, lexically otherwise.
func (id ProductID) Less(other ProductID) bool {
	a, errA := strconv.ParseInt(string(id), 10, 64)
	b, errB := strconv.ParseInt(string(other), 10, 64)
	switch {
	case errA == nil && errB == nil:
		return a < b
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return id < other
	}
}

// Product represents one item of the remote catalog.
// The json tags match the remote catalog payload and the persisted cart snapshot.
type Product struct {
	ID          ProductID       `json:"id" validate:"required"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"` // decimal avoids float drift in subtotals
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Description string          `json:"description"`
}

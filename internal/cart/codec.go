package cart

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"storefront-service/internal/domain"
)

// SchemaVersion tags the persisted cart format. A stored value carrying any
// other version is treated as absent.
const SchemaVersion = 1

// DefaultKey is the storage key the cart is persisted under.
const DefaultKey = "rb_cart_v1"

// ErrCorrupt marks a stored value that cannot be restored as a cart.
var ErrCorrupt = errors.New("cart: stored value does not match the cart schema")

type persistedCart struct {
	Version int                                  `json:"version"`
	Lines   map[domain.ProductID]domain.CartLine `json:"lines"`
}

func encode(lines map[domain.ProductID]domain.CartLine) ([]byte, error) {
	if lines == nil {
		lines = map[domain.ProductID]domain.CartLine{}
	}
	b, err := json.Marshal(persistedCart{Version: SchemaVersion, Lines: lines})
	if err != nil {
		return nil, errors.Wrap(err, "encode cart")
	}
	return b, nil
}

// decode parses a stored cart strictly. Any deviation from the schema fails the
// whole value; lines are never partially recovered.
func decode(raw []byte, v *validator.Validate) (map[domain.ProductID]domain.CartLine, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var pc persistedCart
	if err := dec.Decode(&pc); err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(ErrCorrupt, "trailing data")
	}
	if pc.Version != SchemaVersion {
		return nil, errors.Wrapf(ErrCorrupt, "version %d", pc.Version)
	}
	if pc.Lines == nil {
		return nil, errors.Wrap(ErrCorrupt, "missing lines")
	}
	for id, line := range pc.Lines {
		if id != line.Product.ID {
			return nil, errors.Wrapf(ErrCorrupt, "key %q holds product %q", id, line.Product.ID)
		}
		if err := v.Struct(line); err != nil {
			return nil, errors.Wrapf(ErrCorrupt, "line %q: %v", id, err)
		}
	}
	return pc.Lines, nil
}

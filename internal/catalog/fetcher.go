package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"storefront-service/internal/domain"
)

// DefaultURL is the public demo catalog the storefront was built against.
const DefaultURL = "https://fakestoreapi.com/products"

// FetchError reports a failed catalog retrieval: a transport failure (StatusCode 0),
// a non-2xx response, or a body that is not a valid product list.
// Message is safe to show to users.
type FetchError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string { return e.Message }

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves the product list once.
type Fetcher interface {
	FetchProducts(ctx context.Context) ([]domain.Product, error)
}

// HTTPFetcher reads the catalog with a single GET request. It never retries.
type HTTPFetcher struct {
	client   *http.Client
	url      string
	validate *validator.Validate
}

// NewHTTPFetcher returns a fetcher for url. A nil client means a client without timeout.
func NewHTTPFetcher(url string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	if url == "" {
		url = DefaultURL
	}
	return &HTTPFetcher{client: client, url: url, validate: domain.NewValidator()}
}

func (f *HTTPFetcher) FetchProducts(ctx context.Context) ([]domain.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, &FetchError{Message: "invalid catalog URL", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	res, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Message: err.Error(), Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, &FetchError{
			StatusCode: res.StatusCode,
			Message:    fmt.Sprintf("API error %d", res.StatusCode),
		}
	}

	var products []domain.Product
	if err := json.NewDecoder(res.Body).Decode(&products); err != nil {
		return nil, &FetchError{
			StatusCode: res.StatusCode,
			Message:    "Malformed catalog response",
			Err:        errors.Wrap(err, "decode catalog"),
		}
	}
	for i := range products {
		if err := f.validate.Struct(products[i]); err != nil {
			return nil, &FetchError{
				StatusCode: res.StatusCode,
				Message:    fmt.Sprintf("Invalid product at position %d", i),
				Err:        errors.Wrap(err, "validate catalog"),
			}
		}
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"storefront-service/internal/cart"
	"storefront-service/internal/domain"
	"storefront-service/internal/pkg/logger"
)

// CheckoutMessage is returned by the checkout placeholder.
const CheckoutMessage = "Proceed to checkout (demo)"

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	catalog  CatalogReader
	ledger   CartLedger
	validate *validator.Validate
	log      *logger.Logger
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(cr CatalogReader, cl CartLedger, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		catalog:  cr,
		ledger:   cl,
		validate: domain.NewValidator(),
		log:      log.With("component", "http"),
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, ErrorResponse{Error: message})
}

func (h *HTTPHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			h.log.Error("failed to encode JSON response", "error", err)
		}
	}
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

func productIDParam(r *http.Request) (domain.ProductID, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "productId"))
	return domain.ProductID(id), id != ""
}

// criteriaFrom builds filter criteria. A missing category means all categories;
// reset discards both query and category.
func criteriaFrom(query, category string, reset bool) domain.FilterCriteria {
	criteria := domain.DefaultCriteria()
	if reset {
		return criteria
	}
	criteria.Query = query
	if category != "" {
		criteria.Category = category
	}
	return criteria
}

// criteriaFromQuery reads ?q=&category=&reset=.
func criteriaFromQuery(r *http.Request) domain.FilterCriteria {
	q := r.URL.Query()
	reset, _ := strconv.ParseBool(q.Get("reset"))
	return criteriaFrom(q.Get("q"), q.Get("category"), reset)
}

// --- Catalog Handlers ---

func (h *HTTPHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, newCatalogResponse(h.catalog.Snapshot()))
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, h.catalog.Snapshot().Categories)
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, newProductListResponse(h.catalog.Snapshot(), criteriaFromQuery(r)))
}

func (h *HTTPHandler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(r)
	if !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}
	product, found := h.catalog.Product(id)
	if !found {
		h.respondWithError(w, http.StatusNotFound, "Product not found")
		return
	}
	h.respondWithJSON(w, http.StatusOK, product)
}

// --- Cart Handlers ---

// CartAddInput defines the expected input for adding a product to the cart.
type CartAddInput struct {
	ProductID domain.ProductID `json:"product_id" validate:"required"`
	Quantity  *int             `json:"quantity" validate:"omitempty,gte=1"` // defaults to 1
}

// CartSetQuantityInput defines the expected input for setting a line quantity.
// Fractional and non-positive values are accepted and coerced by the ledger.
type CartSetQuantityInput struct {
	Quantity *float64 `json:"quantity" validate:"required"`
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, newCartResponse(h.ledger.View()))
}

func (h *HTTPHandler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var input CartAddInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	if err := addToCart(r.Context(), h.catalog, h.ledger, input); err != nil {
		h.log.Warn("add to cart rejected", "product_id", input.ProductID, "error", err)
		var unavailable *catalogUnavailableError
		switch {
		case errors.Is(err, errCatalogLoading):
			h.respondWithError(w, http.StatusServiceUnavailable, "Catalog is still loading")
		case errors.As(err, &unavailable):
			h.respondWithError(w, http.StatusServiceUnavailable, "Catalog unavailable: "+unavailable.reason)
		case errors.Is(err, errProductNotFound):
			h.respondWithError(w, http.StatusNotFound, "Product not found")
		case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrMissingID):
			h.respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			h.respondWithError(w, http.StatusInternalServerError, "Failed to add product to cart")
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, newCartResponse(h.ledger.View()))
}

func (h *HTTPHandler) SetCartItemQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(r)
	if !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	var input CartSetQuantityInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	// Setting the quantity of a product that is not in the cart is a no-op.
	h.ledger.SetQuantity(r.Context(), id, *input.Quantity)
	h.respondWithJSON(w, http.StatusOK, newCartResponse(h.ledger.View()))
}

func (h *HTTPHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(r)
	if !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}
	h.ledger.Remove(r.Context(), id)
	h.respondWithJSON(w, http.StatusOK, newCartResponse(h.ledger.View()))
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.ledger.Clear(r.Context())
	h.respondWithJSON(w, http.StatusOK, newCartResponse(h.ledger.View()))
}

// Checkout is a placeholder; it neither charges nor clears the cart.
func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	v := h.ledger.View()
	h.respondWithJSON(w, http.StatusAccepted, CheckoutResponse{
		Message:  CheckoutMessage,
		Count:    v.Count,
		Subtotal: v.Subtotal.StringFixed(2),
	})
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/catalog", h.GetCatalog)        // GET /api/v1/catalog
		r.Get("/categories", h.ListCategories) // GET /api/v1/categories

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)              // GET /api/v1/products?q=&category=
			r.Get("/{productId}", h.GetProductByID) // GET /api/v1/products/{productId}
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)           // GET /api/v1/cart
			r.Delete("/", h.ClearCart)      // DELETE /api/v1/cart
			r.Post("/checkout", h.Checkout) // POST /api/v1/cart/checkout
			r.Post("/items", h.AddCartItem) // POST /api/v1/cart/items
			r.Route("/items/{productId}", func(r chi.Router) {
				r.Put("/", h.SetCartItemQuantity) // PUT /api/v1/cart/items/{productId}
				r.Delete("/", h.RemoveCartItem)   // DELETE /api/v1/cart/items/{productId}
			})
		})
	})
}

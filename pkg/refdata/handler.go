package refdata

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emberline/hubd/internal/httpserver"
)

// Handler provides read-only HTTP handlers over reference data.
type Handler struct {
	store *Store
}

// NewHandler creates a refdata Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Routes returns a chi.Router with the reference data routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/categories", h.handleCategories)
	r.Get("/products", h.handleProducts)
	r.Get("/taxes", h.handleTaxes)
	r.Get("/customers", h.handleCustomers)
	return r
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.Categories(r.Context())
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list categories")
		return
	}
	httpserver.Respond(w, http.StatusOK, categories)
}

func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	categoryID := r.URL.Query().Get("categoryId")

	products, err := h.store.Products(r.Context(), categoryID)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list products")
		return
	}
	httpserver.Respond(w, http.StatusOK, products)
}

func (h *Handler) handleTaxes(w http.ResponseWriter, r *http.Request) {
	taxes, err := h.store.Taxes(r.Context())
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list taxes")
		return
	}
	httpserver.Respond(w, http.StatusOK, taxes)
}

func (h *Handler) handleCustomers(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")

	customers, err := h.store.Customers(r.Context(), search)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list customers")
		return
	}
	httpserver.Respond(w, http.StatusOK, customers)
}

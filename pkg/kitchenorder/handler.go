package kitchenorder

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emberline/hubd/internal/httpserver"
)

// Handler provides HTTP handlers for the kitchen orders API.
type Handler struct {
	svc *Service
}

// NewHandler creates a kitchen order Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes returns a chi.Router with the kitchen order routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/bump", h.handleBump)
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.svc.Create(r.Context(), req)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to create kitchen order")
		return
	}

	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	resp, err := h.svc.Get(r.Context(), id)
	if err == ErrNotFound {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "kitchen order not found")
		return
	}
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get kitchen order")
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleBump(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	resp, err := h.svc.Bump(r.Context(), id)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to bump kitchen order")
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

package sales

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emberline/hubd/internal/httpserver"
	"github.com/emberline/hubd/internal/session"
)

// Handler provides HTTP handlers for the sales API.
type Handler struct {
	svc *Service
}

// NewHandler creates a sales Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes returns a chi.Router with the sales routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	claims, ok := session.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "no active session")
		return
	}

	resp, err := h.svc.Create(r.Context(), req, claims.StaffID, claims.TerminalID)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to create sale")
		return
	}

	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	resp, err := h.svc.Get(r.Context(), id)
	if err == ErrNotFound {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "sale not found")
		return
	}
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get sale")
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	items, total, err := h.svc.List(r.Context(), params.PageSize, params.Offset)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list sales")
		return
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(items, params, total))
}

package history

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/calmloop/calmloop/backend/internal/middleware"
	historymodel "github.com/calmloop/calmloop/backend/internal/model/history"
	historysvc "github.com/calmloop/calmloop/backend/internal/service/history"
	"github.com/calmloop/calmloop/backend/pkg/utils"
)

// Gateway is the read/delete surface of the history store the handler
// proxies. Writes happen only through the orchestrator's saver.
type Gateway interface {
	Get(ctx context.Context, userID, historyID string) (historymodel.Record, error)
	List(ctx context.Context, userID string, limit int) ([]historymodel.Summary, error)
	Delete(ctx context.Context, userID, historyID string) ([]string, error)
	Purge(ctx context.Context, userID string) ([]string, error)
}

// Handler exposes session history records to the UI.
type Handler struct {
	gateway Gateway
}

// New creates the history handler.
func New(gateway Gateway) *Handler {
	return &Handler{gateway: gateway}
}

// RegisterRoutes mounts the history routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/histories", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/{historyID}", h.handleGet)
		r.Delete("/{historyID}", h.handleDelete)
		r.Delete("/", h.handlePurge)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	summaries, err := h.gateway.List(r.Context(), middleware.UserID(r.Context()), limit)
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	if summaries == nil {
		summaries = []historymodel.Summary{}
	}
	utils.RespondJSON(w, http.StatusOK, summaries)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.gateway.Get(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "historyID"))
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.gateway.Delete(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "historyID"))
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string][]string{"deleted": deleted})
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.gateway.Purge(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		respondGatewayError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string][]string{"deleted": deleted})
}

func respondGatewayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, historysvc.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "history record not found")
	case errors.Is(err, historysvc.ErrUnauthorized):
		utils.RespondError(w, http.StatusUnauthorized, "not authorized")
	case errors.Is(err, historysvc.ErrValidation):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "history store unavailable")
	}
}

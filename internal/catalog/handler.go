package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

type FoodReader interface {
	GetFoodItem(ctx context.Context, id string) (*domain.FoodItem, error)
	ListAvailable(ctx context.Context) ([]domain.FoodItem, error)
}

// Handler serves the read side of the catalog that Client consumes.
type Handler struct {
	repo   FoodReader
	logger *slog.Logger
}

func NewHandler(repo FoodReader, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.ListAvailable(r.Context())
	if err != nil {
		h.logger.Error("failed to list food items", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, items)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing food item id")
		return
	}

	item, err := h.repo.GetFoodItem(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get food item", "error", err, "food_item_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if item == nil {
		h.writeError(w, http.StatusNotFound, "food item not found")
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

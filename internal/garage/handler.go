// internal/garage/handler.go
package garage

import (
	"net/http"

	"carmarket/internal/httpapi"
	"carmarket/internal/logging"

	"github.com/sirupsen/logrus"
)

type Handler struct {
	service Service
	log     logrus.FieldLogger
}

func NewHandler(service Service, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{service: service, log: logger}
}

// Add handles POST /cars.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	ownerID, err := httpapi.UserID(r)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	item, err := h.service.AddCar(r.Context(), ownerID, req.Name, req.Description)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusCreated, item, "car submitted for moderation")
}

// ListOwned handles GET /cars for the acting user.
func (h *Handler) ListOwned(w http.ResponseWriter, r *http.Request) {
	ownerID, err := httpapi.UserID(r)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	items, err := h.service.ListOwned(r.Context(), ownerID)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, items, "garage")
}

// Get handles GET /cars/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	item, err := h.service.GetCar(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, item, "car")
}

// Moderate handles POST /cars/{id}/moderation.
func (h *Handler) Moderate(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	var req struct {
		Approve bool `json:"approve"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	item, err := h.service.Moderate(r.Context(), id, req.Approve)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, item, "car moderated")
}

// Delete handles DELETE /cars/{id} for the acting owner.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, err := httpapi.UserID(r)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	item, err := h.service.DeleteCar(r.Context(), ownerID, id)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, item, "car deleted")
}

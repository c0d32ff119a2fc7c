// internal/marketplace/handler.go
package marketplace

import (
	"net/http"

	"carmarket/internal/httpapi"
	"carmarket/internal/logging"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type createListingRequest struct {
	ItemID uuid.UUID       `json:"item_id"`
	Price  decimal.Decimal `json:"price"`
}

// Handler serves the listing endpoints.
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

// Create handles POST /listings.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	sellerID, err := httpapi.UserID(r)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	var req createListingRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	listing, err := h.service.CreateListing(r.Context(), sellerID, req.ItemID, req.Price)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusCreated, listing, "listing created")
}

// List handles GET /listings.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.ListActive(r.Context())
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, listings, "active listings")
}

// Buy handles POST /listings/{id}/buy.
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	buyerID, err := httpapi.UserID(r)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	sale, err := h.service.Buy(r.Context(), buyerID, id)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, sale, "purchase completed")
}

// Cancel handles POST /listings/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	sellerID, err := httpapi.UserID(r)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	listing, err := h.service.CancelListing(r.Context(), sellerID, id)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, listing, "listing cancelled")
}

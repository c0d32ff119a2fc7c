// internal/auction/handler.go
package auction

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"carmarket/internal/httpapi"
	"carmarket/internal/logging"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type createAuctionRequest struct {
	ItemID     uuid.UUID       `json:"item_id"`
	StartPrice decimal.Decimal `json:"start_price"`
	BidStep    decimal.Decimal `json:"bid_step"`
	EndsAt     time.Time       `json:"ends_at"`
}

type placeBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Handler serves the auction endpoints.
type Handler struct {
	service Service
	log     logrus.FieldLogger
}

// NewHandler creates a new auction HTTP handler.
func NewHandler(service Service, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{service: service, log: logger}
}

// Create handles POST /auctions.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	sellerID, err := httpapi.UserID(r)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	var req createAuctionRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	a, err := h.service.CreateAuction(r.Context(), sellerID, Terms(req))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusCreated, a, "auction created")
}

// List handles GET /auctions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	auctions, err := h.service.ListActive(r.Context())
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, auctions, "active auctions")
}

// Get handles GET /auctions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	details, err := h.service.GetAuction(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, details, "auction")
}

// PlaceBid handles POST /auctions/{id}/bids.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	bidderID, err := httpapi.UserID(r)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	var req placeBidRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	bid, err := h.service.PlaceBid(r.Context(), bidderID, id, req.Amount)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusCreated, bid, "bid accepted")
}

// Cancel handles POST /auctions/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	a, err := h.service.CancelAuction(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, a, "auction cancelled")
}

// History handles GET /auctions/{id}/events.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	events, err := h.service.History(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, events, "auction history")
}

// Feed handles GET /auction-events?after=<id>&limit=<n>.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	after, err := queryInt(r, "after")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	events, err := h.service.Feed(r.Context(), after, int(limit))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, events, "auction events")
}

func queryInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", httpapi.ErrBadRequest, name, raw)
	}
	return v, nil
}

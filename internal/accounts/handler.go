// internal/accounts/handler.go
package accounts

import (
	"net/http"

	"carmarket/internal/httpapi"
	"carmarket/internal/logging"
	"carmarket/internal/market"

	"github.com/shopspring/decimal"
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

// Register handles POST /users.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusCreated, user, "user registered")
}

// Login handles POST /users/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, user, "authenticated")
}

// Get handles GET /users/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, user, "user")
}

// Deposit handles POST /users/{id}/deposits. Only the account holder may
// deposit.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	actingID, err := httpapi.UserID(r)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	if actingID != id {
		httpapi.WriteError(w, h.log, market.ErrNotAccountHolder)
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	user, err := h.service.Deposit(r.Context(), id, req.Amount)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, user, "deposit credited")
}

package auction

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carmarket/internal/httpapi"
	"carmarket/internal/market"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(env *testEnv) http.Handler {
	h := NewHandler(env.svc, nil)
	r := chi.NewRouter()
	r.Post("/auctions", h.Create)
	r.Get("/auctions", h.List)
	r.Get("/auctions/{id}", h.Get)
	r.Post("/auctions/{id}/bids", h.PlaceBid)
	r.Post("/auctions/{id}/cancel", h.Cancel)
	r.Get("/auctions/{id}/events", h.History)
	r.Get("/auction-events", h.Feed)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, userID uuid.UUID, body any) (*httptest.ResponseRecorder, httpapi.Response) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		req.Header.Set(httpapi.UserHeader, userID.String())
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp httpapi.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHandlerCreateAndBid(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(env)
	seller := env.seedUser(t, "seller", "0")
	bidder := env.seedUser(t, "bidder", "500")
	item := env.seedItem(t, seller.ID, market.ItemAvailable)

	rec, resp := doJSON(t, router, http.MethodPost, "/auctions", seller.ID, map[string]any{
		"item_id":     item.ID,
		"start_price": "100",
		"bid_step":    "10",
		"ends_at":     env.clock.Now().Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "auction created", resp.Message)
	data := resp.Data.(map[string]any)
	auctionID := data["id"].(string)
	assert.Equal(t, "active", data["status"])

	rec, resp = doJSON(t, router, http.MethodPost, "/auctions/"+auctionID+"/bids", bidder.ID, map[string]any{"amount": "105"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, resp.Error, "110.00")

	rec, _ = doJSON(t, router, http.MethodPost, "/auctions/"+auctionID+"/bids", bidder.ID, map[string]any{"amount": 110})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = doJSON(t, router, http.MethodPost, "/auctions/"+auctionID+"/bids", bidder.ID, map[string]any{"amount": "150"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, resp = doJSON(t, router, http.MethodGet, "/auctions/"+auctionID, uuid.Nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	details := resp.Data.(map[string]any)
	assert.Equal(t, "110", details["current_bid"])
	assert.Len(t, details["bids"], 1)

	rec, resp = doJSON(t, router, http.MethodGet, "/auctions", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data, 1)
}

func TestHandlerErrors(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(env)
	a, seller := env.openAuction(t)
	poor := env.seedUser(t, "poor", "10")

	tests := []struct {
		name   string
		method string
		path   string
		user   uuid.UUID
		body   any
		status int
	}{
		{name: "missing user header", method: http.MethodPost, path: "/auctions/" + a.ID.String() + "/bids", body: map[string]any{"amount": "200"}, status: http.StatusUnauthorized},
		{name: "bad auction id", method: http.MethodGet, path: "/auctions/not-a-uuid", status: http.StatusBadRequest},
		{name: "malformed body", method: http.MethodPost, path: "/auctions/" + a.ID.String() + "/bids", user: poor.ID, body: `{"amount":`, status: http.StatusBadRequest},
		{name: "unknown auction", method: http.MethodGet, path: "/auctions/" + uuid.NewString(), status: http.StatusNotFound},
		{name: "self bid", method: http.MethodPost, path: "/auctions/" + a.ID.String() + "/bids", user: seller.ID, body: map[string]any{"amount": "200"}, status: http.StatusForbidden},
		{name: "insufficient funds", method: http.MethodPost, path: "/auctions/" + a.ID.String() + "/bids", user: poor.ID, body: map[string]any{"amount": "200"}, status: http.StatusPaymentRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := doJSON(t, router, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.status, resp.Status)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandlerCancel(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(env)
	a, seller := env.openAuction(t)

	rec, resp := doJSON(t, router, http.MethodPost, "/auctions/"+a.ID.String()+"/cancel", seller.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", resp.Data.(map[string]any)["status"])

	rec, _ = doJSON(t, router, http.MethodPost, "/auctions/"+a.ID.String()+"/cancel", seller.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

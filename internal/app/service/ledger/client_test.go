package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/types"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := &config.Config{Ledger: config.LedgerConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}}
	return NewClient(cfg, zap.NewNop().Sugar())
}

func TestActiveSubscription(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/subscription/active", r.URL.Path)
		assert.Equal(t, "owner-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "key-1", r.Header.Get("X-Api-Key"))
		json.NewEncoder(w).Encode(models.ActiveSubscriptionInfo{
			OwnerUUID:              "uuid-1",
			BaseServiceLevel:       "free",
			ProductUpdateTimestamp: 42,
			Platform:               types.PlatformIOS,
		})
	}))

	got, err := c.ActiveSubscription(context.Background(), "owner-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, "uuid-1", got.OwnerUUID)
	assert.Equal(t, int64(42), got.ProductUpdateTimestamp)
	assert.Equal(t, types.PlatformIOS, got.Platform)
}

func TestCatalog(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/catalog", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("since"))
		json.NewEncoder(w).Encode([]*models.ProductInfo{
			{ProductID: "android.gold.monthly", ServiceLevel: "gold", RecurringPeriodCode: "P1M"},
		})
	}))

	got, err := c.Catalog(context.Background(), "key-1", 42)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "android.gold.monthly", got[0].ProductID)
}

func TestCatalog_OmitsZeroSince(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("since"))
		json.NewEncoder(w).Encode([]*models.ProductInfo{})
	}))

	_, err := c.Catalog(context.Background(), "key-1", 0)
	require.NoError(t, err)
}

func TestHandlePurchase(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/subscription/purchase", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req HandlePurchaseRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tok-1", req.PurchaseToken)
		assert.Equal(t, "android.gold.monthly", req.ProductID)

		json.NewEncoder(w).Encode(HandlePurchaseResult{Accepted: true})
	}))

	got, err := c.HandlePurchase(context.Background(), "key-1", &HandlePurchaseRequest{
		ProductID:     "android.gold.monthly",
		PurchaseToken: "tok-1",
		PurchaseTime:  time.Now(),
		OwnerID:       "owner-1",
	})
	require.NoError(t, err)
	assert.True(t, got.Accepted)
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{name: "message field", status: http.StatusForbidden, body: `{"message":"bad api key"}`, wantMessage: "bad api key"},
		{name: "error field", status: http.StatusConflict, body: `{"error":"token already consumed"}`, wantMessage: "token already consumed"},
		{name: "plain body", status: http.StatusInternalServerError, body: "boom", wantMessage: "boom"},
		{name: "empty body", status: http.StatusBadGateway, wantMessage: "unexpected ledger response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			_, err := c.ActiveSubscription(context.Background(), "owner-1", "key-1")
			var lerr *Error
			require.ErrorAs(t, err, &lerr)
			assert.Equal(t, tt.status, lerr.Status)
			assert.Equal(t, tt.wantMessage, lerr.Message)
		})
	}
}

func TestContextCancellation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ActiveSubscription(ctx, "owner-1", "key-1")
	assert.ErrorIs(t, err, context.Canceled)
}

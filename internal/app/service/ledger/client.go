package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/logctx"
)

// Error is a backend-reported failure.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ledger: %s (status %d)", e.Message, e.Status)
}

type HandlePurchaseRequest struct {
	ProductID     string    `json:"product_id"`
	PurchaseToken string    `json:"purchase_token"`
	PurchaseTime  time.Time `json:"purchase_time"`
	OwnerID       string    `json:"owner_id"`
}

type HandlePurchaseResult struct {
	Accepted      bool                           `json:"accepted"`
	UpdatedRecord *models.ActiveSubscriptionInfo `json:"updated_record,omitempty"`
}

// API is the backend subscription-ledger boundary.
type API interface {
	ActiveSubscription(ctx context.Context, ownerID, apiKey string) (*models.ActiveSubscriptionInfo, error)
	Catalog(ctx context.Context, apiKey string, sinceTS int64) ([]*models.ProductInfo, error)
	HandlePurchase(ctx context.Context, apiKey string, req *HandlePurchaseRequest) (*HandlePurchaseResult, error)
}

// Client is the thin HTTP implementation of API.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.SugaredLogger
}

func NewClient(cfg *config.Config, log *zap.SugaredLogger) *Client {
	return &Client{
		baseURL: cfg.Ledger.BaseURL,
		http:    &http.Client{Timeout: cfg.Ledger.Timeout},
		log:     log,
	}
}

func (c *Client) ActiveSubscription(ctx context.Context, ownerID, apiKey string) (*models.ActiveSubscriptionInfo, error) {
	q := url.Values{"user_id": {ownerID}}
	var out models.ActiveSubscriptionInfo
	if err := c.do(ctx, http.MethodGet, "/v1/subscription/active", apiKey, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Catalog(ctx context.Context, apiKey string, sinceTS int64) ([]*models.ProductInfo, error) {
	q := url.Values{}
	if sinceTS > 0 {
		q.Set("since", strconv.FormatInt(sinceTS, 10))
	}
	var out []*models.ProductInfo
	if err := c.do(ctx, http.MethodGet, "/v1/catalog", apiKey, q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) HandlePurchase(ctx context.Context, apiKey string, req *HandlePurchaseRequest) (*HandlePurchaseResult, error) {
	var out HandlePurchaseResult
	if err := c.do(ctx, http.MethodPost, "/v1/subscription/purchase", apiKey, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, apiKey string, q url.Values, body, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-Api-Key", apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := readErrorMessage(resp.Body)
		logctx.FromCtx(ctx, c.log).Warnw("ledger returned error", "method", method, "path", path, "status", resp.StatusCode, "msg", msg)
		return &Error{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode ledger response: %w", err)
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return "unexpected ledger response"
}

var Module = fx.Options(
	fx.Provide(NewClient),
	fx.Provide(func(c *Client) API { return c }),
)

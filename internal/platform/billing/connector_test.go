package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/metrics"
	"github.com/fatflowers/paywall/pkg/types"
)

// stubClient drives Listener callbacks from the test.
type stubClient struct {
	mu       sync.Mutex
	listener Listener

	setupResult    *Result
	purchaseResult Result
	purchases      []models.PurchaseRecord
	catalogResult  Result
	catalog        []models.PlatformCatalogEntry
	launchResult   Result
	launchCalls    int
	ended          bool
}

func (c *stubClient) StartConnection(l Listener) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
	if c.setupResult != nil {
		l.OnSetupFinished(*c.setupResult)
	}
}

func (c *stubClient) getListener() Listener {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listener
}

func (c *stubClient) QueryPurchases(productType string, cb func(Result, []models.PurchaseRecord)) {
	cb(c.purchaseResult, c.purchases)
}

func (c *stubClient) QueryCatalog(productIDs []string, cb func(Result, []models.PlatformCatalogEntry)) {
	cb(c.catalogResult, c.catalog)
}

func (c *stubClient) LaunchFlow(params FlowParams) Result {
	c.launchCalls++
	return c.launchResult
}

func (c *stubClient) EndConnection() {
	c.ended = true
}

func testConfig() *config.Config {
	return &config.Config{
		Platform: types.PlatformAndroid,
		Billing: config.BillingConfig{
			ProductType:    "subs",
			OfferFromEnd:   1,
			ConnectTimeout: time.Second,
		},
	}
}

func newTestConnector(client Client) *Connector {
	return NewConnector(client, testConfig(), zap.NewNop().Sugar(), metrics.NewRecorder())
}

func okResult() *Result {
	return &Result{Code: types.ResponseOK}
}

func TestConnector_ConnectSuccess(t *testing.T) {
	client := &stubClient{setupResult: okResult()}
	c := newTestConnector(client)

	require.Equal(t, StateDisconnected, c.State())
	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, StateConnected, c.State())

	// Idempotent while connected: no second setup round-trip.
	client.setupResult = nil
	require.NoError(t, c.Connect(context.Background()))
}

func TestConnector_ConnectFailure(t *testing.T) {
	client := &stubClient{setupResult: &Result{Code: types.ResponseError, DebugMessage: "setup failed"}}
	c := newTestConnector(client)

	err := c.Connect(context.Background())
	require.Error(t, err)
	var perr *PlatformError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ResponseError, perr.Code)
	assert.Equal(t, "setup failed", perr.Message)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestConnector_DisconnectDuringSetupFailsConnect(t *testing.T) {
	client := &stubClient{} // no synchronous setup callback
	c := newTestConnector(client)

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()

	require.Eventually(t, func() bool { return client.getListener() != nil }, time.Second, time.Millisecond)
	client.getListener().OnServiceDisconnected()

	err := <-done
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, c.State())

	// Duplicate disconnect events past the first resolution are ignored.
	client.getListener().OnServiceDisconnected()
	assert.Equal(t, StateDisconnected, c.State())
}

// Overlapping Connect calls during CONNECTING join the same in-flight
// attempt; both must complete when the single setup callback fires.
func TestConnector_ConcurrentConnectShareOneAttempt(t *testing.T) {
	client := &stubClient{} // setup callback fired manually below
	c := newTestConnector(client)

	results := make(chan error, 2)
	go func() { results <- c.Connect(context.Background()) }()
	require.Eventually(t, func() bool { return c.State() == StateConnecting }, time.Second, time.Millisecond)
	go func() { results <- c.Connect(context.Background()) }()

	require.Eventually(t, func() bool { return client.getListener() != nil }, time.Second, time.Millisecond)
	client.getListener().OnSetupFinished(Result{Code: types.ResponseOK})

	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatalf("Connect call %d never completed", i+1)
		}
	}
	assert.Equal(t, StateConnected, c.State())
}

func TestConnector_ServiceLostAfterConnect(t *testing.T) {
	client := &stubClient{setupResult: okResult()}
	c := newTestConnector(client)
	require.NoError(t, c.Connect(context.Background()))

	client.listener.OnServiceDisconnected()
	assert.Equal(t, StateDisconnected, c.State())

	// No automatic reconnect: operations fail until Connect is re-invoked.
	_, err := c.QueryPurchases(context.Background())
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestConnector_QueryPreconditions(t *testing.T) {
	c := newTestConnector(&stubClient{})

	_, err := c.QueryPurchases(context.Background())
	require.ErrorIs(t, err, ErrNotConnected)

	_, err = c.QueryCatalog(context.Background(), []string{"sku"})
	require.ErrorIs(t, err, ErrNotConnected)

	require.ErrorIs(t, c.LaunchFlow(FlowParams{}), ErrNotConnected)
}

func TestConnector_QueryPurchases(t *testing.T) {
	client := &stubClient{
		setupResult:    okResult(),
		purchaseResult: Result{Code: types.ResponseOK},
		purchases: []models.PurchaseRecord{
			{ProductIDs: []string{"sku.monthly"}, PurchaseToken: "tok-1", State: types.PurchaseStatePurchased},
		},
	}
	c := newTestConnector(client)
	require.NoError(t, c.Connect(context.Background()))

	records, err := c.QueryPurchases(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "tok-1", records[0].PurchaseToken)
}

func TestConnector_QueryCatalogError(t *testing.T) {
	client := &stubClient{
		setupResult:   okResult(),
		catalogResult: Result{Code: types.ResponseItemUnavailable, DebugMessage: "not for sale"},
	}
	c := newTestConnector(client)
	require.NoError(t, c.Connect(context.Background()))

	_, err := c.QueryCatalog(context.Background(), []string{"sku"})
	var perr *PlatformError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ResponseItemUnavailable, perr.Code)
}

func TestConnector_Close(t *testing.T) {
	client := &stubClient{setupResult: okResult()}
	c := newTestConnector(client)
	require.NoError(t, c.Connect(context.Background()))

	c.Close()
	assert.True(t, client.ended)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestOneshot_SecondResolutionDropped(t *testing.T) {
	o := newOneshot[error]()
	require.True(t, o.resolve(errors.New("first")))
	require.False(t, o.resolve(errors.New("second")))

	got, err := o.await(context.Background())
	require.NoError(t, err)
	assert.EqualError(t, got, "first")
}

func TestOneshot_BroadcastsToAllAwaiters(t *testing.T) {
	o := newOneshot[int]()

	results := make(chan int, 3)
	for i := 0; i < 2; i++ {
		go func() {
			v, err := o.await(context.Background())
			require.NoError(t, err)
			results <- v
		}()
	}

	require.True(t, o.resolve(42))
	// A late awaiter still observes the stored value.
	v, err := o.await(context.Background())
	require.NoError(t, err)
	results <- v

	for i := 0; i < 3; i++ {
		select {
		case v := <-results:
			assert.Equal(t, 42, v)
		case <-time.After(time.Second):
			t.Fatal("awaiter never observed the resolved value")
		}
	}
}

func TestOneshot_AwaitHonorsContext(t *testing.T) {
	o := newOneshot[error]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.await(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

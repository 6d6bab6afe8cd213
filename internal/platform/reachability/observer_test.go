package reachability

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/paywall/pkg/config"
)

type fakeDialer struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (d *fakeDialer) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return nil, d.err
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func newTestObserver(d *fakeDialer) *Observer {
	cfg := &config.Config{
		Reachability: config.ReachabilityConfig{ProbeAddr: "127.0.0.1:1", Interval: 5 * time.Millisecond},
	}
	o := New(cfg, zap.NewNop().Sugar())
	o.dial = d.dial
	return o
}

func TestOnline_OptimisticBeforeFirstProbe(t *testing.T) {
	o := newTestObserver(&fakeDialer{})
	assert.True(t, o.Online())
}

func TestProbeTransitions(t *testing.T) {
	d := &fakeDialer{err: errors.New("unreachable")}
	o := newTestObserver(d)

	var mu sync.Mutex
	var transitions []bool
	o.Subscribe(func(online bool) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, online)
	})

	o.Start()
	defer o.Stop()

	require.Eventually(t, func() bool { return !o.Online() }, time.Second, time.Millisecond)

	d.setErr(nil)
	require.Eventually(t, func() bool { return o.Online() }, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(transitions), 2)
	assert.False(t, transitions[0])
	assert.True(t, transitions[1])
}

func TestStopHaltsProbing(t *testing.T) {
	d := &fakeDialer{}
	o := newTestObserver(d)

	o.Start()
	require.Eventually(t, func() bool { return d.callCount() > 0 }, time.Second, time.Millisecond)
	o.Stop()

	calls := d.callCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, d.callCount())

	// Stop on a stopped observer is a no-op.
	o.Stop()
}

func TestStartIsIdempotent(t *testing.T) {
	d := &fakeDialer{}
	o := newTestObserver(d)

	o.Start()
	o.Start()
	defer o.Stop()

	require.Eventually(t, func() bool { return d.callCount() > 0 }, time.Second, time.Millisecond)
	assert.True(t, o.Online())
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/paywall/pkg/metrics"
)

var (
	// ErrDeserialization marks a cache hit whose payload could not be decoded.
	// Callers treat it as a miss, never a crash.
	ErrDeserialization = errors.New("cache: failed to deserialize cached value")
	// ErrNoConnectivityNoCache is the dead-end case of FetchOrCached: nothing
	// cached and no network to fetch from.
	ErrNoConnectivityNoCache = errors.New("cache: no connectivity and no cached value")
)

// Prober reports current network reachability.
type Prober interface {
	Online() bool
}

// Service is the timestamp-keyed and network-availability-keyed
// cache-or-fetch primitive underneath the catalog and ledger reads.
type Service struct {
	store  Store
	prober Prober
	log    *zap.SugaredLogger
	rec    *metrics.Recorder
}

func NewService(store Store, prober Prober, log *zap.SugaredLogger, rec *metrics.Recorder) *Service {
	return &Service{store: store, prober: prober, log: log, rec: rec}
}

// Purge drops every cached entry.
func (s *Service) Purge(ctx context.Context) error {
	return s.store.Purge(ctx)
}

// Fetch returns the cached value for key when its stored timestamp equals
// currentTS, otherwise calls netFn and persists (value, currentTS) on
// success. A network failure is returned as-is; this mode never falls back
// to a stale cache entry.
func Fetch[T any](ctx context.Context, s *Service, key string, currentTS int64, netFn func(context.Context) (T, error)) (T, error) {
	var zero T

	payload, ts, err := s.store.Get(ctx, key)
	if err == nil && ts == currentTS {
		var v T
		if uerr := json.Unmarshal(payload, &v); uerr == nil {
			s.rec.CacheLookups.WithLabelValues("hit").Inc()
			return v, nil
		} else {
			// Deserialization failure on a hit degrades to a miss.
			s.rec.CacheLookups.WithLabelValues("error").Inc()
			s.log.Warnw("cache entry unreadable, refetching", "key", key, "err", fmt.Errorf("%w: %v", ErrDeserialization, uerr))
		}
	} else if err == nil {
		s.rec.CacheLookups.WithLabelValues("stale").Inc()
	} else if errors.Is(err, ErrCacheMiss) {
		s.rec.CacheLookups.WithLabelValues("miss").Inc()
	} else {
		s.rec.CacheLookups.WithLabelValues("error").Inc()
		s.log.Warnw("cache read failed, refetching", "key", key, "err", err)
	}

	v, nerr := netFn(ctx)
	if nerr != nil {
		return zero, nerr
	}
	s.persist(ctx, key, v, currentTS)
	return v, nil
}

// FetchOrCached is the timestamp-agnostic mode: prefer network while
// connectivity is available, fall back to any cached value on network
// failure, and skip the network call entirely while offline. It fails with
// ErrNoConnectivityNoCache only when both sources are unavailable.
func FetchOrCached[T any](ctx context.Context, s *Service, key string, netFn func(context.Context) (T, error)) (T, error) {
	var zero T

	if !s.prober.Online() {
		if v, ok := cached[T](ctx, s, key); ok {
			s.rec.CacheLookups.WithLabelValues("hit").Inc()
			return v, nil
		}
		s.rec.CacheLookups.WithLabelValues("miss").Inc()
		return zero, ErrNoConnectivityNoCache
	}

	v, nerr := netFn(ctx)
	if nerr == nil {
		s.persist(ctx, key, v, time.Now().UnixMilli())
		return v, nil
	}

	if cv, ok := cached[T](ctx, s, key); ok {
		s.rec.CacheLookups.WithLabelValues("stale").Inc()
		s.log.Warnw("network fetch failed, serving cached value", "key", key, "err", nerr)
		return cv, nil
	}
	s.rec.CacheLookups.WithLabelValues("miss").Inc()
	return zero, fmt.Errorf("%w: %v", ErrNoConnectivityNoCache, nerr)
}

func cached[T any](ctx context.Context, s *Service, key string) (T, bool) {
	var v T
	payload, _, err := s.store.Get(ctx, key)
	if err != nil {
		return v, false
	}
	if uerr := json.Unmarshal(payload, &v); uerr != nil {
		s.log.Warnw("cache entry unreadable", "key", key, "err", fmt.Errorf("%w: %v", ErrDeserialization, uerr))
		return v, false
	}
	return v, true
}

func (s *Service) persist(ctx context.Context, key string, v any, ts int64) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Warnw("failed to encode value for cache", "key", key, "err", err)
		return
	}
	if err := s.store.Put(ctx, key, b, ts); err != nil {
		s.log.Warnw("failed to persist cache entry", "key", key, "err", err)
	}
}

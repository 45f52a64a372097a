// Package cache defines the result-page cache collaborator used by the
// pricing query endpoint, plus a Redis-backed implementation. The cache is
// external to the ingestion pipeline; the pipeline never touches it.
//
// Keys are versioned per tour operator: a successful upload bumps the
// operator's version, so pages cached before the upload are never served
// over freshly committed rows.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache: miss")

// PageCache stores previously computed result pages.
type PageCache interface {
	// Get returns the cached payload for key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores payload under key with the cache's TTL. Failures are
	// returned for logging but callers treat caching as best-effort.
	Set(ctx context.Context, key string, payload []byte) error

	// Version returns the current cache version for a scope (a tour
	// operator id). Unknown scopes are version 0.
	Version(ctx context.Context, scope string) int64

	// Bump invalidates a scope by advancing its version.
	Bump(ctx context.Context, scope string) error
}

// Noop disables caching; every Get misses. Used when no cache address is
// configured.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }
func (Noop) Set(context.Context, string, []byte) error   { return nil }
func (Noop) Version(context.Context, string) int64       { return 0 }
func (Noop) Bump(context.Context, string) error          { return nil }

var _ PageCache = Noop{}

// DefaultPageTTL bounds staleness for cached pages even without an
// explicit invalidation.
const DefaultPageTTL = 5 * time.Minute

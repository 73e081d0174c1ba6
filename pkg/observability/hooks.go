// Package observability provides hooks for metrics, tracing, and logging.
//
// Library packages never log directly. They emit events through the hook
// interfaces defined here, and the application registers implementations at
// startup (the CLI registers hooks that log through charmbracelet/log).
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetResolveHooks(&myResolveHooks{})
//	    observability.SetHTTPHooks(&myHTTPHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Resolve().OnResolveStart(ctx, name)
//	// ... fan out ...
//	observability.Resolve().OnResolveComplete(ctx, name, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Resolve Hooks
// =============================================================================

// ResolveHooks receives events from package aggregation.
type ResolveHooks interface {
	// OnResolveStart records the beginning of an aggregation for name.
	OnResolveStart(ctx context.Context, name string)

	// OnResolveComplete records the end of an aggregation. err is nil on success.
	OnResolveComplete(ctx context.Context, name string, duration time.Duration, err error)

	// OnSourceAbsorbed records an optional source failure that was swallowed
	// and replaced by its field default.
	OnSourceAbsorbed(ctx context.Context, source, name string, err error)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// Store Hooks
// =============================================================================

// StoreHooks receives events from key-value store operations.
type StoreHooks interface {
	OnStoreGet(ctx context.Context, backend, key string, hit bool, err error)
	OnStoreSet(ctx context.Context, backend, key string, size int, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopResolveHooks is a no-op implementation of ResolveHooks.
type NoopResolveHooks struct{}

func (NoopResolveHooks) OnResolveStart(context.Context, string)                           {}
func (NoopResolveHooks) OnResolveComplete(context.Context, string, time.Duration, error) {}
func (NoopResolveHooks) OnSourceAbsorbed(context.Context, string, string, error)         {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// NoopStoreHooks is a no-op implementation of StoreHooks.
type NoopStoreHooks struct{}

func (NoopStoreHooks) OnStoreGet(context.Context, string, string, bool, error) {}
func (NoopStoreHooks) OnStoreSet(context.Context, string, string, int, error)  {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	resolveHooks ResolveHooks = NoopResolveHooks{}
	httpHooks    HTTPHooks    = NoopHTTPHooks{}
	storeHooks   StoreHooks   = NoopStoreHooks{}
	hooksMu      sync.RWMutex
)

// SetResolveHooks registers custom resolve hooks.
// This should be called once at application startup.
func SetResolveHooks(h ResolveHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		resolveHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// SetStoreHooks registers custom store hooks.
func SetStoreHooks(h StoreHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		storeHooks = h
	}
}

// Resolve returns the registered resolve hooks.
func Resolve() ResolveHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return resolveHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Store returns the registered store hooks.
func Store() StoreHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return storeHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	resolveHooks = NoopResolveHooks{}
	httpHooks = NoopHTTPHooks{}
	storeHooks = NoopStoreHooks{}
}

// =============================================================================
// Query Correlation
// =============================================================================

type ctxKey int

const queryIDKey ctxKey = 0

// WithQueryID returns a context carrying id so hook events emitted while
// serving one query can be correlated.
func WithQueryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, queryIDKey, id)
}

// QueryID returns the query ID stored in ctx, or "" if there is none.
func QueryID(ctx context.Context) string {
	if id, ok := ctx.Value(queryIDKey).(string); ok {
		return id
	}
	return ""
}

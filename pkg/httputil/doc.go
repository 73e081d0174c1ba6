// Package httputil provides HTTP plumbing shared by the upstream API clients.
//
// # Overview
//
//   - [Retry]: retry with exponential backoff for transient failures
//   - [NewTransport]: an http.Transport backed by a shared DNS cache
//   - [Breakers]: one circuit breaker per upstream host
//
// # Retry
//
// [Retry] only retries errors wrapped in [RetryableError]. Clients wrap
// network errors, 5xx responses and 429 responses; a 404 is returned at once.
//
//	err := httputil.Retry(ctx, 3, 500*time.Millisecond, func() error {
//	    return fetch(ctx, url)
//	})
//
// # Circuit breaking
//
// [Breakers] trips a host after five consecutive failures and then rejects
// calls with [ErrCircuitOpen] until the cooldown elapses. This keeps a dead
// optional source from adding its full timeout to every query.
//
// # Configuration
//
// Default settings:
//
//   - DNS refresh: 5 minutes
//   - Breaker threshold: 5 failures, 30 second cooldown
package httputil

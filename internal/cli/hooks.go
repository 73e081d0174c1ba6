package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/npmlens/pkg/observability"
)

// logHooks forwards library events to the CLI logger. Everything except
// upstream errors is debug level so normal runs stay quiet.
type logHooks struct {
	logger *log.Logger
}

var (
	_ observability.ResolveHooks = (*logHooks)(nil)
	_ observability.HTTPHooks    = (*logHooks)(nil)
	_ observability.StoreHooks   = (*logHooks)(nil)
)

func (h *logHooks) with(ctx context.Context) *log.Logger {
	if id := observability.QueryID(ctx); id != "" {
		return h.logger.With("query", shortID(id))
	}
	return h.logger
}

func (h *logHooks) OnResolveStart(ctx context.Context, name string) {
	h.with(ctx).Debug("Resolving", "package", name)
}

func (h *logHooks) OnResolveComplete(ctx context.Context, name string, d time.Duration, err error) {
	l := h.with(ctx)
	if err != nil {
		l.Debug("Resolve failed", "package", name, "duration", d.Round(time.Millisecond), "err", err)
		return
	}
	l.Debug("Resolved", "package", name, "duration", d.Round(time.Millisecond))
}

func (h *logHooks) OnSourceAbsorbed(ctx context.Context, source, name string, err error) {
	h.with(ctx).Debug("Optional source failed, continuing without it", "source", source, "package", name, "err", err)
}

func (h *logHooks) OnRequest(ctx context.Context, method, host, path string) {}

func (h *logHooks) OnResponse(ctx context.Context, method, host, path string, status int, d time.Duration) {
	h.with(ctx).Debug("HTTP", "method", method, "host", host, "path", path, "status", status, "duration", d.Round(time.Millisecond))
}

func (h *logHooks) OnError(ctx context.Context, method, host, path string, err error) {
	h.with(ctx).Debug("HTTP error", "method", method, "host", host, "path", path, "err", err)
}

func (h *logHooks) OnStoreGet(ctx context.Context, backend, key string, hit bool, err error) {
	if err != nil {
		h.logger.Warn("Store read failed", "backend", backend, "key", key, "err", err)
		return
	}
	h.logger.Debug("Store get", "backend", backend, "key", key, "hit", hit)
}

func (h *logHooks) OnStoreSet(ctx context.Context, backend, key string, size int, err error) {
	if err != nil {
		h.logger.Warn("Store write failed", "backend", backend, "key", key, "err", err)
		return
	}
	h.logger.Debug("Store set", "backend", backend, "key", key, "bytes", size)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

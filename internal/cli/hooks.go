package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// logHooks reports pipeline, cache and server events at debug level.
type logHooks struct {
	logger *log.Logger
}

func (h *logHooks) OnLoadStart(_ context.Context, source string) {
	h.logger.Debug("load started", "source", source)
}

func (h *logHooks) OnLoadComplete(_ context.Context, source string, size int64, d time.Duration, err error) {
	h.complete("load", err, "source", source, "bytes", size, "duration", d)
}

func (h *logHooks) OnRenameStart(_ context.Context, identifiers int) {
	h.logger.Debug("rename started", "identifiers", identifiers)
}

func (h *logHooks) OnRenameComplete(_ context.Context, identifiers, sites int, d time.Duration, err error) {
	h.complete("rename", err, "identifiers", identifiers, "sites", sites, "duration", d)
}

func (h *logHooks) OnSaveStart(_ context.Context, dest string) {
	h.logger.Debug("save started", "dest", dest)
}

func (h *logHooks) OnSaveComplete(_ context.Context, dest string, size int64, d time.Duration, err error) {
	h.complete("save", err, "dest", dest, "bytes", size, "duration", d)
}

func (h *logHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *logHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *logHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *logHooks) OnRequest(_ context.Context, method, path string) {
	h.logger.Debug("request started", "method", method, "path", path)
}

func (h *logHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

func (h *logHooks) complete(stage string, err error, kv ...any) {
	if err != nil {
		h.logger.Debug(stage+" failed", append(kv, "error", err)...)
		return
	}
	h.logger.Debug(stage+" complete", kv...)
}

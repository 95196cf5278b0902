package main

import (
	"context"
	"log/slog"

	"github.com/mattjoyce/halyard/internal/config"
	"github.com/mattjoyce/halyard/internal/history"
	"github.com/mattjoyce/halyard/internal/log"
)

// historyBridge opens the history database only when a shell starts, so
// one-shot commands never touch it. Failures disable history and are
// logged; they never end the session.
type historyBridge struct {
	cfg   config.HistoryConfig
	store *history.Store
}

func newHistoryBridge(cfg config.HistoryConfig) *historyBridge {
	return &historyBridge{cfg: cfg}
}

func (h *historyBridge) logger() *slog.Logger {
	return log.WithComponent("history")
}

// Open connects to the database and returns the lines to preload.
func (h *historyBridge) Open() []string {
	if !h.cfg.On() || h.store != nil {
		return nil
	}
	ctx := context.Background()
	store, err := history.Open(ctx, h.cfg.Path)
	if err != nil {
		h.logger().Warn("history disabled", "path", h.cfg.Path, "error", err)
		return nil
	}
	h.store = store

	recent, err := store.Recent(ctx, h.cfg.Limit)
	if err != nil {
		h.logger().Warn("failed to read history", "error", err)
		return nil
	}
	return recent
}

func (h *historyBridge) Append(ctx context.Context, line string) error {
	if h.store == nil {
		return nil
	}
	return h.store.Append(ctx, line)
}

func (h *historyBridge) Close() {
	if h.store == nil {
		return
	}
	if n, err := h.store.Prune(context.Background(), h.cfg.Limit); err != nil {
		h.logger().Warn("failed to prune history", "error", err)
	} else if n > 0 {
		h.logger().Debug("pruned history", "rows", n)
	}
	if err := h.store.Close(); err != nil {
		h.logger().Warn("failed to close history", "error", err)
	}
	h.store = nil
}

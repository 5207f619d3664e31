// Package service coordinates the in-memory engines with the durability and
// fan-out layers: every committed engine mutation is written through to
// Postgres, invalidated in Redis, audit-logged, and published on the signal
// bus. The engines stay authoritative; a store or bus failure after a
// committed mutation is logged and the mutation stands.
package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pullmarket/pullmarket/internal/domain"
)

// EventChannel is the Pub/Sub channel carrying every committed event.
const EventChannel = "pullmarket:events"

// EventStream is the durable Redis stream mirroring EventChannel.
const EventStream = "pullmarket:events:stream"

// publishEvent fans a committed event out on the bus, both ephemeral and
// durable. Failures are logged, never returned: the state change has already
// happened.
func publishEvent(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, ev domain.Event) {
	if bus == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		logger.ErrorContext(ctx, "event marshal failed",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := bus.Publish(ctx, EventChannel, data); err != nil {
		logger.WarnContext(ctx, "event publish failed",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
	}
	if err := bus.StreamAppend(ctx, EventStream, data); err != nil {
		logger.WarnContext(ctx, "event stream append failed",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}

// auditLog records an audit entry, logging instead of failing when the store
// is down.
func auditLog(ctx context.Context, store domain.AuditStore, logger *slog.Logger, event string, detail map[string]any) {
	if store == nil {
		return
	}
	if err := store.Log(ctx, event, detail); err != nil {
		logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

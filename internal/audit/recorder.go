package audit

import (
	"context"
	"log/slog"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

// Nop discards every event.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, core.AuditEvent) {}

// SlogRecorder writes events to a structured logger.
type SlogRecorder struct {
	Logger *slog.Logger
}

// Record implements Recorder.
func (r SlogRecorder) Record(ctx context.Context, e core.AuditEvent) {
	if r.Logger == nil {
		return
	}
	r.Logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("action", string(e.Action)),
		slog.String("actor", e.Actor),
		slog.String("connection", e.Connection),
		slog.String("table", e.Table),
		slog.String("key", e.Key),
		slog.Int64("rows_affected", e.RowsAffected),
	)
}

// Multi fans events out to several recorders.
type Multi []Recorder

// Record implements Recorder.
func (m Multi) Record(ctx context.Context, e core.AuditEvent) {
	for _, r := range m {
		if r != nil {
			r.Record(ctx, e)
		}
	}
}

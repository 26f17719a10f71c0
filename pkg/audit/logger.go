package audit

import (
	"context"

	"github.com/platinummonkey/gatehouse/pkg/observability"
)

// Logger is the workspace audit sink.
type Logger interface {
	Log(ctx context.Context, entry *Entry) error
}

/// PermissionRecorder is the permission-audit sink: role/permission state
// transitions with before/after snapshots.
type PermissionRecorder interface {
	Record(ctx context.Context, event *PermissionEvent) error
}

// NopLogger discards audit entries. Used when no sink is configured.
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, entry *Entry) error { return nil }

func (NopLogger) Record(ctx context.Context, event *PermissionEvent) error { return nil }

// Dispatch runs an audit write off the caller's critical path. The write
// gets a fresh context so a finished request cannot cancel it; panics are
// recovered and failures logged, never returned.
func Dispatch(log *observability.Logger, name string, write func(ctx context.Context) error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("sink", name).Errorf("audit dispatch panicked: %v", r)
			}
		}()
		if err := write(context.Background()); err != nil {
			log.WithField("sink", name).WithError(err).Warn("audit write failed")
		}
	}()
}

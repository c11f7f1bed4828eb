package syncer

import (
	"log/slog"

	"github.com/classtop/classtop-sync/internal/schedule"
)

// Outcome summarizes one finished sync attempt for event consumers.
type Outcome struct {
	Direction      schedule.Direction
	Status         schedule.Status
	Message        string
	CoursesSynced  int
	EntriesSynced  int
	ConflictsFound int
}

// Events receives fire-and-forget notifications when a sync attempt
// completes. Implementations must not block; the engine does not wait
// for acknowledgment and ignores any failure to deliver.
type Events interface {
	SyncCompleted(outcome Outcome)
}

// NopEvents discards all notifications.
type NopEvents struct{}

// SyncCompleted implements Events.
func (NopEvents) SyncCompleted(Outcome) {}

// LogEvents writes each completed sync to the logger. Used by the
// daemon when no UI event bridge is attached.
type LogEvents struct {
	Logger *slog.Logger
}

// SyncCompleted implements Events.
func (l LogEvents) SyncCompleted(outcome Outcome) {
	l.Logger.Info("sync completed",
		slog.String("direction", string(outcome.Direction)),
		slog.String("status", string(outcome.Status)),
		slog.Int("courses", outcome.CoursesSynced),
		slog.Int("entries", outcome.EntriesSynced),
		slog.Int("conflicts", outcome.ConflictsFound),
	)
}

package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/classtop/classtop-sync/internal/schedule"
)

const (
	// loopTick is the granularity at which interval sleeps check for
	// cancellation, so a stop request is observed within about one
	// second rather than at the end of a long interval.
	loopTick = time.Second

	// errorCooldown is the fixed wait after a cycle blows up outside
	// the normal operation error paths. Keeps a persistently broken
	// cycle from spinning.
	errorCooldown = 60 * time.Second

	// disabledRecheck is how long the loop waits before re-reading
	// the enabled flag while sync is turned off.
	disabledRecheck = 5 * time.Second
)

// RunLoop runs the periodic background sync until ctx is cancelled.
// The enabled flag, direction, interval, and strategy are re-read from
// the settings store at the start of every cycle, so configuration
// changes take effect on the next tick without a restart. No single
// cycle's failure terminates the loop.
func (e *Engine) RunLoop(ctx context.Context) error {
	e.logger.Info("background sync loop starting")

	for {
		if err := ctx.Err(); err != nil {
			e.logger.Info("background sync loop stopping")
			return err
		}

		if !e.store.SettingBool(SettingEnabled, false) {
			if !sleepCtx(ctx, disabledRecheck) {
				e.logger.Info("background sync loop stopping")
				return ctx.Err()
			}

			continue
		}

		interval := e.store.SettingInt(SettingInterval, DefaultInterval)
		if interval < 1 {
			interval = DefaultInterval
		}

		direction := schedule.Direction(e.store.Setting(SettingDirection, string(DefaultDirection)))

		if err := e.runCycle(ctx, direction); err != nil {
			e.logger.Error("sync cycle panicked, cooling down",
				slog.Any("error", err),
				slog.Duration("cooldown", errorCooldown))

			if !sleepCtx(ctx, errorCooldown) {
				e.logger.Info("background sync loop stopping")
				return ctx.Err()
			}

			continue
		}

		if !sleepCtx(ctx, time.Duration(interval)*time.Second) {
			e.logger.Info("background sync loop stopping")
			return ctx.Err()
		}
	}
}

// runCycle executes one sync pass in the configured direction.
// Operation failures are logged and absorbed here so the loop retries
// on its normal cadence; only a panic escapes as an error, which the
// loop answers with the fixed cooldown.
func (e *Engine) runCycle(ctx context.Context, direction schedule.Direction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync cycle panic: %v", r)
		}
	}()

	switch direction {
	case schedule.DirectionBidirectional:
		strategy := Strategy(e.store.Setting(SettingStrategy, string(DefaultStrategy)))

		result, err := e.BidirectionalSync(ctx, strategy)
		if err != nil {
			e.logger.Error("bidirectional sync failed", slog.Any("error", err))
		} else {
			e.logger.Info("bidirectional cycle finished",
				slog.Int("conflicts", result.ConflictsFound))
		}

	case schedule.DirectionDownload:
		result, err := e.DownloadAndApply(ctx)
		if err != nil {
			e.logger.Error("download sync failed", slog.Any("error", err))

			e.events.SyncCompleted(Outcome{
				Direction: schedule.DirectionDownload,
				Status:    schedule.StatusFailure,
				Message:   err.Error(),
			})
		} else {
			e.events.SyncCompleted(Outcome{
				Direction:     schedule.DirectionDownload,
				Status:        schedule.StatusSuccess,
				CoursesSynced: result.CoursesApplied,
				EntriesSynced: result.EntriesApplied,
			})
		}

	default: // upload
		counts, err := e.Upload(ctx)
		if err != nil {
			e.logger.Error("upload sync failed", slog.Any("error", err))

			e.events.SyncCompleted(Outcome{
				Direction: schedule.DirectionUpload,
				Status:    schedule.StatusFailure,
				Message:   err.Error(),
			})
		} else {
			e.events.SyncCompleted(Outcome{
				Direction:     schedule.DirectionUpload,
				Status:        schedule.StatusSuccess,
				CoursesSynced: counts.SyncedCourses,
				EntriesSynced: counts.SyncedEntries,
			})
		}
	}

	return nil
}

// sleepCtx waits for d in loopTick increments, returning false as soon
// as ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)

	for time.Now().Before(deadline) {
		tick := loopTick
		if remaining := time.Until(deadline); remaining < tick {
			tick = remaining
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(tick):
		}
	}

	return true
}

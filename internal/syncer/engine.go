// Package syncer implements the bidirectional schedule-synchronization
// engine: it reconciles the local course dataset with a remote
// management server's copy, resolves conflicts under a configurable
// strategy, and leaves both sides convergent.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/classtop/classtop-sync/internal/schedule"
	"github.com/classtop/classtop-sync/internal/store"
)

// Settings keys the engine reads from the settings store. Runtime
// values are re-read on every access so configuration changes take
// effect without a restart.
const (
	SettingServerURL  = "server_url"
	SettingClientUUID = "client_uuid"
	SettingClientName = "client_name"
	SettingEnabled    = "sync_enabled"
	SettingInterval   = "sync_interval"
	SettingDirection  = "sync_direction"
	SettingStrategy   = "sync_strategy"
)

// Defaults applied when a setting is absent.
const (
	DefaultInterval  = 300
	DefaultDirection = schedule.DirectionUpload
	DefaultStrategy  = StrategyServerWins
)

// ErrSyncInProgress is returned when an orchestrator run is requested
// while another one is still executing. Runs are never queued; the
// caller retries on its own cadence.
var ErrSyncInProgress = errors.New("a sync is already in progress")

// Engine wires the local store, the API client, and the event sink
// into the sync operations. Safe for concurrent use: UUID issuance and
// orchestrator runs are internally serialized.
type Engine struct {
	store  *store.Store
	client *Client
	logger *slog.Logger
	events Events

	// uuidMu guards first-time identity generation so concurrent
	// register calls never persist divergent UUIDs.
	uuidMu sync.Mutex

	// syncMu makes orchestrator runs non-reentrant. The background
	// loop and a manual "sync now" trigger may race; the loser gets
	// ErrSyncInProgress instead of a second concurrent run.
	syncMu sync.Mutex
}

// New creates an engine. A nil client gets a default HTTP client; a
// nil events sink is replaced with a no-op.
func New(st *store.Store, client *Client, logger *slog.Logger, events Events) *Engine {
	if client == nil {
		client = NewClient(nil)
	}

	if events == nil {
		events = NopEvents{}
	}

	return &Engine{
		store:  st,
		client: client,
		logger: logger,
		events: events,
	}
}

// serverURL reads and validates the configured endpoint.
func (e *Engine) serverURL() (string, error) {
	raw := e.store.Setting(SettingServerURL, "")
	if err := ValidateServerURL(raw); err != nil {
		return "", err
	}

	return raw, nil
}

// identity returns the persisted client UUID, or ErrNotConfigured when
// registration has never run.
func (e *Engine) identity() (string, error) {
	id := e.store.Setting(SettingClientUUID, "")
	if id == "" {
		return "", fmt.Errorf("client UUID missing: %w", ErrNotConfigured)
	}

	return id, nil
}

// logHistory appends an audit row. History is fire-and-forget relative
// to the sync outcome: a failed write is logged and swallowed so it
// never masks the primary result.
func (e *Engine) logHistory(direction schedule.Direction, status schedule.Status, message string, courses, entries, conflicts int) {
	rec := schedule.SyncHistoryRecord{
		Direction:      direction,
		Status:         status,
		Message:        message,
		CoursesSynced:  courses,
		EntriesSynced:  entries,
		ConflictsFound: conflicts,
	}

	if err := e.store.AppendHistory(&rec); err != nil {
		e.logger.Error("writing sync history failed", slog.Any("error", err))
	}
}

// Register establishes this install's durable identity with the
// server. When no UUID is stored yet, one is generated and persisted
// before the network call, under a lock, so a failed registration is
// retryable with the same identity.
func (e *Engine) Register(ctx context.Context) error {
	baseURL, err := e.serverURL()
	if err != nil {
		return err
	}

	e.uuidMu.Lock()

	clientUUID := e.store.Setting(SettingClientUUID, "")
	if clientUUID == "" {
		clientUUID = uuid.NewString()

		if err := e.store.SetSetting(SettingClientUUID, clientUUID); err != nil {
			e.uuidMu.Unlock()
			return fmt.Errorf("persisting client UUID: %w", err)
		}

		e.logger.Info("generated client identity", slog.String("uuid", clientUUID))
	}

	e.uuidMu.Unlock()

	name := e.store.Setting(SettingClientName, "")
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil || hostname == "" {
			hostname = "classtop-client"
		}

		name = hostname
	}

	req := RegisterRequest{UUID: clientUUID, Name: name}
	if err := e.client.Register(ctx, baseURL, req); err != nil {
		return err
	}

	e.logger.Info("client registered", slog.String("name", name))

	return nil
}

// ConnectionStatus is the result of a health probe, shaped for direct
// display.
type ConnectionStatus struct {
	OK      bool
	Message string
	Data    HealthData
}

// TestConnection probes the server's health endpoint and maps the
// common failure classes to human-readable messages.
func (e *Engine) TestConnection(ctx context.Context) ConnectionStatus {
	baseURL, err := e.serverURL()
	if err != nil {
		return ConnectionStatus{Message: err.Error()}
	}

	data, err := e.client.Health(ctx, baseURL)
	if err != nil {
		msg := "connection failed: " + err.Error()
		if IsTransient(err) {
			msg = "server unreachable: " + err.Error()
		}

		return ConnectionStatus{Message: msg}
	}

	return ConnectionStatus{OK: true, Message: "connected", Data: data}
}

// Upload serializes the full local dataset and pushes it to the server
// in one request. All-or-nothing from the client's perspective, and
// idempotent: re-sending the same snapshot is always safe.
func (e *Engine) Upload(ctx context.Context) (SyncCounts, error) {
	baseURL, err := e.serverURL()
	if err != nil {
		return SyncCounts{}, err
	}

	clientUUID, err := e.identity()
	if err != nil {
		return SyncCounts{}, err
	}

	local, err := e.store.Snapshot()
	if err != nil {
		return SyncCounts{}, fmt.Errorf("reading local dataset: %w", err)
	}

	courses, entries := datasetToWire(local)

	counts, err := e.client.PushSnapshot(ctx, baseURL, SyncRequest{
		ClientUUID: clientUUID,
		Courses:    courses,
		Entries:    entries,
	})
	if err != nil {
		e.logHistory(schedule.DirectionUpload, schedule.StatusFailure, err.Error(), 0, 0, 0)
		return SyncCounts{}, err
	}

	msg := fmt.Sprintf("uploaded %d courses, %d schedule entries", counts.SyncedCourses, counts.SyncedEntries)
	e.logHistory(schedule.DirectionUpload, schedule.StatusSuccess, msg, counts.SyncedCourses, counts.SyncedEntries, 0)
	e.logger.Info("upload finished",
		slog.Int("courses", counts.SyncedCourses),
		slog.Int("entries", counts.SyncedEntries))

	return counts, nil
}

// Download retrieves the full remote dataset scoped to this client's
// identity: courses first, then schedule entries. Either call failing
// aborts the whole download; no partial dataset is ever returned as
// success.
func (e *Engine) Download(ctx context.Context) (schedule.Dataset, error) {
	baseURL, err := e.serverURL()
	if err != nil {
		return schedule.Dataset{}, err
	}

	clientUUID, err := e.identity()
	if err != nil {
		return schedule.Dataset{}, err
	}

	courses, err := e.client.FetchCourses(ctx, baseURL, clientUUID)
	if err != nil {
		e.logHistory(schedule.DirectionDownload, schedule.StatusFailure, err.Error(), 0, 0, 0)
		return schedule.Dataset{}, err
	}

	entries, err := e.client.FetchSchedule(ctx, baseURL, clientUUID)
	if err != nil {
		e.logHistory(schedule.DirectionDownload, schedule.StatusFailure, err.Error(), 0, 0, 0)
		return schedule.Dataset{}, err
	}

	remote := datasetFromWire(courses, entries)

	msg := fmt.Sprintf("downloaded %d courses, %d schedule entries", len(remote.Courses), len(remote.Entries))
	e.logHistory(schedule.DirectionDownload, schedule.StatusSuccess, msg, len(remote.Courses), len(remote.Entries), 0)
	e.logger.Info("download finished",
		slog.Int("courses", len(remote.Courses)),
		slog.Int("entries", len(remote.Entries)))

	return remote, nil
}

// DownloadAndApply pulls the remote dataset and writes it straight
// into the local store. This is the download-only background cycle.
func (e *Engine) DownloadAndApply(ctx context.Context) (ApplyResult, error) {
	remote, err := e.Download(ctx)
	if err != nil {
		return ApplyResult{}, err
	}

	result := applyDataset(e.store, remote, e.logger)
	if result.TotalFailure() {
		return result, fmt.Errorf("applying server data: nothing could be written")
	}

	return result, nil
}

// BidirectionalResult is the outcome of one full orchestrator run.
type BidirectionalResult struct {
	ConflictsFound int
	CoursesUpdated int
	EntriesUpdated int
}

// BidirectionalSync runs the full reconciliation sequence:
// download, snapshot local, detect, merge, apply, upload.
//
// Download failure aborts immediately. Conflict detection is
// diagnostic and never gates later steps. Apply aborts only on total
// failure. An upload failure is reported but nothing is rolled back:
// the local store keeps the merged state and the next cycle converges.
// Exactly one bidirectional history row is written per attempt.
func (e *Engine) BidirectionalSync(ctx context.Context, strategy Strategy) (BidirectionalResult, error) {
	if !ValidStrategy(strategy) {
		return BidirectionalResult{}, fmt.Errorf("invalid sync strategy %q", strategy)
	}

	if !e.syncMu.TryLock() {
		return BidirectionalResult{}, ErrSyncInProgress
	}
	defer e.syncMu.Unlock()

	e.logger.Info("bidirectional sync starting", slog.String("strategy", string(strategy)))

	// Download logs its own failure history row; the bidirectional row
	// is only written when the sequence runs to completion.
	server, err := e.Download(ctx)
	if err != nil {
		e.notify(schedule.StatusFailure, fmt.Sprintf("download failed: %v", err), BidirectionalResult{})

		return BidirectionalResult{}, fmt.Errorf("bidirectional sync: %w", err)
	}

	local, err := e.store.Snapshot()
	if err != nil {
		msg := fmt.Sprintf("reading local dataset failed: %v", err)
		e.logHistory(schedule.DirectionBidirectional, schedule.StatusFailure, msg, 0, 0, 0)
		e.notify(schedule.StatusFailure, msg, BidirectionalResult{})

		return BidirectionalResult{}, fmt.Errorf("bidirectional sync: %w", err)
	}

	conflicts := Detect(local, server)
	if conflicts.HasConflicts() {
		e.logger.Info("conflicts detected",
			slog.Int("courses", len(conflicts.Courses)),
			slog.Int("entries", len(conflicts.Entries)),
			slog.String("strategy", string(strategy)))
	}

	merged := Merge(local, server, strategy, e.logger)

	result := BidirectionalResult{
		ConflictsFound: conflicts.Count(),
		CoursesUpdated: len(merged.Courses),
		EntriesUpdated: len(merged.Entries),
	}

	applied := applyDataset(e.store, merged, e.logger)
	if applied.TotalFailure() {
		msg := "applying merged data to local store failed"
		e.notify(schedule.StatusFailure, msg, BidirectionalResult{ConflictsFound: result.ConflictsFound})

		return result, fmt.Errorf("bidirectional sync: %s", msg)
	}

	// Upload logs its own failure history row. Local state stays
	// merged either way; the next cycle re-uploads.
	if _, err := e.Upload(ctx); err != nil {
		e.notify(schedule.StatusFailure, fmt.Sprintf("uploading merged data failed: %v", err), result)

		return result, fmt.Errorf("bidirectional sync: %w", err)
	}

	status := schedule.StatusSuccess
	if result.ConflictsFound > 0 {
		status = schedule.StatusConflict
	}

	msg := fmt.Sprintf("bidirectional sync finished: %d courses, %d schedule entries, %d conflicts resolved",
		result.CoursesUpdated, result.EntriesUpdated, result.ConflictsFound)

	e.logHistory(schedule.DirectionBidirectional, status, msg,
		result.CoursesUpdated, result.EntriesUpdated, result.ConflictsFound)
	e.notify(status, msg, result)

	e.logger.Info("bidirectional sync finished",
		slog.Int("courses", result.CoursesUpdated),
		slog.Int("entries", result.EntriesUpdated),
		slog.Int("conflicts", result.ConflictsFound))

	return result, nil
}

// notify delivers a completion event without waiting on the sink.
func (e *Engine) notify(status schedule.Status, message string, result BidirectionalResult) {
	e.events.SyncCompleted(Outcome{
		Direction:      schedule.DirectionBidirectional,
		Status:         status,
		Message:        message,
		CoursesSynced:  result.CoursesUpdated,
		EntriesSynced:  result.EntriesUpdated,
		ConflictsFound: result.ConflictsFound,
	})
}

// History returns recent sync attempts, most recent first.
func (e *Engine) History(limit int) ([]schedule.SyncHistoryRecord, error) {
	return e.store.RecentHistory(limit)
}

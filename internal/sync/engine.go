// Package sync orchestrates a full synchronization run: upload pending
// local work, then refresh the local reference caches from the server.
// A run degrades to partial success rather than aborting when individual
// batches fail.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/PastorRae/visitation-log/internal/db"
	"github.com/PastorRae/visitation-log/internal/errors"
	"github.com/PastorRae/visitation-log/internal/logging"
	"github.com/PastorRae/visitation-log/internal/models"
	"github.com/PastorRae/visitation-log/internal/remote"
	"github.com/PastorRae/visitation-log/internal/sync/conflict"
	"github.com/PastorRae/visitation-log/internal/sync/progress"
	"github.com/PastorRae/visitation-log/internal/sync/queue"
)

// Progress checkpoints for the run's stages. Upload fills 20 to 60
// proportionally to visits processed, download fills 60 to 100.
const (
	progressAuth          = 5
	progressUploadStart   = 20
	progressUploadEnd     = 60
	progressChurchesDone  = 70
	progressMembersEnd    = 90
	progressVisitsChecked = 95
	progressDone          = 100
)

// ConflictResolution records how one conflicted record was settled.
type ConflictResolution struct {
	VisitID    string `json:"visit_id"`
	Resolution string `json:"resolution"`
}

// Result summarizes one sync run. Success is false when any step
// accumulated errors, even though the run itself finished.
type Result struct {
	Success            bool                 `json:"success"`
	VisitsSynced       int                  `json:"visits_synced"`
	FollowupsSynced    int                  `json:"followups_synced"`
	ChurchesDownloaded int                  `json:"churches_downloaded"`
	MembersDownloaded  int                  `json:"members_downloaded"`
	ServerVisitsSeen   int                  `json:"server_visits_seen"`
	Conflicts          []ConflictResolution `json:"conflicts,omitempty"`
	Errors             []string             `json:"errors,omitempty"`
	Duration           time.Duration        `json:"duration"`
}

// visitSyncPayload is the queued form of a failed upload batch.
type visitSyncPayload struct {
	VisitIDs []string `json:"visit_ids"`
}

// memberDownloadPayload is the queued form of a member cache refresh.
type memberDownloadPayload struct {
	ChurchID string `json:"church_id"`
}

// Engine drives sync runs. At most one run executes per process; a
// second Sync while one is active fails fast with ErrSyncInProgress.
type Engine struct {
	store    db.SyncStore
	client   *remote.Client
	queue    *queue.Queue
	resolver *conflict.Resolver
	reporter *progress.Reporter

	batchSize int
	running   chan struct{}
}

// NewEngine wires an Engine. The reporter may be shared with other
// components; the queue receives failed retryable work.
func NewEngine(store db.SyncStore, client *remote.Client, q *queue.Queue,
	resolver *conflict.Resolver, reporter *progress.Reporter, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = 50
	}
	e := &Engine{
		store:     store,
		client:    client,
		queue:     q,
		resolver:  resolver,
		reporter:  reporter,
		batchSize: batchSize,
		running:   make(chan struct{}, 1),
	}
	e.registerQueueHandlers()
	return e
}

// Reporter exposes the progress reporter for observer registration.
func (e *Engine) Reporter() *progress.Reporter {
	return e.reporter
}

// IsRunning reports whether a sync run is active.
func (e *Engine) IsRunning() bool {
	return len(e.running) > 0
}

// Sync performs one full run. It returns an error only for hard aborts
// (already running, unauthenticated, canceled); batch-level failures are
// collected in the Result with Success=false.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	select {
	case e.running <- struct{}{}:
	default:
		return nil, errors.New(errors.ErrSyncInProgress, "sync already running")
	}
	defer func() { <-e.running }()

	start := time.Now()
	result := &Result{}

	logging.Info("Sync run started", logging.Fields{})
	e.reporter.Publish(progress.Update{
		Stage: progress.StageStarting, Percent: 0,
		Message: "starting sync",
	})
	e.reporter.Publish(progress.Update{
		Stage: progress.StageAuthenticating, Percent: progressAuth,
		Message: "checking credentials",
	})

	if !e.client.EnsureFreshToken() {
		err := errors.New(errors.ErrAuth, "not authenticated")
		e.fail(err)
		return nil, err
	}

	// No uploads against a server that cannot accept them; an unhealthy
	// remote aborts the run before any side effects.
	if !e.client.HealthCheck(ctx) {
		err := errors.New(errors.ErrNetwork, "remote system is unavailable")
		e.fail(err)
		return nil, err
	}

	if err := e.uploadVisits(ctx, result); err != nil {
		e.fail(err)
		return nil, err
	}
	e.markFollowups(result)

	if err := e.download(ctx, result); err != nil {
		e.fail(err)
		return nil, err
	}

	result.Duration = time.Since(start)
	result.Success = len(result.Errors) == 0

	if result.Success {
		if err := e.store.SetLastSyncTimestamp(models.NowMillis()); err != nil {
			logging.Error("Failed to record last sync time", err, logging.Fields{})
		}
		e.reporter.Publish(progress.Update{
			Stage: progress.StageCompleted, Percent: progressDone,
			Message: "sync completed",
		})
	} else {
		e.reporter.Publish(progress.Update{
			Stage: progress.StageError, Percent: progressDone,
			Message: fmt.Sprintf("sync finished with %d errors", len(result.Errors)),
		})
	}

	logging.Info("Sync run finished", logging.Fields{
		"success":    result.Success,
		"visits":     result.VisitsSynced,
		"followups":  result.FollowupsSynced,
		"churches":   result.ChurchesDownloaded,
		"members":    result.MembersDownloaded,
		"conflicts":  len(result.Conflicts),
		"errors":     len(result.Errors),
		"duration_s": result.Duration.Seconds(),
	})
	return result, nil
}

func (e *Engine) fail(err error) {
	e.reporter.Publish(progress.Update{
		Stage: progress.StageError, Percent: progressDone,
		Message: err.Error(),
	})
	logging.Error("Sync run aborted", err, logging.Fields{})
}

// uploadVisits pushes every unsynced visit in batches. A failed batch is
// recorded and, when the failure is transient, parked on the offline
// queue; the run then continues with the next batch.
func (e *Engine) uploadVisits(ctx context.Context, result *Result) error {
	visits, err := e.store.GetUnsyncedVisits()
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to load unsynced visits", err)
	}

	e.reporter.Publish(progress.Update{
		Stage: progress.StageUploading, Percent: progressUploadStart,
		Message: fmt.Sprintf("%d visits to upload", len(visits)),
	})
	if len(visits) == 0 {
		e.reporter.Publish(progress.Update{
			Stage: progress.StageUploading, Percent: progressUploadEnd,
			Message: "nothing to upload",
		})
		return nil
	}

	processed := 0
	for startIdx := 0; startIdx < len(visits); startIdx += e.batchSize {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(errors.ErrTimeout, "sync canceled during upload", err)
		}

		end := startIdx + e.batchSize
		if end > len(visits) {
			end = len(visits)
		}
		batch := visits[startIdx:end]

		e.uploadBatch(ctx, batch, result)

		processed += len(batch)
		percent := progressUploadStart +
			(progressUploadEnd-progressUploadStart)*processed/len(visits)
		e.reporter.Publish(progress.Update{
			Stage: progress.StageUploading, Percent: percent,
			Message: fmt.Sprintf("uploaded %d of %d visits", processed, len(visits)),
		})
	}
	return nil
}

func (e *Engine) uploadBatch(ctx context.Context, batch []*models.VisitRecord, result *Result) {
	resp, err := e.client.UploadVisits(ctx, batch)
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("upload batch failed: %v", err))
		if errors.IsRetryable(err) {
			e.parkBatch(batch)
		}
		return
	}

	failed := make(map[string]bool, len(resp.Errors))
	for _, re := range resp.Errors {
		failed[re.VisitID] = true
		result.Errors = append(result.Errors,
			fmt.Sprintf("visit %s rejected: %s", re.VisitID, re.Error))
	}

	for _, c := range resp.Conflicts {
		res := e.resolver.Decide(c.MobileUpdated, c.ServerUpdated)
		result.Conflicts = append(result.Conflicts, ConflictResolution{
			VisitID:    c.VisitID,
			Resolution: res.Outcome(),
		})
		logging.Info("Conflict resolved", logging.Fields{
			"visit_id":   c.VisitID,
			"resolution": res.Outcome(),
			"reason":     res.Reason,
		})
	}

	for _, v := range batch {
		if failed[string(v.ID)] {
			continue
		}
		if err := e.store.MarkVisitSynced(string(v.ID)); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("visit %s uploaded but not marked synced: %v", v.ID, err))
			continue
		}
		result.VisitsSynced++
	}
}

// parkBatch queues a failed batch for the next reconnect drain.
func (e *Engine) parkBatch(batch []*models.VisitRecord) {
	ids := make([]string, len(batch))
	for i, v := range batch {
		ids[i] = string(v.ID)
	}
	if _, err := e.queue.Enqueue(models.OperationVisitSync, visitSyncPayload{VisitIDs: ids}); err != nil {
		logging.Error("Failed to queue upload batch for retry", err, logging.Fields{
			"visits": len(ids),
		})
	}
}

// markFollowups flips followups whose parent visit was acknowledged in
// this run. Followups have no remote endpoint of their own; they ride on
// the visit upload.
func (e *Engine) markFollowups(result *Result) {
	followups, err := e.store.GetUnsyncedFollowups()
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("failed to load unsynced followups: %v", err))
		return
	}

	pending, err := e.store.GetUnsyncedVisits()
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("failed to load unsynced visits: %v", err))
		return
	}
	stillPending := make(map[string]bool, len(pending))
	for _, v := range pending {
		stillPending[string(v.ID)] = true
	}

	// A followup is synced once its parent visit is no longer pending.
	for _, f := range followups {
		if stillPending[string(f.VisitID)] {
			continue
		}
		if err := e.store.MarkFollowupSynced(string(f.ID)); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("followup %s not marked synced: %v", f.ID, err))
			continue
		}
		result.FollowupsSynced++
	}
}

// download refreshes the church and member caches, then peeks at
// server-side visits for bookkeeping. Download failures are recorded and
// the run continues.
func (e *Engine) download(ctx context.Context, result *Result) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrTimeout, "sync canceled before download", err)
	}

	e.reporter.Publish(progress.Update{
		Stage: progress.StageDownloading, Percent: progressUploadEnd,
		Message: "downloading reference data",
	})

	churches, err := e.client.DownloadChurches(ctx)
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("church download failed: %v", err))
	} else if len(churches) > 0 {
		if err := e.store.ReplaceChurches(churches); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("church cache replace failed: %v", err))
		} else {
			result.ChurchesDownloaded = len(churches)
		}
	}

	e.reporter.Publish(progress.Update{
		Stage: progress.StageDownloading, Percent: progressChurchesDone,
		Message: fmt.Sprintf("%d churches downloaded", result.ChurchesDownloaded),
	})

	cached, err := e.store.GetAllChurches()
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("failed to list cached churches: %v", err))
		cached = nil
	}

	for i, church := range cached {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(errors.ErrTimeout, "sync canceled during member download", err)
		}

		members, err := e.client.DownloadMembers(ctx, church.ID, "")
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("member download failed for church %s: %v", church.ID, err))
			continue
		}
		if len(members) == 0 {
			continue
		}
		if err := e.store.ReplaceMembersForChurch(church.ID, members); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("member cache replace failed for church %s: %v", church.ID, err))
			continue
		}
		result.MembersDownloaded += len(members)

		percent := progressChurchesDone +
			(progressMembersEnd-progressChurchesDone)*(i+1)/len(cached)
		e.reporter.Publish(progress.Update{
			Stage: progress.StageDownloading, Percent: percent,
			Message: fmt.Sprintf("members refreshed for %s", church.Name),
		})
	}

	// Server-side visits are surfaced for visibility only; merging them
	// into the local store is a separate concern.
	lastSync, err := e.store.GetLastSyncTimestamp()
	if err != nil {
		lastSync = 0
	}
	serverVisits, _, err := e.client.DownloadVisits(ctx, "", lastSync)
	if err != nil {
		logging.Warn("Server visit download failed", logging.Fields{"error": err.Error()})
	} else {
		result.ServerVisitsSeen = len(serverVisits)
	}

	e.reporter.Publish(progress.Update{
		Stage: progress.StageDownloading, Percent: progressVisitsChecked,
		Message: fmt.Sprintf("%d server visits since last sync", result.ServerVisitsSeen),
	})
	return nil
}

// =====================================================
// Offline queue handlers
// =====================================================

// registerQueueHandlers binds the engine's handlers for each deferred
// operation kind so a reconnect drain can complete parked work.
func (e *Engine) registerQueueHandlers() {
	e.queue.Register(models.OperationVisitSync, e.handleQueuedVisitSync)
	e.queue.Register(models.OperationChurchDownload, e.handleQueuedChurchDownload)
	e.queue.Register(models.OperationMemberDownload, e.handleQueuedMemberDownload)
	e.queue.OnDrop(func(op *models.SyncOperation, lastErr error) {
		logging.Error("Deferred operation abandoned", lastErr, logging.Fields{
			"operation_id": string(op.ID),
			"kind":         string(op.Kind),
		})
	})
}

// handleQueuedVisitSync re-uploads the visits named in a parked batch.
// Visits synced by other means in the interim are skipped silently.
func (e *Engine) handleQueuedVisitSync(ctx context.Context, op *models.SyncOperation) error {
	var payload visitSyncPayload
	if err := json.Unmarshal(op.Payload, &payload); err != nil {
		return errors.Wrap(errors.ErrValidation, "corrupt visit_sync payload", err)
	}

	pending, err := e.store.GetUnsyncedVisits()
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to load unsynced visits", err)
	}

	wanted := make(map[string]bool, len(payload.VisitIDs))
	for _, id := range payload.VisitIDs {
		wanted[id] = true
	}

	var batch []*models.VisitRecord
	for _, v := range pending {
		if wanted[string(v.ID)] {
			batch = append(batch, v)
		}
	}
	if len(batch) == 0 {
		return nil
	}

	resp, err := e.client.UploadVisits(ctx, batch)
	if err != nil {
		return err
	}

	failed := make(map[string]bool, len(resp.Errors))
	for _, re := range resp.Errors {
		failed[re.VisitID] = true
	}
	for _, v := range batch {
		if failed[string(v.ID)] {
			continue
		}
		if err := e.store.MarkVisitSynced(string(v.ID)); err != nil {
			return errors.Wrap(errors.ErrDatabase, "failed to mark visit synced", err)
		}
	}
	if len(failed) > 0 {
		return errors.Newf(errors.ErrServer, "%d visits rejected on replay", len(failed))
	}
	return nil
}

func (e *Engine) handleQueuedChurchDownload(ctx context.Context, op *models.SyncOperation) error {
	churches, err := e.client.DownloadChurches(ctx)
	if err != nil {
		return err
	}
	if len(churches) == 0 {
		return nil
	}
	return e.store.ReplaceChurches(churches)
}

func (e *Engine) handleQueuedMemberDownload(ctx context.Context, op *models.SyncOperation) error {
	var payload memberDownloadPayload
	if err := json.Unmarshal(op.Payload, &payload); err != nil {
		return errors.Wrap(errors.ErrValidation, "corrupt member_download payload", err)
	}
	if payload.ChurchID == "" {
		return errors.New(errors.ErrValidation, "member_download payload missing church_id")
	}

	members, err := e.client.DownloadMembers(ctx, payload.ChurchID, "")
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}
	return e.store.ReplaceMembersForChurch(payload.ChurchID, members)
}

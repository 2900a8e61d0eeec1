// Package queue holds sync work that could not run while offline. The
// queue is durable: every mutation is written back to the kv area so
// pending operations survive a process restart.
package queue

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/PastorRae/visitation-log/internal/db"
	"github.com/PastorRae/visitation-log/internal/errors"
	"github.com/PastorRae/visitation-log/internal/logging"
	"github.com/PastorRae/visitation-log/internal/models"
	"github.com/PastorRae/visitation-log/internal/uuid"
)

// Handler executes one deferred operation. A nil return removes the
// operation from the queue; an error leaves it in place for retry.
type Handler func(ctx context.Context, op *models.SyncOperation) error

// DropHandler is notified when an operation exhausts its retries and is
// removed permanently.
type DropHandler func(op *models.SyncOperation, lastErr error)

// Queue is a FIFO of deferred sync operations backed by the kv area.
// Safe for concurrent use; Drain is single-flight.
type Queue struct {
	kv     db.KVStore
	onDrop DropHandler

	mu       sync.Mutex
	ops      []*models.SyncOperation
	handlers map[models.OperationKind]Handler
	draining bool
}

// New restores the queue from the kv area. A corrupt stored queue is
// discarded with a warning rather than blocking startup.
func New(kv db.KVStore) (*Queue, error) {
	q := &Queue{
		kv:       kv,
		handlers: make(map[models.OperationKind]Handler),
	}

	raw, ok, err := kv.GetValue(db.KeyOfflineQueue)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to restore offline queue", err)
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &q.ops); err != nil {
			logging.Warn("Stored offline queue is corrupt, starting empty", logging.Fields{
				"error": err.Error(),
			})
			q.ops = nil
		}
	}

	if len(q.ops) > 0 {
		logging.Info("Offline queue restored", logging.Fields{"pending": len(q.ops)})
	}
	return q, nil
}

// Register installs the handler for one operation kind. Operations with
// no registered handler stay queued until a handler appears.
func (q *Queue) Register(kind models.OperationKind, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
}

// OnDrop installs the permanent-drop callback.
func (q *Queue) OnDrop(fn DropHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDrop = fn
}

// Enqueue appends a new operation and persists the queue.
func (q *Queue) Enqueue(kind models.OperationKind, payload interface{}) (*models.SyncOperation, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrValidation, "failed to encode operation payload", err)
	}

	op := &models.SyncOperation{
		ID:         models.UUID(uuid.New()),
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: models.NowMillis(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.ops = append(q.ops, op)
	if err := q.persistLocked(); err != nil {
		q.ops = q.ops[:len(q.ops)-1]
		return nil, err
	}

	logging.Info("Operation queued for later sync", logging.Fields{
		"operation_id": string(op.ID),
		"kind":         string(op.Kind),
		"pending":      len(q.ops),
	})
	return op, nil
}

// Len returns the number of pending operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Pending returns a copy of the queued operations in FIFO order.
func (q *Queue) Pending() []*models.SyncOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*models.SyncOperation, len(q.ops))
	copy(out, q.ops)
	return out
}

// Drain runs every pending operation once, in FIFO order. Successful
// operations are removed; failed ones stay in place with their retry
// count bumped, and are dropped permanently once the count exceeds
// the retry bound. Only one drain runs at a time; a concurrent call
// returns ErrSyncInProgress.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return errors.New(errors.ErrSyncInProgress, "queue drain already running")
	}
	q.draining = true
	pending := make([]*models.SyncOperation, len(q.ops))
	copy(pending, q.ops)
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	if len(pending) == 0 {
		return nil
	}

	logging.Info("Draining offline queue", logging.Fields{"pending": len(pending)})

	for _, op := range pending {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(errors.ErrTimeout, "queue drain canceled", err)
		}

		q.mu.Lock()
		h := q.handlers[op.Kind]
		q.mu.Unlock()

		if h == nil {
			logging.Warn("No handler for queued operation", logging.Fields{
				"operation_id": string(op.ID),
				"kind":         string(op.Kind),
			})
			continue
		}

		err := h(ctx, op)
		if err == nil {
			if rerr := q.remove(op.ID); rerr != nil {
				return rerr
			}
			continue
		}

		if err := q.recordFailure(op.ID, err); err != nil {
			return err
		}
	}
	return nil
}

// remove deletes one operation and persists.
func (q *Queue) remove(id models.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, op := range q.ops {
		if op.ID == id {
			q.ops = append(q.ops[:i], q.ops[i+1:]...)
			return q.persistLocked()
		}
	}
	return nil
}

// recordFailure bumps the retry count, dropping the operation
// permanently when the bound is exhausted.
func (q *Queue) recordFailure(id models.UUID, cause error) error {
	q.mu.Lock()

	var op *models.SyncOperation
	idx := -1
	for i, candidate := range q.ops {
		if candidate.ID == id {
			op, idx = candidate, i
			break
		}
	}
	if op == nil {
		q.mu.Unlock()
		return nil
	}

	op.Retries++
	if op.Retries >= models.MaxSyncRetries {
		q.ops = append(q.ops[:idx], q.ops[idx+1:]...)
		err := q.persistLocked()
		onDrop := q.onDrop
		q.mu.Unlock()

		logging.Error("Operation dropped after exhausting retries", cause, logging.Fields{
			"operation_id": string(op.ID),
			"kind":         string(op.Kind),
			"retries":      op.Retries,
		})
		if onDrop != nil {
			onDrop(op, cause)
		}
		return err
	}

	err := q.persistLocked()
	q.mu.Unlock()

	logging.Warn("Queued operation failed, will retry", logging.Fields{
		"operation_id": string(op.ID),
		"kind":         string(op.Kind),
		"retries":      op.Retries,
		"error":        cause.Error(),
	})
	return err
}

func (q *Queue) persistLocked() error {
	raw, err := json.Marshal(q.ops)
	if err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to encode offline queue", err)
	}
	if err := q.kv.SetValue(db.KeyOfflineQueue, string(raw)); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to persist offline queue", err)
	}
	return nil
}

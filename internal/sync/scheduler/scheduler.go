// Package scheduler runs sync automatically: on a fixed interval while
// the device is online, and immediately after an offline-to-online
// transition (draining the offline queue first).
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/PastorRae/visitation-log/internal/errors"
	"github.com/PastorRae/visitation-log/internal/logging"
	"github.com/PastorRae/visitation-log/internal/network"
	enginepkg "github.com/PastorRae/visitation-log/internal/sync"
	"github.com/PastorRae/visitation-log/internal/sync/queue"
)

// Scheduler owns the periodic sync loop.
type Scheduler struct {
	engine   *enginepkg.Engine
	monitor  *network.Monitor
	queue    *queue.Queue
	interval time.Duration

	mu      sync.Mutex
	running bool
	ctx     context.Context
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a Scheduler. The reconnect listener is registered here,
// before the monitor starts sampling, so the queue is drained on every
// offline-to-online transition even when the periodic loop never runs.
func New(engine *enginepkg.Engine, monitor *network.Monitor, q *queue.Queue, interval time.Duration) *Scheduler {
	s := &Scheduler{
		engine:   engine,
		monitor:  monitor,
		queue:    q,
		interval: interval,
		ctx:      context.Background(),
		stopCh:   make(chan struct{}),
	}
	monitor.OnOnline(s.onReconnect)
	return s
}

// onReconnect handles an offline-to-online transition: the deferred
// queue is always drained; a full sync is kicked only while the
// periodic loop is active.
func (s *Scheduler) onReconnect() {
	s.mu.Lock()
	ctx := s.ctx
	active := s.running
	s.mu.Unlock()

	logging.Info("Back online, draining deferred work", logging.Fields{
		"pending": s.queue.Len(),
	})

	if active {
		s.TriggerSync(ctx)
		return
	}
	if err := s.queue.Drain(ctx); err != nil && !errors.Is(err, errors.ErrSyncInProgress) {
		logging.Error("Queue drain failed", err, logging.Fields{})
	}
}

// Start begins the periodic loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx = ctx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				if !s.monitor.IsOnline() {
					logging.Debug("Skipping scheduled sync while offline", logging.Fields{})
					continue
				}
				s.TriggerSync(ctx)
			}
		}
	}()

	logging.Info("Sync scheduler started", logging.Fields{
		"interval": s.interval.String(),
	})
}

// TriggerSync drains the offline queue and then runs one sync. An
// already-running sync or drain is not an error here; the active run
// covers the trigger.
func (s *Scheduler) TriggerSync(ctx context.Context) {
	if err := s.queue.Drain(ctx); err != nil && !errors.Is(err, errors.ErrSyncInProgress) {
		logging.Error("Queue drain failed", err, logging.Fields{})
	}

	result, err := s.engine.Sync(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrSyncInProgress) {
			logging.Debug("Sync already running, trigger ignored", logging.Fields{})
			return
		}
		logging.Error("Scheduled sync failed", err, logging.Fields{})
		return
	}

	logging.Info("Scheduled sync finished", logging.Fields{
		"success": result.Success,
		"visits":  result.VisitsSynced,
		"errors":  len(result.Errors),
	})
}

// Stop halts the periodic loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

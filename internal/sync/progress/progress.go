// Package progress fans sync status updates out to registered
// observers, keeping the orchestrator free of any UI concern.
package progress

import (
	"sync"

	"github.com/PastorRae/visitation-log/internal/logging"
)

// Stage names the phase a sync run is in.
type Stage string

const (
	StageIdle           Stage = "idle"
	StageStarting       Stage = "starting"
	StageAuthenticating Stage = "authenticating"
	StageUploading      Stage = "uploading"
	StageDownloading    Stage = "downloading"
	StageCompleted      Stage = "completed"
	StageError          Stage = "error"
)

// Update is one progress snapshot. Percent runs 0 to 100 and never
// regresses within a run.
type Update struct {
	Stage   Stage  `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// Listener receives progress updates. Listeners must not block.
type Listener func(Update)

// Reporter is a concurrency-safe observer registry.
type Reporter struct {
	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
	last      Update
}

// NewReporter creates an empty Reporter in the idle stage.
func NewReporter() *Reporter {
	return &Reporter{
		listeners: make(map[int]Listener),
		last:      Update{Stage: StageIdle},
	}
}

// Register adds a listener and returns a handle for Unregister.
func (r *Reporter) Register(fn Listener) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	return id
}

// Unregister removes a listener. Unknown handles are ignored.
func (r *Reporter) Unregister(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listeners, id)
}

// Publish records the update and delivers it to every listener.
func (r *Reporter) Publish(u Update) {
	r.mu.Lock()
	r.last = u
	listeners := make([]Listener, 0, len(r.listeners))
	for _, fn := range r.listeners {
		listeners = append(listeners, fn)
	}
	r.mu.Unlock()

	logging.Debug("Sync progress", logging.Fields{
		"stage":   string(u.Stage),
		"percent": u.Percent,
		"message": u.Message,
	})

	for _, fn := range listeners {
		fn(u)
	}
}

// Last returns the most recently published update.
func (r *Reporter) Last() Update {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

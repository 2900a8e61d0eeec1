// Package network maintains the current connectivity belief and detects
// offline-to-online transitions.
package network

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/PastorRae/visitation-log/internal/logging"
)

// Status is a snapshot of the connectivity belief.
type Status struct {
	Connected bool
	// Reachable is nil when reachability beyond the link is unknown.
	Reachable *bool
}

// Prober answers whether the network is usable right now.
type Prober interface {
	Probe(ctx context.Context) (Status, error)
}

// FallbackPolicy decides the belief when a probe itself fails.
type FallbackPolicy string

const (
	// FallbackOptimistic assumes connectivity on probe failure, letting
	// the remote client discover the truth and queue work if needed.
	FallbackOptimistic FallbackPolicy = "optimistic"
	// FallbackHoldLast keeps the previous belief on probe failure.
	FallbackHoldLast FallbackPolicy = "hold_last"
)

// HTTPProber probes connectivity with a HEAD request against a known URL.
type HTTPProber struct {
	URL    string
	client *http.Client
}

// NewHTTPProber creates an HTTPProber with the given per-probe timeout.
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		URL:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Probe issues a HEAD request. A transport error means disconnected; any
// HTTP response at all means the link is up, with reachability judged
// from the status code.
func (p *HTTPProber) Probe(ctx context.Context) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return Status{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Status{Connected: false}, nil
	}
	resp.Body.Close()

	reachable := resp.StatusCode < 500
	return Status{Connected: true, Reachable: &reachable}, nil
}

// Monitor polls a Prober on a fixed interval and fans out
// offline-to-online transitions to registered listeners.
type Monitor struct {
	prober   Prober
	interval time.Duration
	fallback FallbackPolicy

	mu       sync.RWMutex
	status   Status
	onOnline []func()

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewMonitor creates a Monitor. It holds a disconnected belief until the
// first sample.
func NewMonitor(prober Prober, interval time.Duration, fallback FallbackPolicy) *Monitor {
	return &Monitor{
		prober:   prober,
		interval: interval,
		fallback: fallback,
		stopCh:   make(chan struct{}),
	}
}

// OnOnline registers a listener invoked once per offline-to-online
// transition. Listeners run on their own goroutine so a slow drain does
// not delay sampling.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// Sample queries the prober and updates the belief. It never returns an
// error: on probe failure the configured fallback policy decides.
func (m *Monitor) Sample(ctx context.Context) Status {
	next, err := m.prober.Probe(ctx)

	m.mu.Lock()
	if err != nil {
		switch m.fallback {
		case FallbackHoldLast:
			next = m.status
		default: // optimistic
			next = Status{Connected: true}
		}
		logging.Warn("Network probe failed, using fallback belief", logging.Fields{
			"policy":    string(m.fallback),
			"connected": next.Connected,
		})
	}

	// The initial belief is disconnected, so a process that starts with
	// connectivity drains any queue left over from the previous run.
	wasConnected := m.status.Connected
	m.status = next
	listeners := make([]func(), len(m.onOnline))
	copy(listeners, m.onOnline)
	m.mu.Unlock()

	if next.Connected && !wasConnected {
		logging.Info("Network transition detected", logging.Fields{"connected": true})
		for _, fn := range listeners {
			go fn()
		}
	}

	return next
}

// Status returns the current belief.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsOnline reports the current connectivity belief.
func (m *Monitor) IsOnline() bool {
	return m.Status().Connected
}

// Start begins periodic sampling. The first sample happens immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.Sample(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.Sample(ctx)
			}
		}
	}()

	logging.Info("Network monitor started", logging.Fields{
		"interval": m.interval.String(),
	})
}

// Stop halts periodic sampling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()
}

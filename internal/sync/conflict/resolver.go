// Package conflict decides which side of a concurrently edited record
// survives. Resolution is a pure function of the two update timestamps
// and the configured strategy, so the same inputs always produce the
// same outcome on every device.
package conflict

import (
	"github.com/PastorRae/visitation-log/internal/config"
	"github.com/PastorRae/visitation-log/internal/logging"
)

// Resolution is the outcome of one conflict decision.
type Resolution struct {
	// UseLocal is true when the local edit wins and should overwrite the
	// server copy.
	UseLocal bool
	// Reason names the rule that produced the decision, for audit logs.
	Reason string
}

// Outcome labels used in upload conflict reports.
const (
	LocalKept  = "local_kept"
	ServerKept = "server_kept"
)

// Resolver applies one strategy to all conflicts in a sync run.
type Resolver struct {
	strategy string
}

// NewResolver creates a Resolver for the given strategy name. Unknown
// strategies fall back to latest-wins.
func NewResolver(strategy string) *Resolver {
	switch strategy {
	case config.StrategyLatestWins, config.StrategyPreferLocal,
		config.StrategyPreferServer, config.StrategyManual:
	default:
		logging.Warn("Unknown conflict strategy, using latest_wins", logging.Fields{
			"strategy": strategy,
		})
		strategy = config.StrategyLatestWins
	}
	return &Resolver{strategy: strategy}
}

// Strategy returns the effective strategy name.
func (r *Resolver) Strategy() string {
	return r.strategy
}

// Decide resolves one conflict from the two updated-at timestamps in
// milliseconds since epoch. Under latest-wins the local edit must be
// strictly newer to win; a tie keeps the server copy so that two devices
// observing the same pair agree. The manual strategy has no interactive
// surface here and degrades to latest-wins.
func (r *Resolver) Decide(localUpdatedAt, serverUpdatedAt int64) Resolution {
	switch r.strategy {
	case config.StrategyPreferLocal:
		return Resolution{UseLocal: true, Reason: "prefer_local"}
	case config.StrategyPreferServer:
		return Resolution{UseLocal: false, Reason: "prefer_server"}
	}

	if localUpdatedAt > serverUpdatedAt {
		return Resolution{UseLocal: true, Reason: "local_newer"}
	}
	return Resolution{UseLocal: false, Reason: "server_newer_or_equal"}
}

// Outcome translates a decision into the wire label used in conflict
// reports.
func (res Resolution) Outcome() string {
	if res.UseLocal {
		return LocalKept
	}
	return ServerKept
}

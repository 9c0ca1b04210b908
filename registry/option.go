package registry

import (
	"github.com/rs/zerolog"
)

// Option augments how a Registry is constructed. Options take precedence over
// the environment-derived Config.
type Option func(*Registry)

// WithPoolCapacity bounds the number of cells each per-type slot pool may
// allocate. The default comes from TRACING_POOL_CAPACITY, falling back to
// slotpool.DefaultMaxSlots.
func WithPoolCapacity(n int) Option {
	return func(r *Registry) {
		r.poolCapacity = n
	}
}

// WithLogger sets the logger used for registry lifecycle events. The default
// logger is disabled unless TRACING_LOG_LEVEL selects a level.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithStatsd routes the telemetry counters (insert, remove, replace, pool
// creation) to the given statsd address. The default comes from
// TRACING_STATSD_ADDRESS; when neither is set the counters are no-ops.
func WithStatsd(address string) Option {
	return func(r *Registry) {
		r.statsdAddress = address
	}
}

// Package registry implements a concurrent, type-indexed extension store for
// spans. Arbitrary statically-typed values attach to a span without the span
// needing to know the set of types ahead of time: each attached type gets one
// slot pool shared by every span in the registry, and each span keeps a
// private map from type to its slot key.
//
// Two lock levels keep unrelated work apart. One reader-writer lock guards
// the registry-wide type-to-pool map and is write-locked only the first time
// a brand-new type is attached by anyone. Each span guards its private key
// map with its own reader-writer lock, write-locked on every insert, remove,
// or replace for that span. Reads on different spans, or of different types,
// never contend.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/CAD97/tracing/anymap"
	"github.com/CAD97/tracing/telemetry"
)

// Registry owns the shared per-type slot pools and creates spans bound to
// them. It is explicit state: construct one with New and hand it to whatever
// layer manages span lifecycles. Pools are created on demand and live as long
// as the Registry; they are cleared but never destroyed.
type Registry struct {
	// mu guards pools. Write-locked only to create a brand-new per-type
	// pool; everything else takes the read side.
	mu    sync.RWMutex
	pools *anymap.Map

	poolCapacity  int
	logger        zerolog.Logger
	statsdAddress string

	nextSpanID atomic.Uint64
}

// New constructs a Registry. Defaults come from the environment (see
// GetConfig); Options override them.
func New(opts ...Option) *Registry {
	cfg := GetConfig()
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.Disabled
	}
	r := &Registry{
		pools:         anymap.New(),
		poolCapacity:  cfg.PoolCapacity,
		logger:        log.Logger.Level(level),
		statsdAddress: cfg.StatsdAddress,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.statsdAddress != "" {
		if err := telemetry.Init(r.statsdAddress, nil); err != nil {
			r.logger.Warn().Str("address", r.statsdAddress).Msgf("failed to init statsd: %v", err)
		}
	}
	r.logger.Debug().Int("pool_capacity", r.poolCapacity).Msg("extension registry created")
	return r
}

// NewSpan creates a span with an empty extension key map, bound to this
// Registry's shared pools.
func (r *Registry) NewSpan() *Span {
	return &Span{
		id:       r.nextSpanID.Add(1),
		registry: r,
		keys:     newKeyMap(),
	}
}

// poolCreated records a brand-new per-type pool. Called with r.mu
// write-locked.
func (r *Registry) poolCreated(typeName string) {
	r.logger.Debug().Str("extension_type", typeName).Msg("created extension pool")
	telemetry.EmitPoolCreated(typeName)
}

package registry

import (
	"sort"

	"github.com/CAD97/tracing/codec"
	"github.com/CAD97/tracing/slotpool"
)

// PoolInfo describes one per-type slot pool.
type PoolInfo struct {
	Type     string `json:"type"`
	Len      int    `json:"len"`
	Capacity int    `json:"capacity"`
}

// Info is a diagnostic snapshot of a Registry. It reports counts and type
// names only; attached values are never serialized.
type Info struct {
	SpansCreated   uint64     `json:"spans_created"`
	ExtensionTypes int        `json:"extension_types"`
	Pools          []PoolInfo `json:"pools"`
}

// JSON renders the snapshot for debug surfaces.
func (i Info) JSON() ([]byte, error) {
	return codec.Encode(i)
}

// Info captures a point-in-time snapshot of the registry's pools under the
// read lock. Pool lengths are read per pool, so the snapshot is consistent
// per pool but not across pools.
func (r *Registry) Info() Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := r.pools.Keys()
	info := Info{
		SpansCreated:   r.nextSpanID.Load(),
		ExtensionTypes: r.pools.Len(),
		Pools:          make([]PoolInfo, 0, len(keys)),
	}
	for _, t := range keys {
		v, ok := r.pools.Get(t)
		if !ok {
			continue
		}
		pool := v.(slotpool.Slots)
		info.Pools = append(info.Pools, PoolInfo{
			Type:     t.String(),
			Len:      pool.Len(),
			Capacity: pool.Capacity(),
		})
	}
	sort.Slice(info.Pools, func(i, j int) bool {
		return info.Pools[i].Type < info.Pools[j].Type
	})
	return info
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Slab Pool Metrics
// =============================================================================

var (
	// SlabAllocationsTotal counts allocation attempts by pool and result
	SlabAllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slab_allocations_total",
			Help: "Total number of cell allocation attempts",
		},
		[]string{"pool", "result"}, // result: "ok", "exhausted"
	)

	// SlabReleasesTotal counts cells returned to their chunk
	SlabReleasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slab_releases_total",
			Help: "Total number of cells released back to their chunk",
		},
		[]string{"pool"},
	)

	// SlabStaleHandleTotal counts rejected accesses through released handles
	SlabStaleHandleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slab_stale_handle_total",
			Help: "Total number of operations rejected because the handle was already released",
		},
		[]string{"pool"},
	)

	// SlabCellsInUse tracks occupied cells per pool
	SlabCellsInUse = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slab_cells_in_use",
			Help: "Current number of occupied cells",
		},
		[]string{"pool"},
	)

	// SlabCapacityCells tracks total cells per pool (chunks x word bits)
	SlabCapacityCells = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slab_capacity_cells",
			Help: "Total cell capacity of the pool",
		},
		[]string{"pool"},
	)

	// SlabRegionBytes tracks bytes reserved for placement-initialized pools
	SlabRegionBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slab_region_bytes",
			Help: "Bytes of caller-supplied memory hosting placement-initialized pools",
		},
		[]string{"pool"},
	)
)

// =============================================================================
// Host Allocator Metrics
// =============================================================================

var (
	// CellAllocatorBytesTotal counts bytes served by the cell allocator by path
	CellAllocatorBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slab_cell_allocator_bytes_total",
			Help: "Total bytes served by the cell allocator",
		},
		[]string{"path"}, // path: "cell", "fallback"
	)

	AllocatorBytesAllocatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slab_allocator_bytes_allocated_total",
			Help: "Total bytes allocated by the tracked allocator",
		},
	)

	AllocatorAllocationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slab_allocator_allocations_active",
			Help: "Current number of active tracked allocations",
		},
	)

	AllocatorBytesFreedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slab_allocator_bytes_freed_total",
			Help: "Total bytes freed by the tracked allocator",
		},
	)
)

// PoolCollectors is the set of per-pool metric children, resolved once so the
// allocation path avoids label lookups.
type PoolCollectors struct {
	Allocated prometheus.Counter
	Exhausted prometheus.Counter
	Released  prometheus.Counter
	Stale     prometheus.Counter
	InUse     prometheus.Gauge
	Capacity  prometheus.Gauge
}

// ForPool resolves the collectors labelled with the given pool name.
func ForPool(name string) PoolCollectors {
	return PoolCollectors{
		Allocated: SlabAllocationsTotal.WithLabelValues(name, "ok"),
		Exhausted: SlabAllocationsTotal.WithLabelValues(name, "exhausted"),
		Released:  SlabReleasesTotal.WithLabelValues(name),
		Stale:     SlabStaleHandleTotal.WithLabelValues(name),
		InUse:     SlabCellsInUse.WithLabelValues(name),
		Capacity:  SlabCapacityCells.WithLabelValues(name),
	}
}

// Package output defines the secondary/driven ports of the application.
package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncFetch increments the remote fetch counter.
	IncFetch(protocol string, success bool)

	// ObserveFetchDuration records a remote fetch duration.
	ObserveFetchDuration(protocol string, duration time.Duration)

	// IncCacheHit increments the capabilities cache hit counter.
	IncCacheHit()

	// IncCacheMiss increments the capabilities cache miss counter.
	IncCacheMiss()

	// SetMembersComposed sets the number of composed catalog members.
	SetMembersComposed(count int)

	// IncHarvestPages increments the paginated-discovery page counter.
	IncHarvestPages(endpoint string)

	// IncCompositionErrors increments the per-member composition error
	// counter.
	IncCompositionErrors(memberType string)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncFetch implements MetricsCollector.
func (n *NoOpMetrics) IncFetch(_ string, _ bool) {}

// ObserveFetchDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveFetchDuration(_ string, _ time.Duration) {}

// IncCacheHit implements MetricsCollector.
func (n *NoOpMetrics) IncCacheHit() {}

// IncCacheMiss implements MetricsCollector.
func (n *NoOpMetrics) IncCacheMiss() {}

// SetMembersComposed implements MetricsCollector.
func (n *NoOpMetrics) SetMembersComposed(_ int) {}

// IncHarvestPages implements MetricsCollector.
func (n *NoOpMetrics) IncHarvestPages(_ string) {}

// IncCompositionErrors implements MetricsCollector.
func (n *NoOpMetrics) IncCompositionErrors(_ string) {}

package engine

import "time"

// MetricsObserver defines an interface for collecting operational
// metrics. Implement it to integrate with monitoring systems like
// Prometheus.
type MetricsObserver interface {
	// OnFlush is called after each flush attempt. nodes and edges are
	// the record counts of the new generation; err is nil on success.
	OnFlush(generation uint64, nodes, edges int, duration time.Duration, err error)

	// OnRebuild is called after the derived indexes are rebuilt.
	OnRebuild(generation uint64, duration time.Duration)

	// OnQuery is called after each attribute query. candidates is the
	// size of the narrowed set the remaining filters ran against.
	OnQuery(candidates, results int, duration time.Duration)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnFlush(uint64, int, int, time.Duration, error) {}
func (NoopMetricsObserver) OnRebuild(uint64, time.Duration)                {}
func (NoopMetricsObserver) OnQuery(int, int, time.Duration)                {}

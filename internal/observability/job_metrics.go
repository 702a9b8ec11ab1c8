package observability

import (
	"sync/atomic"
	"time"
)

// JobMetrics is the in-process counterpart of the Prometheus job series,
// served as JSON on the worker's /metrics/jobs endpoint.
type JobMetrics struct {
	claimed   atomic.Uint64
	done      atomic.Uint64
	retried   atomic.Uint64
	exhausted atomic.Uint64
	unknown   atomic.Uint64

	durationCount atomic.Uint64
	durationTotal atomic.Int64 // ns
	durationMax   atomic.Int64 // ns
}

func NewJobMetrics() *JobMetrics {
	return &JobMetrics{}
}

func (m *JobMetrics) IncClaimed()   { m.claimed.Add(1) }
func (m *JobMetrics) IncDone()      { m.done.Add(1) }
func (m *JobMetrics) IncRetried()   { m.retried.Add(1) }
func (m *JobMetrics) IncExhausted() { m.exhausted.Add(1) }

// IncUnknown counts jobs failed straight away because no handler knows
// their type or their payload does not decode.
func (m *JobMetrics) IncUnknown() { m.unknown.Add(1) }

func (m *JobMetrics) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.durationCount.Add(1)
	m.durationTotal.Add(ns)

	for {
		curr := m.durationMax.Load()
		if ns <= curr {
			return
		}
		if m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type JobMetricsSnapshot struct {
	Claimed         uint64        `json:"claimed"`
	Done            uint64        `json:"done"`
	Retried         uint64        `json:"retried"`
	Exhausted       uint64        `json:"exhausted"`
	Unknown         uint64        `json:"unknown"`
	DurationCount   uint64        `json:"durationCount"`
	AverageDuration time.Duration `json:"averageDurationNs"`
	MaxDuration     time.Duration `json:"maxDurationNs"`
}

func (m *JobMetrics) Snapshot() JobMetricsSnapshot {
	count := m.durationCount.Load()
	total := m.durationTotal.Load()

	var avg time.Duration
	if count > 0 {
		avg = time.Duration(total / int64(count))
	}

	return JobMetricsSnapshot{
		Claimed:         m.claimed.Load(),
		Done:            m.done.Load(),
		Retried:         m.retried.Load(),
		Exhausted:       m.exhausted.Load(),
		Unknown:         m.unknown.Load(),
		DurationCount:   count,
		AverageDuration: avg,
		MaxDuration:     time.Duration(m.durationMax.Load()),
	}
}

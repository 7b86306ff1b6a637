package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Registry groups the order engine counters. The zero value is ready to use.
type Registry struct {
	Checkouts       Counter
	CheckoutsFailed Counter
	EmptyCarts      Counter
	StatusChanges   Counter
	Conflicts       Counter
	PublishFailures Counter

	checkoutNanos Counter
}

// ObserveCheckout records one committed checkout and its latency.
func (r *Registry) ObserveCheckout(t *Timer) {
	r.Checkouts.Inc()
	r.checkoutNanos.Add(uint64(t.Duration().Nanoseconds()))
}

type Snapshot struct {
	Checkouts         uint64  `json:"checkouts"`
	CheckoutsFailed   uint64  `json:"checkouts_failed"`
	EmptyCarts        uint64  `json:"empty_carts"`
	StatusChanges     uint64  `json:"status_changes"`
	Conflicts         uint64  `json:"conflicts"`
	PublishFailures   uint64  `json:"publish_failures"`
	CheckoutAvgMillis float64 `json:"checkout_avg_ms"`
}

func (r *Registry) Snapshot() Snapshot {
	s := Snapshot{
		Checkouts:       r.Checkouts.Load(),
		CheckoutsFailed: r.CheckoutsFailed.Load(),
		EmptyCarts:      r.EmptyCarts.Load(),
		StatusChanges:   r.StatusChanges.Load(),
		Conflicts:       r.Conflicts.Load(),
		PublishFailures: r.PublishFailures.Load(),
	}
	if s.Checkouts > 0 {
		avg := time.Duration(r.checkoutNanos.Load() / s.Checkouts)
		s.CheckoutAvgMillis = float64(avg) / float64(time.Millisecond)
	}
	return s
}

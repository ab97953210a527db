package goLedger

import (
	"github.com/finbolt/goLedger/admission"
	"github.com/finbolt/goLedger/clock"
	"github.com/finbolt/goLedger/idempotency"
	"github.com/finbolt/goLedger/ledger"
)

// Engine is the transaction core: it admits requests per caller identity,
// suppresses duplicates, and applies admitted mutations to versioned balance
// rows with optimistic concurrency.
//
// Engine instances are configured through [Builder.Build] and are safe for
// concurrent use afterwards.
type Engine struct {
	config    Config
	admission *admission.Controller
	ledgers   *ledger.Store
	idem      *idempotency.Store
	clk       clock.Clock
	audit     *auditDispatcher
	metrics   *Metrics
}

// Close stops the audit dispatcher and the admission sweeper. Pending audit
// events are drained before Close returns.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.admission != nil {
		e.admission.Close()
	}
}

// AuditDropped reports how many audit events were shed under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine's counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.admission != nil && e.ledgers != nil && e.idem != nil && e.clk != nil
}

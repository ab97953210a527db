package goLedger

// AdmissionSnapshot reports live admission-controller state: how many
// buckets exist right now and cumulative creation/eviction counts.
func (e *Engine) AdmissionSnapshot() AdmissionStats {
	if e == nil || e.admission == nil {
		return AdmissionStats{}
	}
	stats := e.admission.Stats()
	return AdmissionStats{
		Buckets: stats.Buckets,
		Created: stats.Created,
		Evicted: stats.Evicted,
	}
}

// SweepAdmission evicts buckets idle for at least the configured window and
// returns how many were removed. The background sweeper does this on its
// own; exposing it lets operators force a sweep.
func (e *Engine) SweepAdmission() int {
	if e == nil || e.admission == nil {
		return 0
	}
	return e.admission.Sweep(e.config.Admission.IdleEviction)
}

package internaldefs

import (
	goLedger "github.com/finbolt/goLedger"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goLedger.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goLedger.MetricID
	Name string
	Help string
}

// CounterDefs is the shared counter catalog rendered by every exporter.
var CounterDefs = []CounterDef{
	{ID: goLedger.MetricSubmitSuccess, Name: "goledger_submit_success_total", Help: "Committed ledger mutations."},
	{ID: goLedger.MetricSubmitThrottled, Name: "goledger_submit_throttled_total", Help: "Submissions rejected by admission control."},
	{ID: goLedger.MetricVersionConflict, Name: "goledger_version_conflict_total", Help: "Submissions aborted on version mismatch."},
	{ID: goLedger.MetricInsufficientFunds, Name: "goledger_insufficient_funds_total", Help: "Debits rejected for insufficient balance."},
	{ID: goLedger.MetricDuplicateReplay, Name: "goledger_duplicate_replay_total", Help: "Results served from the idempotency store."},
	{ID: goLedger.MetricRequestInFlight, Name: "goledger_request_in_flight_total", Help: "Same-key submissions rejected while the first was still running."},
	{ID: goLedger.MetricStorageUnavailable, Name: "goledger_storage_unavailable_total", Help: "Transient storage failures."},
	{ID: goLedger.MetricLedgerCorrupt, Name: "goledger_ledger_corrupt_total", Help: "Detected ledger invariant violations."},
	{ID: goLedger.MetricReservationReleased, Name: "goledger_reservation_released_total", Help: "Idempotency reservations released after failures."},
	{ID: goLedger.MetricAccountOpened, Name: "goledger_account_opened_total", Help: "Created ledger accounts."},
}

// HistogramDefs is the shared histogram catalog rendered by every exporter.
var HistogramDefs = []HistogramDef{
	{ID: goLedger.MetricSubmitLatency, Name: "goledger_submit_latency_seconds", Help: "Submit latency histogram."},
}

// HistogramBounds are the upper bounds of the engine's fixed buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are the bounds in instrument-name-safe form.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed size.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

package goLedger

import (
	"time"

	"github.com/shopspring/decimal"
)

// OperationType selects the direction of a balance mutation.
type OperationType uint8

const (
	// OperationDebit subtracts the amount; requires sufficient balance.
	OperationDebit OperationType = iota + 1
	// OperationCredit adds the amount.
	OperationCredit
)

// String returns the wire name of the operation type.
func (op OperationType) String() string {
	switch op {
	case OperationDebit:
		return "debit"
	case OperationCredit:
		return "credit"
	default:
		return "unknown"
	}
}

// SubmitRequest is one inbound mutation request as handed over by the
// request-handling layer.
type SubmitRequest struct {
	// AccountID selects the ledger row to mutate.
	AccountID string
	// Identity is the calling identity charged by admission control. It
	// may differ from AccountID (service account vs. end user).
	Identity string
	// IdempotencyKey is the caller-supplied replay token, unique per
	// logical request within one account.
	IdempotencyKey string
	// Operation is debit or credit.
	Operation OperationType
	// Amount must be strictly positive.
	Amount decimal.Decimal
	// ExpectedVersion is the row version the caller read before computing
	// this mutation. A mismatch aborts with a version conflict.
	ExpectedVersion uint64
}

// Result is the outcome of an applied (or replayed) mutation.
type Result struct {
	NewBalance decimal.Decimal
	NewVersion uint64
	Timestamp  time.Time
	// Replayed is true when the result was served from the idempotency
	// store instead of a fresh mutation.
	Replayed bool
}

// AccountView is a read-only snapshot of one ledger row.
type AccountView struct {
	AccountID string
	Balance   decimal.Decimal
	Version   uint64
	UpdatedAt time.Time
}

// AdmissionStats mirrors the live state of the admission controller.
type AdmissionStats struct {
	Buckets uint64
	Created uint64
	Evicted uint64
}

package goLedger

import (
	"errors"
	"strconv"
)

var (
	// ErrThrottled is returned when the caller's identity is out of admission tokens.
	ErrThrottled = errors.New("request throttled")
	// ErrVersionConflict is the sentinel matched by errors.Is for version conflicts.
	ErrVersionConflict = errors.New("version conflict")
	// ErrInsufficientFunds is returned when a debit would drive the balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrRequestInFlight is returned when a concurrent request holds the same idempotency key.
	ErrRequestInFlight = errors.New("idempotency key in flight")
	// ErrStorageUnavailable is returned for transient storage failures; the caller may retry unchanged.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrLedgerCorrupt is returned when a stored ledger row violates its invariants.
	ErrLedgerCorrupt = errors.New("ledger corrupt")
	// ErrAccountNotFound is returned when no ledger row exists for the account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned when opening an account that already has a ledger row.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidAmount is returned when the submitted amount is not strictly positive.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidRequest is returned when a required request field is empty.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidOperation is returned for an operation type outside debit/credit.
	ErrInvalidOperation = errors.New("invalid operation type")
	// ErrEngineNotReady is returned when the engine is used before Build wired its dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// VersionConflictError reports that the submitted expectedVersion no longer
// matches the stored row. CurrentVersion is the version the caller should
// re-read and retry with.
type VersionConflictError struct {
	CurrentVersion uint64
}

func (e *VersionConflictError) Error() string {
	return "version conflict: current version is " + strconv.FormatUint(e.CurrentVersion, 10)
}

// Unwrap makes errors.Is(err, ErrVersionConflict) hold.
func (e *VersionConflictError) Unwrap() error {
	return ErrVersionConflict
}

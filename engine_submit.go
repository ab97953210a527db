package goLedger

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finbolt/goLedger/idempotency"
	"github.com/finbolt/goLedger/ledger"
)

// Submit runs one mutation through the full pipeline: admission check,
// idempotency check/reservation, optimistic read, version and balance
// validation, then an atomic commit that lands the new balance row and the
// idempotency snapshot together.
//
// Every non-success outcome is a typed error: [ErrThrottled],
// [*VersionConflictError], [ErrInsufficientFunds], [ErrRequestInFlight],
// [ErrStorageUnavailable], [ErrLedgerCorrupt], [ErrAccountNotFound], or an
// input-validation error. A replayed duplicate returns the prior outcome
// with Result.Replayed set (or the prior deterministic error), never a new
// mutation.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*Result, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricSubmitLatency, time.Since(start))
		}()
	}

	if err := validateSubmitRequest(&req); err != nil {
		return nil, err
	}

	// Step 1: admission. Rejection is a terminal outcome, not an error
	// condition; it must not touch ledger or idempotency state.
	if !e.admission.Allow(req.Identity) {
		e.metricInc(MetricSubmitThrottled)
		e.emitAudit(ctx, auditEventSubmitThrottled, false, &req, ErrThrottled, nil)
		return nil, ErrThrottled
	}

	// Step 2: idempotency. Either we hold a fresh reservation after this,
	// or we replay the stored outcome verbatim.
	token := uuid.NewString()
	prior, err := e.idem.Reserve(ctx, req.AccountID, req.IdempotencyKey, token, e.config.Idempotency.PendingTTL)
	if err != nil {
		if errors.Is(err, idempotency.ErrInFlight) {
			e.metricInc(MetricRequestInFlight)
			e.emitAudit(ctx, auditEventSubmitInFlight, false, &req, ErrRequestInFlight, nil)
			return nil, ErrRequestInFlight
		}
		e.metricInc(MetricStorageUnavailable)
		e.emitAudit(ctx, auditEventSubmitFailure, false, &req, ErrStorageUnavailable, nil)
		return nil, errors.Join(ErrStorageUnavailable, err)
	}
	if prior != nil {
		return e.replay(ctx, &req, prior)
	}

	return e.execute(ctx, &req, token)
}

// execute owns the reservation acquired in Submit: every exit path either
// finalizes it (commit, deterministic failure) or releases it (everything
// else) so retries are never blocked for the full pending TTL.
func (e *Engine) execute(ctx context.Context, req *SubmitRequest, token string) (*Result, error) {
	// Step 3: optimistic read.
	entry, err := e.readEntry(ctx, req.AccountID)
	if err != nil {
		e.settleFailure(ctx, req, token, err)
		return nil, err
	}

	// Step 4: version check. Conflicts always surface to the caller, who
	// re-reads and retries with the current version.
	if req.ExpectedVersion != entry.Version {
		e.release(ctx, req, token)
		e.metricInc(MetricVersionConflict)
		conflictErr := &VersionConflictError{CurrentVersion: entry.Version}
		e.emitAudit(ctx, auditEventSubmitConflict, false, req, conflictErr, func() map[string]string {
			return map[string]string{
				"operation": req.Operation.String(),
			}
		})
		return nil, conflictErr
	}

	now := e.clk.Now()

	// Step 5: balance rule. A rejected debit is deterministic: finalize
	// the snapshot so a same-key retry replays the rejection.
	var newBalance decimal.Decimal
	switch req.Operation {
	case OperationDebit:
		if entry.Balance.LessThan(req.Amount) {
			outcome := &idempotency.Outcome{
				Status:     idempotency.OutcomeInsufficientFunds,
				NewBalance: entry.Balance,
				NewVersion: entry.Version,
				Timestamp:  now.Unix(),
			}
			if _, err := e.idem.Finalize(ctx, req.AccountID, req.IdempotencyKey, token, outcome, e.config.Idempotency.RetentionWindow); err != nil {
				log.Print("goLedger: insufficient-funds finalization failed")
			}
			e.metricInc(MetricInsufficientFunds)
			e.emitAudit(ctx, auditEventSubmitInsufficient, false, req, ErrInsufficientFunds, func() map[string]string {
				return map[string]string{
					"operation": req.Operation.String(),
				}
			})
			return nil, ErrInsufficientFunds
		}
		newBalance = entry.Balance.Sub(req.Amount)
	case OperationCredit:
		newBalance = entry.Balance.Add(req.Amount)
	}

	// Steps 6-7: single atomic conditional write. The commit script swaps
	// (balance, version) only if the version is unchanged and finalizes
	// the idempotency row in the same step, so a crash or cancellation
	// can never leave one without the other.
	next := &ledger.Record{
		AccountID: req.AccountID,
		Balance:   newBalance,
		Version:   entry.Version + 1,
		UpdatedAt: now.Unix(),
	}
	outcome := &idempotency.Outcome{
		Status:     idempotency.OutcomeApplied,
		NewBalance: newBalance,
		NewVersion: entry.Version + 1,
		Timestamp:  now.Unix(),
	}
	snapshot, err := idempotency.FinalValue(outcome)
	if err != nil {
		e.release(ctx, req, token)
		return nil, err
	}
	receipt := ledger.Receipt{
		Key:         e.idem.Key(req.AccountID, req.IdempotencyKey),
		Reservation: idempotency.PendingValue(token),
		Snapshot:    snapshot,
		Retention:   e.config.Idempotency.RetentionWindow,
	}

	commitCtx, cancel := context.WithTimeout(ctx, e.config.Ledger.ConditionalWriteTimeout)
	defer cancel()

	newVersion, err := e.ledgers.Commit(commitCtx, req.AccountID, req.ExpectedVersion, next, receipt)
	if err != nil {
		mapped := e.mapCommitError(err, newVersion)
		e.settleFailure(ctx, req, token, mapped)
		return nil, mapped
	}

	// Step 8.
	e.metricInc(MetricSubmitSuccess)
	e.emitAudit(ctx, auditEventSubmitCommitted, true, req, nil, func() map[string]string {
		return map[string]string{
			"operation":   req.Operation.String(),
			"new_version": strconv.FormatUint(newVersion, 10),
		}
	})

	return &Result{
		NewBalance: newBalance,
		NewVersion: newVersion,
		Timestamp:  now.UTC(),
	}, nil
}

func (e *Engine) readEntry(ctx context.Context, accountID string) (*ledger.Record, error) {
	readCtx, cancel := context.WithTimeout(ctx, e.config.Ledger.ConditionalWriteTimeout)
	defer cancel()

	entry, err := e.ledgers.Get(readCtx, accountID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrEntryNotFound):
			return nil, ErrAccountNotFound
		case errors.Is(err, ledger.ErrEntryCorrupt):
			return nil, errors.Join(ErrLedgerCorrupt, err)
		default:
			return nil, errors.Join(ErrStorageUnavailable, err)
		}
	}
	return entry, nil
}

func (e *Engine) mapCommitError(err error, currentVersion uint64) error {
	switch {
	case errors.Is(err, ledger.ErrVersionMismatch):
		return &VersionConflictError{CurrentVersion: currentVersion}
	case errors.Is(err, ledger.ErrEntryNotFound):
		return ErrAccountNotFound
	case errors.Is(err, ledger.ErrEntryCorrupt):
		return errors.Join(ErrLedgerCorrupt, err)
	case errors.Is(err, ledger.ErrReservationLost):
		// The pending TTL expired mid-request; nothing was written.
		return errors.Join(ErrStorageUnavailable, err)
	default:
		return errors.Join(ErrStorageUnavailable, err)
	}
}

// settleFailure releases the reservation and records the failure. Every
// failure reaching here is replay-safe: either deterministic and retried
// with fresh inputs (conflict, missing account) or transient.
func (e *Engine) settleFailure(ctx context.Context, req *SubmitRequest, token string, err error) {
	e.release(ctx, req, token)

	switch {
	case errors.Is(err, ErrVersionConflict):
		e.metricInc(MetricVersionConflict)
		e.emitAudit(ctx, auditEventSubmitConflict, false, req, err, nil)
	case errors.Is(err, ErrLedgerCorrupt):
		e.metricInc(MetricLedgerCorrupt)
		e.emitAudit(ctx, auditEventLedgerCorrupt, false, req, err, nil)
	case errors.Is(err, ErrAccountNotFound):
		e.emitAudit(ctx, auditEventSubmitFailure, false, req, err, nil)
	default:
		e.metricInc(MetricStorageUnavailable)
		e.emitAudit(ctx, auditEventSubmitFailure, false, req, err, nil)
	}
}

// release drops the idempotency reservation on a detached context so caller
// cancellation cannot strand the key until the pending TTL expires.
func (e *Engine) release(ctx context.Context, req *SubmitRequest, token string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.Ledger.ConditionalWriteTimeout)
	defer cancel()

	if err := e.idem.Release(releaseCtx, req.AccountID, req.IdempotencyKey, token); err != nil {
		// The pending TTL is the backstop when release itself fails.
		log.Print("goLedger: idempotency reservation release failed")
		return
	}
	e.metricInc(MetricReservationReleased)
}

func (e *Engine) replay(ctx context.Context, req *SubmitRequest, prior *idempotency.Outcome) (*Result, error) {
	e.metricInc(MetricDuplicateReplay)

	switch prior.Status {
	case idempotency.OutcomeApplied:
		e.emitAudit(ctx, auditEventSubmitReplayed, true, req, nil, nil)
		return &Result{
			NewBalance: prior.NewBalance,
			NewVersion: prior.NewVersion,
			Timestamp:  time.Unix(prior.Timestamp, 0).UTC(),
			Replayed:   true,
		}, nil
	case idempotency.OutcomeInsufficientFunds:
		e.emitAudit(ctx, auditEventSubmitReplayed, false, req, ErrInsufficientFunds, nil)
		return nil, ErrInsufficientFunds
	default:
		e.emitAudit(ctx, auditEventSubmitFailure, false, req, ErrStorageUnavailable, nil)
		return nil, ErrStorageUnavailable
	}
}

func validateSubmitRequest(req *SubmitRequest) error {
	if req.AccountID == "" || req.Identity == "" || req.IdempotencyKey == "" {
		return ErrInvalidRequest
	}
	if req.Operation != OperationDebit && req.Operation != OperationCredit {
		return ErrInvalidOperation
	}
	if !req.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if req.ExpectedVersion == 0 {
		return ErrInvalidRequest
	}
	return nil
}

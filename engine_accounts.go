package goLedger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbolt/goLedger/ledger"
)

// OpenAccount creates the ledger row for accountID at version 1 with the
// given opening balance. Opening an existing account fails with
// [ErrAccountExists] and leaves the stored row untouched.
func (e *Engine) OpenAccount(ctx context.Context, accountID string, opening decimal.Decimal) (*AccountView, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if accountID == "" {
		return nil, ErrInvalidRequest
	}
	if opening.IsNegative() {
		return nil, ErrInvalidAmount
	}

	opCtx, cancel := context.WithTimeout(ctx, e.config.Ledger.ConditionalWriteTimeout)
	defer cancel()

	record, err := e.ledgers.Create(opCtx, accountID, opening, e.clk.Now())
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrEntryExists):
			e.emitAudit(ctx, auditEventAccountOpenFailed, false, &SubmitRequest{AccountID: accountID}, ErrAccountExists, nil)
			return nil, ErrAccountExists
		case errors.Is(err, ledger.ErrEntryCorrupt):
			return nil, errors.Join(ErrLedgerCorrupt, err)
		default:
			e.emitAudit(ctx, auditEventAccountOpenFailed, false, &SubmitRequest{AccountID: accountID}, ErrStorageUnavailable, nil)
			return nil, errors.Join(ErrStorageUnavailable, err)
		}
	}

	e.metricInc(MetricAccountOpened)
	e.emitAudit(ctx, auditEventAccountOpened, true, &SubmitRequest{AccountID: accountID}, nil, nil)

	return viewFromRecord(record), nil
}

// GetAccount reads a point-in-time snapshot of the account's balance row.
// This is the read callers use to learn the current version before a
// Submit, and to refresh it after a version conflict.
func (e *Engine) GetAccount(ctx context.Context, accountID string) (*AccountView, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if accountID == "" {
		return nil, ErrInvalidRequest
	}

	record, err := e.readEntry(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return viewFromRecord(record), nil
}

func viewFromRecord(r *ledger.Record) *AccountView {
	return &AccountView{
		AccountID: r.AccountID,
		Balance:   r.Balance,
		Version:   r.Version,
		UpdatedAt: time.Unix(r.UpdatedAt, 0).UTC(),
	}
}

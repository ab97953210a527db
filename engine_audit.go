package goLedger

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

const (
	auditEventSubmitCommitted    = "submit_committed"
	auditEventSubmitThrottled    = "submit_throttled"
	auditEventSubmitConflict     = "submit_version_conflict"
	auditEventSubmitInsufficient = "submit_insufficient_funds"
	auditEventSubmitReplayed     = "submit_replayed"
	auditEventSubmitInFlight     = "submit_in_flight"
	auditEventSubmitFailure      = "submit_failure"
	auditEventLedgerCorrupt      = "ledger_corrupt"
	auditEventAccountOpened      = "account_opened"
	auditEventAccountOpenFailed  = "account_open_failed"
)

// AuditErrorCode is the normalized error vocabulary carried on audit events.
type AuditErrorCode string

const (
	auditErrThrottled         AuditErrorCode = "throttled"
	auditErrVersionConflict   AuditErrorCode = "version_conflict"
	auditErrInsufficientFunds AuditErrorCode = "insufficient_funds"
	auditErrInFlight          AuditErrorCode = "in_flight"
	auditErrAccountNotFound   AuditErrorCode = "account_not_found"
	auditErrAccountExists     AuditErrorCode = "account_exists"
	auditErrInvalidRequest    AuditErrorCode = "invalid_request"
	auditErrLedgerCorrupt     AuditErrorCode = "ledger_corrupt"
	auditErrUnavailable       AuditErrorCode = "storage_unavailable"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	req *SubmitRequest,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.clk.Now().UTC(),
		EventID:   uuid.NewString(),
		EventType: eventType,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if req != nil {
		event.AccountID = req.AccountID
		event.Identity = req.Identity
		event.IdempotencyKey = req.IdempotencyKey
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrThrottled):
		return auditErrThrottled
	case errors.Is(err, ErrVersionConflict):
		return auditErrVersionConflict
	case errors.Is(err, ErrInsufficientFunds):
		return auditErrInsufficientFunds
	case errors.Is(err, ErrRequestInFlight):
		return auditErrInFlight
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrAccountExists):
		return auditErrAccountExists
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidOperation):
		return auditErrInvalidRequest
	case errors.Is(err, ErrLedgerCorrupt):
		return auditErrLedgerCorrupt
	case errors.Is(err, ErrStorageUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

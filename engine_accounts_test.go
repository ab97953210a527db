package goLedger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestOpenAccount(t *testing.T) {
	engine, _, done := newSubmitEngine(t, submitTestConfig())
	defer done()

	view, err := engine.OpenAccount(context.Background(), "acct-1", decimal.RequireFromString("250.75"))
	if err != nil {
		t.Fatalf("OpenAccount failed: %v", err)
	}
	if view.AccountID != "acct-1" || view.Version != 1 {
		t.Fatalf("unexpected view: %+v", view)
	}
	if !view.Balance.Equal(decimal.RequireFromString("250.75")) {
		t.Fatalf("balance mismatch: %s", view.Balance)
	}
	if view.UpdatedAt != time.Unix(1700000000, 0).UTC() {
		t.Fatalf("UpdatedAt not taken from the engine clock: %s", view.UpdatedAt)
	}
}

func TestOpenAccountZeroBalance(t *testing.T) {
	engine, _, done := newSubmitEngine(t, submitTestConfig())
	defer done()

	view, err := engine.OpenAccount(context.Background(), "acct-1", decimal.Zero)
	if err != nil {
		t.Fatalf("OpenAccount failed: %v", err)
	}
	if !view.Balance.IsZero() {
		t.Fatalf("expected zero balance, got %s", view.Balance)
	}
}

func TestOpenAccountDuplicate(t *testing.T) {
	engine, _, done := newSubmitEngine(t, submitTestConfig())
	defer done()

	openTestAccount(t, engine, "acct-1", "100")

	_, err := engine.OpenAccount(context.Background(), "acct-1", decimal.NewFromInt(999))
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}

	view, err := engine.GetAccount(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if !view.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("duplicate open mutated the row: %s", view.Balance)
	}
}

func TestOpenAccountValidation(t *testing.T) {
	engine, _, done := newSubmitEngine(t, submitTestConfig())
	defer done()

	if _, err := engine.OpenAccount(context.Background(), "", decimal.NewFromInt(1)); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for empty id, got %v", err)
	}
	if _, err := engine.OpenAccount(context.Background(), "acct-1", decimal.NewFromInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative opening, got %v", err)
	}
}

func TestGetAccountMissing(t *testing.T) {
	engine, _, done := newSubmitEngine(t, submitTestConfig())
	defer done()

	_, err := engine.GetAccount(context.Background(), "ghost")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

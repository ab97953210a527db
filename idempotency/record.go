package idempotency

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/shopspring/decimal"
)

// Row states. The first byte of every stored value says whether the key is a
// live reservation or a finalized outcome.
const (
	statePending byte = 0
	stateFinal   byte = 1
)

const snapshotSchemaV1 = 1

// OutcomeStatus says how the reserved request terminated.
type OutcomeStatus byte

const (
	// OutcomeApplied records a committed mutation.
	OutcomeApplied OutcomeStatus = 1
	// OutcomeInsufficientFunds records a deterministic business-rule
	// rejection. Replays must observe the same rejection, not re-attempt.
	OutcomeInsufficientFunds OutcomeStatus = 2
)

var errSnapshotCorrupt = errors.New("idempotency snapshot corrupt")

// Outcome is the replayable result snapshot of one completed request.
type Outcome struct {
	Status     OutcomeStatus
	NewBalance decimal.Decimal
	NewVersion uint64
	Timestamp  int64 // unix seconds
}

// PendingValue builds the reservation blob for a request token. The ledger
// commit script compares against this exact value before finalizing.
func PendingValue(token string) []byte {
	value := make([]byte, 0, 1+len(token))
	value = append(value, statePending)
	value = append(value, token...)
	return value
}

// FinalValue encodes a completed outcome into its stored form.
func FinalValue(o *Outcome) ([]byte, error) {
	balance := o.NewBalance.String()
	if len(balance) > 65535 {
		return nil, errSnapshotCorrupt
	}

	var buf bytes.Buffer
	buf.WriteByte(stateFinal)
	buf.WriteByte(snapshotSchemaV1)
	buf.WriteByte(byte(o.Status))
	if err := binary.Write(&buf, binary.BigEndian, o.NewVersion); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, o.Timestamp); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(balance))); err != nil {
		return nil, err
	}
	buf.WriteString(balance)

	return buf.Bytes(), nil
}

func decodeFinalValue(data []byte) (*Outcome, error) {
	reader := bytes.NewReader(data)

	state, err := reader.ReadByte()
	if err != nil || state != stateFinal {
		return nil, errSnapshotCorrupt
	}
	schema, err := reader.ReadByte()
	if err != nil || schema != snapshotSchemaV1 {
		return nil, errSnapshotCorrupt
	}
	status, err := reader.ReadByte()
	if err != nil {
		return nil, errSnapshotCorrupt
	}

	outcome := &Outcome{Status: OutcomeStatus(status)}
	if outcome.Status != OutcomeApplied && outcome.Status != OutcomeInsufficientFunds {
		return nil, errSnapshotCorrupt
	}

	if err := binary.Read(reader, binary.BigEndian, &outcome.NewVersion); err != nil {
		return nil, errSnapshotCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &outcome.Timestamp); err != nil {
		return nil, errSnapshotCorrupt
	}

	var balanceLen uint16
	if err := binary.Read(reader, binary.BigEndian, &balanceLen); err != nil {
		return nil, errSnapshotCorrupt
	}
	balance := make([]byte, balanceLen)
	if _, err := io.ReadFull(reader, balance); err != nil {
		return nil, errSnapshotCorrupt
	}
	outcome.NewBalance, err = decimal.NewFromString(string(balance))
	if err != nil {
		return nil, errSnapshotCorrupt
	}

	return outcome, nil
}

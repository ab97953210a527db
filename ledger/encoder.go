package ledger

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/shopspring/decimal"
)

// Blob layout, schema v1. The version counter sits at a fixed offset
// (bytes 2..9, 1-indexed) so the commit script can read it without decoding
// the whole record.
//
//	[1]      schema version
//	[2..9]   record version, uint64 BE
//	[10..17] updated-at unix seconds, int64 BE
//	[18..19] balance string length, uint16 BE
//	[20..]   balance, decimal text
const recordSchemaV1 = 1

var errRecordCorrupt = errors.New("ledger record corrupt")

func encodeRecord(r *Record) ([]byte, error) {
	balance := r.Balance.String()
	if len(balance) > 65535 {
		return nil, errRecordCorrupt
	}

	var buf bytes.Buffer
	buf.WriteByte(recordSchemaV1)
	if err := binary.Write(&buf, binary.BigEndian, r.Version); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(balance))); err != nil {
		return nil, err
	}
	buf.WriteString(balance)

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	schema, err := reader.ReadByte()
	if err != nil {
		return nil, errRecordCorrupt
	}
	if schema != recordSchemaV1 {
		return nil, errRecordCorrupt
	}

	record := &Record{}
	if err := binary.Read(reader, binary.BigEndian, &record.Version); err != nil {
		return nil, errRecordCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &record.UpdatedAt); err != nil {
		return nil, errRecordCorrupt
	}

	var balanceLen uint16
	if err := binary.Read(reader, binary.BigEndian, &balanceLen); err != nil {
		return nil, errRecordCorrupt
	}
	balance := make([]byte, balanceLen)
	if _, err := io.ReadFull(reader, balance); err != nil {
		return nil, errRecordCorrupt
	}

	record.Balance, err = decimal.NewFromString(string(balance))
	if err != nil {
		return nil, errRecordCorrupt
	}
	if record.Version == 0 {
		return nil, errRecordCorrupt
	}

	return record, nil
}

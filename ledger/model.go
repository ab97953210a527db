package ledger

import (
	"github.com/shopspring/decimal"
)

// Record is one versioned account balance row. Version starts at 1 when the
// account is opened and increases by exactly 1 on every committed mutation.
type Record struct {
	AccountID string
	Balance   decimal.Decimal
	Version   uint64
	UpdatedAt int64 // unix seconds
}

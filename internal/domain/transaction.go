package domain

import "time"

type TransactionType string

const (
	TransactionDeposit  TransactionType = "Deposit"
	TransactionWithdraw TransactionType = "Withdraw"
)

// TimeLayout is the second-precision layout used to persist and export transaction times.
const TimeLayout = "2006-01-02 15:04:05"

// Transaction is a single append-only ledger entry.
type Transaction struct {
	Username string
	Type     TransactionType
	Amount   int64
	Time     time.Time
}

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TransactionDeposit || t == TransactionWithdraw
}

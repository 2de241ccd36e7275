package repository

import (
	"context"

	"bank-ledger/internal/domain"
)

// TransactionRepository owns the ledger table and the balance changes bound to it.
type TransactionRepository interface {
	Init(ctx context.Context) error
	// Apply adjusts the user's balance and appends tx in a single database transaction.
	// It returns the balance after the change.
	Apply(ctx context.Context, tx *domain.Transaction) (int64, error)
	ListByUsername(ctx context.Context, username string) ([]domain.Transaction, error)
}

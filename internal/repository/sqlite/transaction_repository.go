package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bank-ledger/internal/domain"
	"bank-ledger/internal/repository"
)

const createTransactionsTable = `
CREATE TABLE IF NOT EXISTS transactions (
	username TEXT NOT NULL,
	type TEXT NOT NULL,
	amount INTEGER NOT NULL,
	time TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_username ON transactions(username);
`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTransactionsTable); err != nil {
		return fmt.Errorf("create transactions table: %w", err)
	}
	return nil
}

func (r *TransactionRepository) Apply(ctx context.Context, entry *domain.Transaction) (int64, error) {
	if !entry.Type.Valid() {
		return 0, fmt.Errorf("unknown transaction type %q", entry.Type)
	}
	delta := entry.Amount
	if entry.Type == domain.TransactionWithdraw {
		delta = -entry.Amount
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	entry.Time = entry.Time.Truncate(time.Second)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
UPDATE users
SET balance = balance + ?
WHERE username = ? AND balance + ? >= 0`,
		delta,
		entry.Username,
		delta,
	)
	if err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("balance update rows affected: %w", err)
	}
	if aff == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username=?`, entry.Username).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("user %q: %w", entry.Username, repository.ErrNotFound)
		}
		if err != nil {
			return 0, fmt.Errorf("lookup user: %w", err)
		}
		return 0, repository.ErrInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO transactions (username, type, amount, time)
VALUES (?, ?, ?, ?)`,
		entry.Username,
		string(entry.Type),
		entry.Amount,
		entry.Time.Format(domain.TimeLayout),
	); err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	var balance int64
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE username=?`, entry.Username).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return balance, nil
}

func (r *TransactionRepository) ListByUsername(ctx context.Context, username string) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT username, type, amount, time
FROM transactions
WHERE username=?
ORDER BY rowid ASC`, username)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	transactions := []domain.Transaction{}
	for rows.Next() {
		var (
			entry domain.Transaction
			kind  string
			stamp string
		)
		if err := rows.Scan(&entry.Username, &kind, &entry.Amount, &stamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		entry.Type = domain.TransactionType(kind)
		entry.Time, err = time.ParseInLocation(domain.TimeLayout, stamp, time.Local)
		if err != nil {
			return nil, fmt.Errorf("parse transaction time %q: %w", stamp, err)
		}
		transactions = append(transactions, entry)
	}

	return transactions, rows.Err()
}

var _ repository.TransactionRepository = (*TransactionRepository)(nil)

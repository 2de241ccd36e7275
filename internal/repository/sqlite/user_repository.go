package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bank-ledger/internal/domain"
	"bank-ledger/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	username TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	age INTEGER NOT NULL,
	balance INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	user.CreatedAt = time.Now().UTC()
	user.Balance = 0

	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, password_hash, age, created_at)
VALUES (?, ?, ?, ?)`,
		user.Username,
		user.PasswordHash,
		user.Age,
		user.CreatedAt,
	)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "unique") || strings.Contains(msg, "primary key") {
			return fmt.Errorf("user %q: %w", user.Username, repository.ErrAlreadyExists)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT username, password_hash, age, balance, created_at
FROM users
WHERE username = ?`,
		username,
	)

	var user domain.User
	if err := row.Scan(
		&user.Username,
		&user.PasswordHash,
		&user.Age,
		&user.Balance,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.Local()
	return &user, nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash=? WHERE username=?`, passwordHash, username)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("password update rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("user %q: %w", username, repository.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) Balance(ctx context.Context, username string) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx, `SELECT balance FROM users WHERE username=?`, username).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("user %q: %w", username, repository.ErrNotFound)
		}
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return balance, nil
}

var _ repository.UserRepository = (*UserRepository)(nil)

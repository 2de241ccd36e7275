package repository

import (
	"context"
	"errors"

	"bank-ledger/internal/domain"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a unique key is already taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInsufficientBalance is returned when a withdrawal would make a balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, username, passwordHash string) error
	Balance(ctx context.Context, username string) (int64, error)
}

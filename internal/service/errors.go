package service

import "errors"

var (
	// ErrInvalidInput indicates a missing or malformed registration or reset field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateUser is returned when registering a username that already exists.
	ErrDuplicateUser = errors.New("user already exists")
	// ErrUserNotFound is returned when resetting the password of an unknown user.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidAmount indicates a non-positive deposit or withdrawal amount.
	ErrInvalidAmount = errors.New("amount must be a positive integer")
	// ErrInsufficientFunds is returned when a withdrawal exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNoData is returned when exporting an empty history.
	ErrNoData = errors.New("no transactions to export")
	// ErrWriteError wraps failures writing an export destination.
	ErrWriteError = errors.New("export write failed")
	// ErrUnauthenticated is returned for account operations without a live session.
	ErrUnauthenticated = errors.New("unauthenticated")
)

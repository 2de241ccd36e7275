package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bank-ledger/internal/domain"
	"bank-ledger/internal/export"
	"bank-ledger/internal/repository"
)

// PasswordHasher derives and checks one-way password digests.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) (bool, error)
}

// HistoryExporter writes a serialised history to a caller-chosen destination.
type HistoryExporter interface {
	Export(ctx context.Context, username, destination string, transactions []domain.Transaction) (string, error)
}

// LedgerService covers identity management and balance operations for account holders.
type LedgerService interface {
	Register(ctx context.Context, username, password string, age int) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*Session, error)
	ResetPassword(ctx context.Context, username, newPassword string) error
	ChangePassword(ctx context.Context, session *Session, oldPassword, newPassword string) error
	Session(ctx context.Context, sessionID string) (*Session, error)
	Logout(ctx context.Context, session *Session)

	CheckBalance(ctx context.Context, session *Session) (int64, error)
	Deposit(ctx context.Context, session *Session, amount int64) (*domain.Transaction, error)
	Withdraw(ctx context.Context, session *Session, amount int64) (*domain.Transaction, error)
	ListHistory(ctx context.Context, session *Session) ([]domain.Transaction, error)
	ExportHistory(ctx context.Context, session *Session, destination string) (string, error)
	WriteHistoryCSV(ctx context.Context, session *Session, w io.Writer) (int, error)
}

type ledgerService struct {
	users        repository.UserRepository
	transactions repository.TransactionRepository
	hasher       PasswordHasher
	exporter     HistoryExporter
	sessions     *sessionRegistry
	logger       *logrus.Logger
	now          func() time.Time
}

func NewLedgerService(
	users repository.UserRepository,
	transactions repository.TransactionRepository,
	hasher PasswordHasher,
	exporter HistoryExporter,
	sessionTTL time.Duration,
	logger *logrus.Logger,
) LedgerService {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &ledgerService{
		users:        users,
		transactions: transactions,
		hasher:       hasher,
		exporter:     exporter,
		sessions:     newSessionRegistry(sessionTTL),
		logger:       logger,
		now:          time.Now,
	}
}

func (s *ledgerService) Register(ctx context.Context, username, password string, age int) (*domain.User, error) {
	username = strings.TrimSpace(username)

	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if age <= 0 {
		return nil, fmt.Errorf("%w: age must be a positive integer", ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
		Age:          age,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"username": username}).Info("user registered")
	return sanitizeUser(user), nil
}

func (s *ledgerService) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.WithFields(logrus.Fields{"username": username}).Warn("login rejected")
		return nil, ErrInvalidCredentials
	}

	session := s.sessions.open(user.Username, s.now())
	s.logger.WithFields(logrus.Fields{"username": username, "session": session.ID}).Info("session opened")
	return session, nil
}

// ResetPassword replaces the stored hash without the old password and revokes the user's live sessions.
func (s *ledgerService) ResetPassword(ctx context.Context, username, newPassword string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrUserNotFound
	}
	if _, err := s.users.GetByUsername(ctx, username); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	if err := s.updatePassword(ctx, username, newPassword); err != nil {
		return err
	}

	revoked := s.sessions.closeUser(username)
	s.logger.WithFields(logrus.Fields{"username": username, "revoked_sessions": revoked}).Info("password reset")
	return nil
}

func (s *ledgerService) ChangePassword(ctx context.Context, session *Session, oldPassword, newPassword string) error {
	active, err := s.requireSession(session)
	if err != nil {
		return err
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByUsername(ctx, active.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnauthenticated
		}
		return err
	}
	ok, err := s.hasher.Verify(user.PasswordHash, oldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if err := s.updatePassword(ctx, active.Username, newPassword); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"username": active.Username}).Info("password changed")
	return nil
}

// bcrypt rejects inputs longer than this.
const maxPasswordBytes = 72

func validatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordBytes)
	}
	return nil
}

func (s *ledgerService) updatePassword(ctx context.Context, username, newPassword string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, username, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *ledgerService) Session(ctx context.Context, sessionID string) (*Session, error) {
	active, ok := s.sessions.get(sessionID, s.now())
	if !ok {
		return nil, ErrUnauthenticated
	}
	return &active, nil
}

func (s *ledgerService) Logout(ctx context.Context, session *Session) {
	if session == nil {
		return
	}
	s.sessions.close(session.ID)
	s.logger.WithFields(logrus.Fields{"username": session.Username, "session": session.ID}).Info("session closed")
}

func (s *ledgerService) CheckBalance(ctx context.Context, session *Session) (int64, error) {
	active, err := s.requireSession(session)
	if err != nil {
		return 0, err
	}
	balance, err := s.users.Balance(ctx, active.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrUnauthenticated
		}
		return 0, err
	}
	return balance, nil
}

func (s *ledgerService) Deposit(ctx context.Context, session *Session, amount int64) (*domain.Transaction, error) {
	return s.apply(ctx, session, domain.TransactionDeposit, amount)
}

func (s *ledgerService) Withdraw(ctx context.Context, session *Session, amount int64) (*domain.Transaction, error) {
	return s.apply(ctx, session, domain.TransactionWithdraw, amount)
}

func (s *ledgerService) apply(ctx context.Context, session *Session, kind domain.TransactionType, amount int64) (*domain.Transaction, error) {
	active, err := s.requireSession(session)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	entry := &domain.Transaction{
		Username: active.Username,
		Type:     kind,
		Amount:   amount,
		Time:     s.now().Truncate(time.Second),
	}
	balance, err := s.transactions.Apply(ctx, entry)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientBalance):
			return nil, ErrInsufficientFunds
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"username": active.Username,
		"type":     string(kind),
		"amount":   amount,
		"balance":  balance,
	}).Info("transaction recorded")
	return entry, nil
}

func (s *ledgerService) ListHistory(ctx context.Context, session *Session) ([]domain.Transaction, error) {
	active, err := s.requireSession(session)
	if err != nil {
		return nil, err
	}
	return s.transactions.ListByUsername(ctx, active.Username)
}

func (s *ledgerService) ExportHistory(ctx context.Context, session *Session, destination string) (string, error) {
	history, err := s.ListHistory(ctx, session)
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", ErrNoData
	}

	location, err := s.exporter.Export(ctx, session.Username, destination, history)
	if err != nil {
		s.logger.WithError(err).WithField("username", session.Username).Warn("history export failed")
		return "", fmt.Errorf("%w: %v", ErrWriteError, err)
	}

	s.logger.WithFields(logrus.Fields{
		"username": session.Username,
		"location": location,
		"rows":     len(history),
	}).Info("history exported")
	return location, nil
}

// WriteHistoryCSV streams the history as CSV and returns the number of transaction rows written.
func (s *ledgerService) WriteHistoryCSV(ctx context.Context, session *Session, w io.Writer) (int, error) {
	history, err := s.ListHistory(ctx, session)
	if err != nil {
		return 0, err
	}
	if len(history) == 0 {
		return 0, ErrNoData
	}
	if err := export.WriteCSV(w, history); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWriteError, err)
	}
	return len(history), nil
}

// requireSession rejects nil, unknown, expired and revoked sessions.
func (s *ledgerService) requireSession(session *Session) (*Session, error) {
	if session == nil || session.ID == "" {
		return nil, ErrUnauthenticated
	}
	active, ok := s.sessions.get(session.ID, s.now())
	if !ok || active.Username != session.Username {
		return nil, ErrUnauthenticated
	}
	return &active, nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		Username:  user.Username,
		Age:       user.Age,
		Balance:   user.Balance,
		CreatedAt: user.CreatedAt,
	}
}

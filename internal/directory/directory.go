// Package directory owns accounts, the friend graph between them and the two
// invite mechanisms that grow that graph.
package directory

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

const (
	inviteCodeLength   = 6
	inviteCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Service implements the user directory, connection graph and invite flows.
type Service struct {
	accounts repositories.AccountRepository
	logger   *zap.Logger
}

// NewService builds a Service over an account store.
func NewService(accounts repositories.AccountRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{accounts: accounts, logger: logger}
}

// Create adds an account with a fresh invite token and code and returns the
// token.
func (s *Service) Create(ctx context.Context, username, password, email string) (string, error) {
	if username == "" || password == "" {
		return "", invalid("Username and password required")
	}
	account := models.Account{
		Username:    username,
		Password:    password,
		Email:       email,
		Status:      models.StatusActive,
		InviteToken: uuid.NewString(),
		InviteCode:  newInviteCode(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repositories.ErrAccountExists) {
			return "", ErrAlreadyExists
		}
		return "", fmt.Errorf("create account: %w", err)
	}
	s.logger.Info("account created", zap.String("username", username))
	return account.InviteToken, nil
}

// Authenticate checks the password by exact match. A deactivated account is
// reported separately from a bad password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (models.Account, error) {
	account, err := s.get(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.Account{}, ErrInvalidCredentials
		}
		return models.Account{}, err
	}
	if account.Password != password {
		return models.Account{}, ErrInvalidCredentials
	}
	if !account.Active() {
		return models.Account{}, ErrDeactivated
	}
	return account, nil
}

// Get returns the account for username.
func (s *Service) Get(ctx context.Context, username string) (models.Account, error) {
	return s.get(ctx, username)
}

// SetStatus activates or deactivates an account.
func (s *Service) SetStatus(ctx context.Context, username, status string) error {
	if status != models.StatusActive && status != models.StatusInactive {
		return invalid("Unknown status")
	}
	if err := s.accounts.SetStatus(ctx, username, status); err != nil {
		return s.mapNotFound(err, "set status")
	}
	return nil
}

// Remove deletes an account. Friends keep their edge to the removed user;
// contact listings skip it.
func (s *Service) Remove(ctx context.Context, username string) error {
	if err := s.accounts.Delete(ctx, username); err != nil {
		return s.mapNotFound(err, "remove account")
	}
	return nil
}

// ListUsers returns every account for the admin view.
func (s *Service) ListUsers(ctx context.Context) ([]models.AccountSummary, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	users := make([]models.AccountSummary, 0, len(accounts))
	for _, a := range accounts {
		status := a.Status
		if status == "" {
			status = models.StatusActive
		}
		users = append(users, models.AccountSummary{
			Username:  a.Username,
			Email:     a.Email,
			FirstName: a.FirstName,
			LastName:  a.LastName,
			Phone:     a.Phone,
			Status:    status,
		})
	}
	return users, nil
}

// ListActiveUsernames returns the usernames of all active accounts.
func (s *Service) ListActiveUsernames(ctx context.Context) ([]string, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	names := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if a.Active() {
			names = append(names, a.Username)
		}
	}
	return names, nil
}

// RegenerateInviteCode replaces the user's shareable code. Only the latest
// code resolves.
func (s *Service) RegenerateInviteCode(ctx context.Context, username string) (string, error) {
	code := newInviteCode()
	if err := s.accounts.SetInviteCode(ctx, username, code); err != nil {
		return "", s.mapNotFound(err, "set invite code")
	}
	return code, nil
}

// EnsureInviteToken returns the stable invite token, minting one for accounts
// that have none.
func (s *Service) EnsureInviteToken(ctx context.Context, username string) (string, error) {
	account, err := s.get(ctx, username)
	if err != nil {
		return "", err
	}
	if account.InviteToken != "" {
		return account.InviteToken, nil
	}
	token := uuid.NewString()
	if err := s.accounts.SetInviteToken(ctx, username, token); err != nil {
		return "", s.mapNotFound(err, "set invite token")
	}
	return token, nil
}

func (s *Service) get(ctx context.Context, username string) (models.Account, error) {
	if username == "" {
		return models.Account{}, ErrNotFound
	}
	account, err := s.accounts.Get(ctx, username)
	if err != nil {
		return models.Account{}, s.mapNotFound(err, "get account")
	}
	return account, nil
}

func (s *Service) mapNotFound(err error, op string) error {
	if errors.Is(err, repositories.ErrAccountNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func newInviteCode() string {
	buf := make([]byte, inviteCodeLength)
	max := big.NewInt(int64(len(inviteCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		buf[i] = inviteCodeAlphabet[n.Int64()]
	}
	return string(buf)
}

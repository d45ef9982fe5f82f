package directory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

const minPasswordLength = 6

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]`)
	localPartSplit  = regexp.MustCompile(`[._]`)

	disposableKeywords = []string{"test", "spam", "temp", "mailinator", "10minut", "tempmail", "disposable", "example"}
)

// RegisterInput is a self-service signup request.
type RegisterInput = models.Registration

// Register validates a signup, derives a unique username and stores the
// account. The derived username is returned.
func (s *Service) Register(ctx context.Context, in RegisterInput) (string, error) {
	if err := validateRegistration(in); err != nil {
		return "", err
	}

	if _, err := s.accounts.FindByEmail(ctx, in.Email); err == nil {
		return "", ErrEmailTaken
	} else if !errors.Is(err, repositories.ErrAccountNotFound) {
		return "", fmt.Errorf("check email: %w", err)
	}

	base := baseUsername(in)
	for counter := 0; ; counter++ {
		username := base
		if counter > 0 {
			username = base + strconv.Itoa(counter)
		}
		account := models.Account{
			Username:    username,
			Password:    in.Password,
			Email:       in.Email,
			FirstName:   in.FirstName,
			LastName:    in.LastName,
			Phone:       in.Phone,
			Status:      models.StatusActive,
			InviteToken: uuid.NewString(),
			InviteCode:  newInviteCode(),
		}
		err := s.accounts.Create(ctx, account)
		if errors.Is(err, repositories.ErrAccountExists) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create account: %w", err)
		}
		s.logger.Info("user registered", zap.String("username", username), zap.String("email", in.Email))
		return username, nil
	}
}

func validateRegistration(in RegisterInput) error {
	if in.FirstName == "" || in.LastName == "" || in.Email == "" || in.Password == "" {
		return invalid("All fields required")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		return invalid("Password must be at least 6 characters")
	}
	if !emailPattern.MatchString(in.Email) {
		return invalid("Invalid email format")
	}

	local, domain, _ := strings.Cut(strings.ToLower(in.Email), "@")
	if domain == "" || !strings.Contains(domain, ".") {
		return invalid("Invalid email domain")
	}
	for _, kw := range disposableKeywords {
		if strings.Contains(local, kw) || strings.Contains(domain, kw) {
			return invalid("Please use a real email address (no disposable or test domains)")
		}
	}
	return nil
}

func baseUsername(in RegisterInput) string {
	base := nonAlphanumeric.ReplaceAllString(strings.ToLower(in.FirstName+in.LastName), "")
	if base != "" {
		return base
	}
	local, _, _ := strings.Cut(strings.ToLower(in.Email), "@")
	if first := localPartSplit.Split(local, 2)[0]; first != "" {
		return first
	}
	return "user"
}

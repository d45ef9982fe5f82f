package directory

import (
	"context"
	"errors"
	"fmt"

	"chat-relay/internal/repositories"
)

// ResolveToken returns the username owning a stable invite token.
func (s *Service) ResolveToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInviteNotFound
	}
	account, err := s.accounts.FindByInviteToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return "", ErrInviteNotFound
		}
		return "", fmt.Errorf("resolve invite token: %w", err)
	}
	return account.Username, nil
}

// AcceptToken connects invitee with the owner of token.
func (s *Service) AcceptToken(ctx context.Context, token, invitee string) (string, error) {
	if token == "" || invitee == "" {
		return "", invalid("Token and username required")
	}
	inviter, err := s.ResolveToken(ctx, token)
	if err != nil {
		return "", err
	}
	return inviter, s.accept(ctx, inviter, invitee)
}

// AcceptCode connects invitee with whoever currently holds code.
func (s *Service) AcceptCode(ctx context.Context, code, invitee string) (string, error) {
	if code == "" || invitee == "" {
		return "", invalid("Username and invite code required")
	}
	account, err := s.accounts.FindByInviteCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return "", ErrInviteNotFound
		}
		return "", fmt.Errorf("resolve invite code: %w", err)
	}
	return account.Username, s.accept(ctx, account.Username, invitee)
}

func (s *Service) accept(ctx context.Context, inviter, invitee string) error {
	if inviter == invitee {
		return ErrSelfInvite
	}
	if _, err := s.get(ctx, invitee); err != nil {
		return err
	}
	return s.AddConnection(ctx, inviter, invitee)
}

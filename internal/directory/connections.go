package directory

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"chat-relay/internal/repositories"
)

// AddConnection makes a and b friends. Repeating it is a no-op.
func (s *Service) AddConnection(ctx context.Context, a, b string) error {
	if a == "" || b == "" {
		return invalid("Both usernames required")
	}
	if _, err := s.get(ctx, a); err != nil {
		return err
	}
	if _, err := s.get(ctx, b); err != nil {
		return err
	}
	if err := s.accounts.AddConnection(ctx, a, b); err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("add connection: %w", err)
	}
	s.logger.Info("connection added", zap.String("a", a), zap.String("b", b))
	return nil
}

// RemoveConnection drops the friendship from both sides.
func (s *Service) RemoveConnection(ctx context.Context, a, b string) error {
	if a == "" || b == "" {
		return invalid("Username and friend required")
	}
	if _, err := s.get(ctx, a); err != nil {
		return err
	}
	if _, err := s.get(ctx, b); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrFriendNotFound
		}
		return err
	}
	if err := s.accounts.RemoveConnection(ctx, a, b); err != nil {
		return fmt.Errorf("remove connection: %w", err)
	}
	s.logger.Info("connection removed", zap.String("a", a), zap.String("b", b))
	return nil
}

// ListActiveConnections returns username's friends whose accounts still exist
// and are active. The underlying edges are not touched.
func (s *Service) ListActiveConnections(ctx context.Context, username string) ([]string, error) {
	conns, err := s.accounts.Connections(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	active := make([]string, 0, len(conns))
	for _, friend := range conns {
		account, err := s.accounts.Get(ctx, friend)
		if errors.Is(err, repositories.ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get connection %s: %w", friend, err)
		}
		if account.Active() {
			active = append(active, friend)
		}
	}
	return active, nil
}

package repositories

import (
	"context"
	"sort"
	"sync"

	"chat-relay/internal/models"
)

// MemoryMessageRepo keeps the message log in process memory.
type MemoryMessageRepo struct {
	mu    sync.RWMutex
	chats map[string][]models.Message
}

// NewMemoryMessageRepo creates an empty MemoryMessageRepo.
func NewMemoryMessageRepo() *MemoryMessageRepo {
	return &MemoryMessageRepo{chats: make(map[string][]models.Message)}
}

func (r *MemoryMessageRepo) Append(_ context.Context, msg models.Message, chatKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[chatKey] = append(r.chats[chatKey], msg)
	return nil
}

func (r *MemoryMessageRepo) History(_ context.Context, chatKey string) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs := append([]models.Message{}, r.chats[chatKey]...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt < msgs[j].CreatedAt })
	return msgs, nil
}

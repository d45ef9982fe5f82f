package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat-relay/internal/models"
)

// MemoryAccountRepo keeps accounts in process memory. Used for tests and
// ACCOUNT_STORE=memory.
type MemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
}

// NewMemoryAccountRepo creates an empty MemoryAccountRepo.
func NewMemoryAccountRepo() *MemoryAccountRepo {
	return &MemoryAccountRepo{accounts: make(map[string]*models.Account)}
}

func (r *MemoryAccountRepo) Create(_ context.Context, account models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.Username]; ok {
		return ErrAccountExists
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	account.Connections = append([]string{}, account.Connections...)
	r.accounts[account.Username] = &account
	return nil
}

func (r *MemoryAccountRepo) Get(_ context.Context, username string) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accounts[username]
	if !ok {
		return models.Account{}, ErrAccountNotFound
	}
	return clone(acc), nil
}

func (r *MemoryAccountRepo) List(_ context.Context) ([]models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]models.Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		result = append(result, clone(acc))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

func (r *MemoryAccountRepo) FindByEmail(_ context.Context, email string) (models.Account, error) {
	return r.scan(func(a *models.Account) bool { return a.Email == email })
}

func (r *MemoryAccountRepo) FindByInviteToken(_ context.Context, token string) (models.Account, error) {
	return r.scan(func(a *models.Account) bool { return a.InviteToken == token })
}

func (r *MemoryAccountRepo) FindByInviteCode(_ context.Context, code string) (models.Account, error) {
	return r.scan(func(a *models.Account) bool { return a.InviteCode == code })
}

func (r *MemoryAccountRepo) scan(match func(*models.Account) bool) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, acc := range r.accounts {
		if match(acc) {
			return clone(acc), nil
		}
	}
	return models.Account{}, ErrAccountNotFound
}

func (r *MemoryAccountRepo) SetStatus(_ context.Context, username string, status string) error {
	return r.update(username, func(a *models.Account) { a.Status = status })
}

func (r *MemoryAccountRepo) SetInviteCode(_ context.Context, username string, code string) error {
	return r.update(username, func(a *models.Account) { a.InviteCode = code })
}

func (r *MemoryAccountRepo) SetInviteToken(_ context.Context, username string, token string) error {
	return r.update(username, func(a *models.Account) { a.InviteToken = token })
}

func (r *MemoryAccountRepo) update(username string, fn func(*models.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[username]
	if !ok {
		return ErrAccountNotFound
	}
	fn(acc)
	return nil
}

func (r *MemoryAccountRepo) Delete(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[username]; !ok {
		return ErrAccountNotFound
	}
	delete(r.accounts, username)
	return nil
}

func (r *MemoryAccountRepo) AddConnection(_ context.Context, a string, b string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	accA, okA := r.accounts[a]
	accB, okB := r.accounts[b]
	if !okA || !okB {
		return ErrAccountNotFound
	}
	accA.Connections = appendUnique(accA.Connections, b)
	accB.Connections = appendUnique(accB.Connections, a)
	return nil
}

func (r *MemoryAccountRepo) RemoveConnection(_ context.Context, a string, b string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acc, ok := r.accounts[a]; ok {
		acc.Connections = without(acc.Connections, b)
	}
	if acc, ok := r.accounts[b]; ok {
		acc.Connections = without(acc.Connections, a)
	}
	return nil
}

func (r *MemoryAccountRepo) Connections(_ context.Context, username string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accounts[username]
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, acc.Connections...), nil
}

func clone(acc *models.Account) models.Account {
	c := *acc
	c.Connections = append([]string{}, acc.Connections...)
	return c
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func without(list []string, v string) []string {
	out := list[:0]
	for _, existing := range list {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}

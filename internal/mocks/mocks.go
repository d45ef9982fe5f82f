package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

type AccountRepositoryMock struct {
	mock.Mock
}

func (m *AccountRepositoryMock) Create(ctx context.Context, account models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *AccountRepositoryMock) Get(ctx context.Context, username string) (models.Account, error) {
	args := m.Called(ctx, username)
	return accountArg(args, 0), args.Error(1)
}

func (m *AccountRepositoryMock) List(ctx context.Context) ([]models.Account, error) {
	args := m.Called(ctx)
	var list []models.Account
	if val := args.Get(0); val != nil {
		list = val.([]models.Account)
	}
	return list, args.Error(1)
}

func (m *AccountRepositoryMock) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	args := m.Called(ctx, email)
	return accountArg(args, 0), args.Error(1)
}

func (m *AccountRepositoryMock) FindByInviteToken(ctx context.Context, token string) (models.Account, error) {
	args := m.Called(ctx, token)
	return accountArg(args, 0), args.Error(1)
}

func (m *AccountRepositoryMock) FindByInviteCode(ctx context.Context, code string) (models.Account, error) {
	args := m.Called(ctx, code)
	return accountArg(args, 0), args.Error(1)
}

func (m *AccountRepositoryMock) SetStatus(ctx context.Context, username string, status string) error {
	args := m.Called(ctx, username, status)
	return args.Error(0)
}

func (m *AccountRepositoryMock) SetInviteCode(ctx context.Context, username string, code string) error {
	args := m.Called(ctx, username, code)
	return args.Error(0)
}

func (m *AccountRepositoryMock) SetInviteToken(ctx context.Context, username string, token string) error {
	args := m.Called(ctx, username, token)
	return args.Error(0)
}

func (m *AccountRepositoryMock) Delete(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

func (m *AccountRepositoryMock) AddConnection(ctx context.Context, a string, b string) error {
	args := m.Called(ctx, a, b)
	return args.Error(0)
}

func (m *AccountRepositoryMock) RemoveConnection(ctx context.Context, a string, b string) error {
	args := m.Called(ctx, a, b)
	return args.Error(0)
}

func (m *AccountRepositoryMock) Connections(ctx context.Context, username string) ([]string, error) {
	args := m.Called(ctx, username)
	return stringsArg(args, 0), args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, msg models.Message, chatKey string) error {
	args := m.Called(ctx, msg, chatKey)
	return args.Error(0)
}

func (m *MessageRepositoryMock) History(ctx context.Context, chatKey string) ([]models.Message, error) {
	args := m.Called(ctx, chatKey)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

// DirectoryMock stands in for directory.Service in handler tests.
type DirectoryMock struct {
	mock.Mock
}

func (m *DirectoryMock) Register(ctx context.Context, in models.Registration) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func (m *DirectoryMock) Create(ctx context.Context, username, password, email string) (string, error) {
	args := m.Called(ctx, username, password, email)
	return args.String(0), args.Error(1)
}

func (m *DirectoryMock) Authenticate(ctx context.Context, username, password string) (models.Account, error) {
	args := m.Called(ctx, username, password)
	return accountArg(args, 0), args.Error(1)
}

func (m *DirectoryMock) Get(ctx context.Context, username string) (models.Account, error) {
	args := m.Called(ctx, username)
	return accountArg(args, 0), args.Error(1)
}

func (m *DirectoryMock) SetStatus(ctx context.Context, username, status string) error {
	args := m.Called(ctx, username, status)
	return args.Error(0)
}

func (m *DirectoryMock) Remove(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

func (m *DirectoryMock) ListUsers(ctx context.Context) ([]models.AccountSummary, error) {
	args := m.Called(ctx)
	var list []models.AccountSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.AccountSummary)
	}
	return list, args.Error(1)
}

func (m *DirectoryMock) ListActiveUsernames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return stringsArg(args, 0), args.Error(1)
}

func (m *DirectoryMock) AddConnection(ctx context.Context, a, b string) error {
	args := m.Called(ctx, a, b)
	return args.Error(0)
}

func (m *DirectoryMock) RemoveConnection(ctx context.Context, a, b string) error {
	args := m.Called(ctx, a, b)
	return args.Error(0)
}

func (m *DirectoryMock) ListActiveConnections(ctx context.Context, username string) ([]string, error) {
	args := m.Called(ctx, username)
	return stringsArg(args, 0), args.Error(1)
}

func (m *DirectoryMock) RegenerateInviteCode(ctx context.Context, username string) (string, error) {
	args := m.Called(ctx, username)
	return args.String(0), args.Error(1)
}

func (m *DirectoryMock) EnsureInviteToken(ctx context.Context, username string) (string, error) {
	args := m.Called(ctx, username)
	return args.String(0), args.Error(1)
}

func (m *DirectoryMock) ResolveToken(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func (m *DirectoryMock) AcceptToken(ctx context.Context, token, invitee string) (string, error) {
	args := m.Called(ctx, token, invitee)
	return args.String(0), args.Error(1)
}

func (m *DirectoryMock) AcceptCode(ctx context.Context, code, invitee string) (string, error) {
	args := m.Called(ctx, code, invitee)
	return args.String(0), args.Error(1)
}

func accountArg(args mock.Arguments, i int) models.Account {
	var account models.Account
	if val := args.Get(i); val != nil {
		account = val.(models.Account)
	}
	return account
}

func stringsArg(args mock.Arguments, i int) []string {
	var list []string
	if val := args.Get(i); val != nil {
		list = val.([]string)
	}
	return list
}

var _ repositories.AccountRepository = (*AccountRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)

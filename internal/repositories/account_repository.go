package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-relay/internal/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

// AccountRepository abstracts account and connection persistence.
type AccountRepository interface {
	Create(ctx context.Context, account models.Account) error
	Get(ctx context.Context, username string) (models.Account, error)
	List(ctx context.Context) ([]models.Account, error)
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	FindByInviteToken(ctx context.Context, token string) (models.Account, error)
	FindByInviteCode(ctx context.Context, code string) (models.Account, error)
	SetStatus(ctx context.Context, username string, status string) error
	SetInviteCode(ctx context.Context, username string, code string) error
	SetInviteToken(ctx context.Context, username string, token string) error
	Delete(ctx context.Context, username string) error
	AddConnection(ctx context.Context, a string, b string) error
	RemoveConnection(ctx context.Context, a string, b string) error
	Connections(ctx context.Context, username string) ([]string, error)
}

// AccountRepo is a sqlx implementation of AccountRepository.
type AccountRepo struct {
	db *sqlx.DB
}

// NewAccountRepo constructs an AccountRepo.
func NewAccountRepo(db *sqlx.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

const accountColumns = `username, password, email, first_name, last_name, phone, status, invite_token, invite_code, created_at`

// Create inserts a new account.
func (r *AccountRepo) Create(ctx context.Context, account models.Account) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO accounts (username, password, email, first_name, last_name, phone, status, invite_token, invite_code)
        VALUES (:username, :password, :email, :first_name, :last_name, :phone, :status, :invite_token, :invite_code)`, account)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrAccountExists
	}
	return err
}

// Get fetches an account and its connection list.
func (r *AccountRepo) Get(ctx context.Context, username string) (models.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username=$1`, username)
}

// List returns every account ordered by username.
func (r *AccountRepo) List(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := r.db.SelectContext(ctx, &accounts, `SELECT `+accountColumns+` FROM accounts ORDER BY username`); err != nil {
		return nil, err
	}
	return accounts, nil
}

// FindByEmail looks an account up by exact email.
func (r *AccountRepo) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email=$1 LIMIT 1`, email)
}

// FindByInviteToken resolves a stable invite token to its owner.
func (r *AccountRepo) FindByInviteToken(ctx context.Context, token string) (models.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE invite_token=$1 LIMIT 1`, token)
}

// FindByInviteCode resolves the current shareable code to its owner.
func (r *AccountRepo) FindByInviteCode(ctx context.Context, code string) (models.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE invite_code=$1 LIMIT 1`, code)
}

func (r *AccountRepo) findOne(ctx context.Context, query string, arg any) (models.Account, error) {
	var account models.Account
	err := r.db.GetContext(ctx, &account, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	conns, err := r.Connections(ctx, account.Username)
	if err != nil {
		return models.Account{}, err
	}
	account.Connections = conns
	return account, nil
}

// SetStatus updates the account status.
func (r *AccountRepo) SetStatus(ctx context.Context, username string, status string) error {
	return r.updateColumn(ctx, "status", username, status)
}

// SetInviteCode overwrites the shareable invite code.
func (r *AccountRepo) SetInviteCode(ctx context.Context, username string, code string) error {
	return r.updateColumn(ctx, "invite_code", username, code)
}

// SetInviteToken stores the stable invite token.
func (r *AccountRepo) SetInviteToken(ctx context.Context, username string, token string) error {
	return r.updateColumn(ctx, "invite_token", username, token)
}

func (r *AccountRepo) updateColumn(ctx context.Context, column string, username string, value string) error {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`UPDATE accounts SET %s=$1 WHERE username=$2`, column), value, username)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Delete removes the account. Other accounts' connection rows are left alone.
func (r *AccountRepo) Delete(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE username=$1`, username)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// AddConnection records the friendship in both directions.
func (r *AccountRepo) AddConnection(ctx context.Context, a string, b string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insert = `INSERT INTO connections (username, friend) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := tx.ExecContext(ctx, insert, a, b); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, insert, b, a); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveConnection deletes the friendship in both directions.
func (r *AccountRepo) RemoveConnection(ctx context.Context, a string, b string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM connections WHERE (username=$1 AND friend=$2) OR (username=$2 AND friend=$1)`, a, b)
	return err
}

// Connections lists the usernames connected to username, in insertion order.
func (r *AccountRepo) Connections(ctx context.Context, username string) ([]string, error) {
	conns := []string{}
	err := r.db.SelectContext(ctx, &conns, `SELECT friend FROM connections WHERE username=$1 ORDER BY created_at, friend`, username)
	return conns, err
}

func requireRow(res sql.Result) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrAccountNotFound
	}
	return nil
}

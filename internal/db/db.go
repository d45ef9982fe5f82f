package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Connect opens the Postgres database and applies migrations.
func Connect(dsn string, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations applied")

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
            username TEXT PRIMARY KEY,
            password TEXT NOT NULL,
            email TEXT NOT NULL DEFAULT '',
            first_name TEXT NOT NULL DEFAULT '',
            last_name TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'active',
            invite_token TEXT NOT NULL DEFAULT '',
            invite_code TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts (email);`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_invite_token ON accounts (invite_token);`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_invite_code ON accounts (invite_code);`,
		// No foreign key: removing an account leaves its edges behind, and
		// contact listings filter them out.
		`CREATE TABLE IF NOT EXISTS connections (
            username TEXT NOT NULL,
            friend TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (username, friend)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            chat_key TEXT NOT NULL,
            from_user TEXT NOT NULL,
            to_user TEXT NOT NULL,
            text TEXT,
            media_url TEXT,
            media_type TEXT,
            reply_to JSONB,
            created_at BIGINT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_key ON messages (chat_key, created_at);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

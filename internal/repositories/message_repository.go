package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"chat-relay/internal/models"
)

// ChatKeySeparator joins the two participants of a chat key.
const ChatKeySeparator = "|"

// ChatKey identifies the conversation between a and b regardless of order.
func ChatKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ChatKeySeparator)
}

// MessageRepository is the append-only message log.
type MessageRepository interface {
	Append(ctx context.Context, msg models.Message, chatKey string) error
	History(ctx context.Context, chatKey string) ([]models.Message, error)
}

// MergeHistory unions a locally cached history with a fetched one, keyed by
// CreatedAt, sorted ascending. Entries in remote win on key collisions.
func MergeHistory(local, remote []models.Message) []models.Message {
	byTime := make(map[int64]models.Message, len(local)+len(remote))
	for _, m := range local {
		byTime[m.CreatedAt] = m
	}
	for _, m := range remote {
		byTime[m.CreatedAt] = m
	}
	merged := make([]models.Message, 0, len(byTime))
	for _, m := range byTime {
		merged = append(merged, m)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].CreatedAt < merged[j].CreatedAt })
	return merged
}

// MessageRepo is a sqlx-backed message log.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

type messageRow struct {
	ChatKey   string         `db:"chat_key"`
	From      string         `db:"from_user"`
	To        string         `db:"to_user"`
	Text      sql.NullString `db:"text"`
	MediaURL  sql.NullString `db:"media_url"`
	MediaType sql.NullString `db:"media_type"`
	ReplyTo   sql.NullString `db:"reply_to"`
	CreatedAt int64          `db:"created_at"`
}

// Append stores one message under chatKey.
func (r *MessageRepo) Append(ctx context.Context, msg models.Message, chatKey string) error {
	row := messageRow{
		ChatKey:   chatKey,
		From:      msg.From,
		To:        msg.To,
		Text:      sql.NullString{String: msg.Text, Valid: msg.Text != ""},
		CreatedAt: msg.CreatedAt,
	}
	if msg.Media != nil {
		row.MediaURL = sql.NullString{String: msg.Media.URL, Valid: true}
		row.MediaType = sql.NullString{String: msg.Media.Type, Valid: true}
	}
	if msg.ReplyTo != nil {
		raw, err := json.Marshal(msg.ReplyTo)
		if err != nil {
			return err
		}
		row.ReplyTo = sql.NullString{String: string(raw), Valid: true}
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO messages (chat_key, from_user, to_user, text, media_url, media_type, reply_to, created_at)
        VALUES (:chat_key, :from_user, :to_user, :text, :media_url, :media_type, :reply_to, :created_at)`, row)
	return err
}

// History returns the messages for chatKey ordered by creation time.
func (r *MessageRepo) History(ctx context.Context, chatKey string) ([]models.Message, error) {
	var rows []messageRow
	err := r.db.SelectContext(ctx, &rows, `SELECT chat_key, from_user, to_user, text, media_url, media_type, reply_to, created_at
        FROM messages
        WHERE chat_key=$1
        ORDER BY created_at ASC, id ASC`, chatKey)
	if err != nil {
		return nil, err
	}

	msgs := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		msg := models.Message{
			From:      row.From,
			To:        row.To,
			Text:      row.Text.String,
			CreatedAt: row.CreatedAt,
		}
		if row.MediaURL.Valid {
			msg.Media = &models.Media{URL: row.MediaURL.String, Type: row.MediaType.String}
		}
		if row.ReplyTo.Valid {
			var reply models.ReplyRef
			if err := json.Unmarshal([]byte(row.ReplyTo.String), &reply); err == nil {
				msg.ReplyTo = &reply
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

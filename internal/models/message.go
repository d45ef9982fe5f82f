package models

import "encoding/json"

// Media references an uploaded attachment.
type Media struct {
	URL  string `json:"url" bson:"url"`
	Type string `json:"type" bson:"type"`
}

// ReplyRef points at the message being replied to.
type ReplyRef struct {
	From string `json:"from,omitempty" bson:"from,omitempty"`
	Text string `json:"text,omitempty" bson:"text,omitempty"`
}

// Message is a direct message between two users. CreatedAt is milliseconds
// since the epoch and is assigned by the server.
type Message struct {
	From      string    `json:"from" bson:"from"`
	To        string    `json:"to" bson:"to"`
	Text      string    `json:"text,omitempty" bson:"text,omitempty"`
	Media     *Media    `json:"media,omitempty" bson:"media,omitempty"`
	ReplyTo   *ReplyRef `json:"replyTo,omitempty" bson:"replyTo,omitempty"`
	CreatedAt int64     `json:"createdAt" bson:"createdAt"`
}

// Reaction is an emoji reaction on a message, relayed between participants.
// MsgID is opaque to the server and passed through as sent.
type Reaction struct {
	MsgID json.RawMessage `json:"msgId,omitempty"`
	Emoji string          `json:"emoji"`
	From  string          `json:"from"`
	To    string          `json:"to"`
}

// TypingEvent signals that From is (or stopped) typing to To.
type TypingEvent struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Typing *bool  `json:"typing,omitempty"`
}

// FriendJoined tells an inviter that someone accepted their invite.
type FriendJoined struct {
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

package models

import "encoding/json"

// Frame is the envelope for every websocket payload in both directions.
// Ack is set on client requests that expect a reply and echoed on the reply.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   *int64          `json:"ack,omitempty"`
}

// OutboundFrame is a server-to-client frame.
type OutboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	Ack   *int64 `json:"ack,omitempty"`
}

package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter publishes admin and account lifecycle events.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	logger      *zap.Logger
	now         func() time.Time
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	Actor         *string      `json:"actor,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string `json:"level"`
	Text   string `json:"text"`
	Target string `json:"target,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, logger *zap.Logger) *AuditEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		logger:      logger,
		now:         time.Now,
	}
}

// Emit publishes one audit record. target names the account acted upon.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, target, requestID string, actor *string) {
	if e == nil || e.publisher == nil {
		return
	}

	e.logger.Info("audit emit",
		zap.String("level", level),
		zap.String("request_id", requestID),
		zap.Stringp("actor", actor),
		zap.String("target", target),
		zap.String("text", text),
	)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		Actor:         actor,
		Payload: AuditPayload{
			Level:  level,
			Text:   text,
			Target: target,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		e.logger.Warn("audit publish failed", zap.Error(err))
	}
}

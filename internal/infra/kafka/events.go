package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
	"github.com/arklim/learnstore/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types. Topics are the event type under the configured prefix.
const (
	EventIdentityRegistered = "identity.registered"
	EventLoginSucceeded     = "identity.login"
	EventPasswordChanged    = "identity.password_changed"
	EventRoleChanged        = "identity.role_changed"
	EventIdentityDeleted    = "identity.deleted"
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID    string           `json:"event_id"`
	EventType  string           `json:"event_type"`
	IdentityID string           `json:"identity_id,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
	Version    string           `json:"version"`
	Payload    any              `json:"payload"`
	Metadata   envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, identityID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
		"deployment":  string(p.appCfg.Deployment),
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	bytes, err := json.Marshal(eventEnvelope{
		EventID:    id,
		EventType:  eventType,
		IdentityID: identityID,
		Timestamp:  ts.UTC(),
		Version:    schemaVersion,
		Payload:    payload,
		Metadata:   metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
			{Key: []byte("schema_version"), Value: []byte(schemaVersion)},
		},
	}
	if identityID != "" {
		message.Key = sarama.StringEncoder(identityID)
	}

	select {
	case p.producer.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishIdentityRegistered publishes identity.registered events.
func (p *EventPublisher) PublishIdentityRegistered(ctx context.Context, event domain.IdentityRegisteredEvent) error {
	payload := struct {
		IdentityID   string    `json:"identity_id"`
		Role         string    `json:"role"`
		Email        string    `json:"email,omitempty"`
		Phone        string    `json:"phone,omitempty"`
		Method       string    `json:"method"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		IdentityID:   event.IdentityID,
		Role:         string(event.Role),
		Email:        event.Email,
		Phone:        event.Phone,
		Method:       event.Method,
		RegisteredAt: event.RegisteredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventIdentityRegistered, event.IdentityID, event.RegisteredAt, payload)
}

// PublishLoginSucceeded publishes identity.login events.
func (p *EventPublisher) PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error {
	payload := struct {
		IdentityID string    `json:"identity_id"`
		Role       string    `json:"role"`
		Method     string    `json:"method"`
		At         time.Time `json:"at"`
	}{
		IdentityID: event.IdentityID,
		Role:       string(event.Role),
		Method:     event.Method,
		At:         event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, EventLoginSucceeded, event.IdentityID, event.At, payload)
}

// PublishPasswordChanged publishes identity.password_changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		IdentityID string    `json:"identity_id"`
		ChangedBy  string    `json:"changed_by"`
		ChangedAt  time.Time `json:"changed_at"`
	}{
		IdentityID: event.IdentityID,
		ChangedBy:  event.ChangedBy,
		ChangedAt:  event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventPasswordChanged, event.IdentityID, event.ChangedAt, payload)
}

// PublishRoleChanged publishes identity.role_changed events.
func (p *EventPublisher) PublishRoleChanged(ctx context.Context, event domain.RoleChangedEvent) error {
	payload := struct {
		IdentityID string    `json:"identity_id"`
		From       string    `json:"from"`
		To         string    `json:"to"`
		ChangedBy  string    `json:"changed_by"`
		ChangedAt  time.Time `json:"changed_at"`
	}{
		IdentityID: event.IdentityID,
		From:       string(event.From),
		To:         string(event.To),
		ChangedBy:  event.ChangedBy,
		ChangedAt:  event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventRoleChanged, event.IdentityID, event.ChangedAt, payload)
}

// PublishIdentityDeleted publishes identity.deleted events.
func (p *EventPublisher) PublishIdentityDeleted(ctx context.Context, event domain.IdentityDeletedEvent) error {
	payload := struct {
		IdentityID string    `json:"identity_id"`
		DeletedBy  string    `json:"deleted_by"`
		DeletedAt  time.Time `json:"deleted_at"`
	}{
		IdentityID: event.IdentityID,
		DeletedBy:  event.DeletedBy,
		DeletedAt:  event.DeletedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventIdentityDeleted, event.IdentityID, event.DeletedAt, payload)
}

// PublishOrderPlaced publishes order.placed events.
func (p *EventPublisher) PublishOrderPlaced(ctx context.Context, event domain.OrderPlacedEvent) error {
	payload := struct {
		OrderID     string    `json:"order_id"`
		IdentityID  string    `json:"identity_id"`
		TotalAmount float64   `json:"total_amount"`
		ItemCount   int       `json:"item_count"`
		PlacedAt    time.Time `json:"placed_at"`
	}{
		OrderID:     event.OrderID,
		IdentityID:  event.IdentityID,
		TotalAmount: event.TotalAmount,
		ItemCount:   event.ItemCount,
		PlacedAt:    event.PlacedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventOrderPlaced, event.IdentityID, event.PlacedAt, payload)
}

// PublishOrderStatusChanged publishes order.status_changed events.
func (p *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event domain.OrderStatusChangedEvent) error {
	payload := struct {
		OrderID   string    `json:"order_id"`
		From      string    `json:"from"`
		To        string    `json:"to"`
		ChangedBy string    `json:"changed_by"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		OrderID:   event.OrderID,
		From:      string(event.From),
		To:        string(event.To),
		ChangedBy: event.ChangedBy,
		ChangedAt: event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventOrderStatusChanged, "", event.ChangedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)

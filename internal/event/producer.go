package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stonenotes/stonenotes/internal/domain"
	pkgkafka "github.com/stonenotes/stonenotes/pkg/kafka"
	"github.com/stonenotes/stonenotes/pkg/logger"
)

// Event types published by the notes service.
const (
	EventUserRegistered     = "user.registered"
	EventAuthSessionRevoked = "auth.session.revoked"
)

// Kafka topics for the events above.
var (
	TopicUserRegistered     = pkgkafka.Topic("user", "registered")
	TopicAuthSessionRevoked = pkgkafka.Topic("auth", "session.revoked")
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// SourceNotesService identifies events originating from this service.
const SourceNotesService = "notes-service"

// Revocation scopes.
const (
	RevokeScopeSession = "session"
	RevokeScopeAll     = "all"
)

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// SessionRevokedData is the payload for an auth.session.revoked event. Token
// values are never published.
type SessionRevokedData struct {
	UserID  string `json:"user_id"`
	Scope   string `json:"scope"`
	Revoked int64  `json:"revoked"`
}

// Publisher publishes events to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, env *pkgkafka.Envelope) error
}

// Producer publishes notes service domain events.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// MetadataActorID names the event metadata key holding the authenticated user
// that caused the event. It differs from the aggregate on admin revocations.
const MetadataActorID = "actor_id"

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
	}

	return p.publish(ctx, TopicUserRegistered, EventUserRegistered, user.ID, data)
}

// PublishSessionRevoked publishes an auth.session.revoked event after a
// logout. scope is RevokeScopeSession or RevokeScopeAll.
func (p *Producer) PublishSessionRevoked(ctx context.Context, userID, scope string, revoked int64) error {
	data := SessionRevokedData{
		UserID:  userID,
		Scope:   scope,
		Revoked: revoked,
	}

	return p.publish(ctx, TopicAuthSessionRevoked, EventAuthSessionRevoked, userID, data)
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateID string, data any) error {
	env, err := pkgkafka.NewEnvelope(eventType, SourceNotesService,
		pkgkafka.Aggregate{Type: AggregateTypeUser, ID: aggregateID}, data)
	if err != nil {
		return err
	}

	env.CorrelationID = logger.CorrelationIDFromContext(ctx)
	if actorID := logger.UserIDFromContext(ctx); actorID != "" {
		env.SetMeta(MetadataActorID, actorID)
	}

	if err := p.publisher.Publish(ctx, topic, env); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("event_type", eventType),
		slog.String("user_id", aggregateID),
	)

	return nil
}

package archive

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcourt/quizclash/go/internal/models"
)

// PublisherConfig holds configuration for the NATS publisher
type PublisherConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultPublisherConfig returns default NATS publisher configuration
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		URL:           nats.DefaultURL,
		Subject:       "quiz.sessions.completed",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Publisher emits completed-session events to NATS so downstream consumers
// (leaderboard aggregation, analytics) can react without touching the core.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher connects to NATS with an infinite-reconnect policy.
func NewPublisher(config PublisherConfig) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &Publisher{nc: nc, subject: config.Subject}, nil
}

// PublishSessionCompleted emits a completion envelope for an archived game.
func (p *Publisher) PublishSessionCompleted(summary models.SessionSummary) error {
	envelope := map[string]interface{}{
		"eventId":     uuid.New().String(),
		"eventType":   "SessionCompleted",
		"sessionCode": summary.Code,
		"timestamp":   summary.EndedAt,
		"payload":     summary,
	}

	messageBytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.nc.Publish(p.subject, messageBytes); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().
		Str("subject", p.subject).
		Str("session", summary.Code).
		Msg("published session completed event")
	return nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if err := p.nc.Drain(); err != nil {
		log.Error().Err(err).Msg("failed to drain NATS connection")
	}
}

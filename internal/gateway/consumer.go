package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// JetStreamConsumerConfig holds configuration for the upstream event
// consumer.
type JetStreamConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultJetStreamConsumerConfig returns the default consumer tuning.
func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    "MATCH_EVENTS",
		ConsumerName:  "match-gateway",
		SubjectFilter: "match.events.>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// EventConsumer bridges upstream score-entry and join-request events
// into the gateway's outbound notifications. The components that
// produce these events (scorekeeping, join workflows) live outside
// this process.
type EventConsumer struct {
	gw       *Gateway
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	config   JetStreamConsumerConfig
	log      zerolog.Logger
}

// envelope is the upstream wire format. Payload stays opaque.
type envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	MatchCode string          `json:"matchCode"`
	MemberID  int             `json:"memberId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEventConsumer connects to NATS and binds the durable consumer.
func NewEventConsumer(gw *Gateway, config JetStreamConsumerConfig, logger zerolog.Logger) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ec := &EventConsumer{gw: gw, nc: nc, js: js, config: config, log: logger}
	if err := ec.ensureConsumer(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return ec, nil
}

func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := ec.js.Stream(ctx, ec.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.Consumer(ctx, ec.config.ConsumerName)
	if err != nil {
		consumer, err = stream.CreateConsumer(ctx, jetstream.ConsumerConfig{
			Name:          ec.config.ConsumerName,
			Durable:       ec.config.ConsumerName,
			Description:   "match gateway event consumer",
			FilterSubject: ec.config.SubjectFilter,
			AckPolicy:     jetstream.AckExplicitPolicy,
			MaxDeliver:    ec.config.MaxDeliver,
			AckWait:       ec.config.AckWait,
			MaxAckPending: ec.config.MaxAckPending,
			ReplayPolicy:  jetstream.ReplayInstantPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		ec.log.Info().Str("consumer", ec.config.ConsumerName).Msg("created JetStream consumer")
	}
	ec.consumer = consumer
	return nil
}

// Start consumes until ctx is cancelled.
func (ec *EventConsumer) Start(ctx context.Context) error {
	ec.log.Info().
		Str("stream", ec.config.StreamName).
		Str("subjects", ec.config.SubjectFilter).
		Msg("event consumer started")

	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		if err := ec.processMessage(msg); err != nil {
			ec.log.Error().Err(err).Str("subject", msg.Subject()).Msg("process upstream event")
			if nakErr := msg.Nak(); nakErr != nil {
				ec.log.Error().Err(nakErr).Msg("NAK failed")
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			ec.log.Error().Err(ackErr).Msg("ACK failed")
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	<-ctx.Done()
	ec.log.Info().Msg("event consumer shutting down")
	return nil
}

func (ec *EventConsumer) processMessage(msg jetstream.Msg) error {
	var env envelope
	if err := json.Unmarshal(msg.Data(), &env); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}
	return ec.dispatch(env)
}

// dispatch routes an upstream envelope to the right group: join
// requests to organizers, join-request outcomes to the member's
// personal channel, everything else to the match's viewers.
func (ec *EventConsumer) dispatch(env envelope) error {
	typ, err := parseEventType(env.EventType)
	if err != nil {
		return err
	}
	switch typ {
	case EventJoinRequestReceived:
		ec.gw.NotifyOrganizerGroup(env.MatchCode, typ, env.Payload)
	case EventJoinRequestAccepted, EventJoinRequestBlocked:
		if env.MemberID <= 0 {
			return fmt.Errorf("%s event without member id", typ)
		}
		ec.gw.NotifyMember(env.MemberID, typ, env.Payload)
	default:
		ec.gw.NotifyMatchGroup(env.MatchCode, typ, env.Payload)
	}
	return nil
}

func parseEventType(s string) (EventType, error) {
	switch t := EventType(s); t {
	case EventSpectatorListUpdated,
		EventJoinRequestReceived,
		EventJoinRequestAccepted,
		EventJoinRequestBlocked,
		EventParticipantJoined,
		EventParticipantLeft,
		EventScoreUpdated,
		EventTeamScoreUpdated,
		EventMatchCompleted,
		EventMatchStarted,
		EventMatchRefresh,
		EventMatchDeleted,
		EventSettingsUpdated:
		return t, nil
	default:
		return "", fmt.Errorf("unknown event type %q", s)
	}
}

// Stop closes the NATS connection.
func (ec *EventConsumer) Stop() error {
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}

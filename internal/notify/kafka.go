package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/segmentio/kafka-go"

	"go-identity/internal/model"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes reset instructions as JSON to a topic consumed by
// the mailer. Messages are keyed by user id.
type KafkaSender struct {
	writer  messageWriter
	baseURL string
	log     *slog.Logger
}

func NewKafkaSender(brokers []string, topic string, baseURL string, log *slog.Logger) *KafkaSender {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return newKafkaSender(w, baseURL, log)
}

func newKafkaSender(w messageWriter, baseURL string, log *slog.Logger) *KafkaSender {
	if log == nil {
		log = slog.Default()
	}
	return &KafkaSender{writer: w, baseURL: baseURL, log: log.With("component", "notify")}
}

func (s *KafkaSender) SendResetInstructions(ctx context.Context, user model.User, token string, expiresAt time.Time) error {
	payload, err := json.Marshal(newInstructions(s.baseURL, user, token, expiresAt))
	if err != nil {
		return oops.Code("NOTIFY_ENCODE_FAILED").Wrap(err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(user.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte("password_reset_requested")},
		},
	})
	if err != nil {
		return oops.Code("NOTIFY_PUBLISH_FAILED").With("user_id", user.ID).Wrap(err)
	}

	s.log.DebugContext(ctx, "reset instructions published", "user_id", user.ID)
	return nil
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}

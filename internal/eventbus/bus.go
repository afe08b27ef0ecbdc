package eventbus

import (
	"context"
	"encoding/json"
	"time"
)

const (
	TopicVerificationRequested = "verification.requested"
	TopicVerificationResponded = "verification.responded"
)

type Event struct {
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"ts"`
}

type Handler func(ctx context.Context, e Event)

type Bus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(topic string, h Handler) (unsubscribe func(), err error)
	Close() error
}

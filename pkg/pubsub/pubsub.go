package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event defines the payload
type Event interface {
	Marshal() (msg Message, err error)
	Unmarshal(msg Message) error
}

// Message is the payload received in a pubsub subscriber. The input for callback functions
type Message []byte

// Publisher sends topics to the pubsub
type Publisher interface {
	Publish(ctx context.Context, topic string, payload Event) error
}

// EventHandler is the type that functions that handle an event must comply.
type EventHandler func(context.Context, Message) error

// Subscriber subscribes to the pubsub topics
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, callback EventHandler)
}

// Client is formed by the publisher and subscriber
type Client interface {
	Publisher
	Subscriber
	Close() error
}

// envelope wraps every published message
type envelope struct {
	ID   uuid.UUID       `json:"id"`
	Time time.Time       `json:"time"`
	Msg  json.RawMessage `json:"msg"`
}

func wrap(event Event) ([]byte, error) {
	msg, err := event.Marshal()
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		ID:   uuid.New(),
		Time: time.Now().UTC(),
		Msg:  json.RawMessage(msg),
	})
}

func unwrap(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return Message(env.Msg), nil
}

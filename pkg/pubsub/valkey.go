package pubsub

import (
	"context"

	"github.com/valkey-io/valkey-go"

	"github.com/polygonid/academic-bridge/internal/log"
)

type valkeyClient struct {
	client valkey.Client
}

// NewValKeyClient returns a new pubsub client based on Valkey
func NewValKeyClient(client valkey.Client) Client {
	return &valkeyClient{
		client: client,
	}
}

// Publish publishes a new topic payload
func (vk *valkeyClient) Publish(ctx context.Context, topic string, event Event) error {
	p, err := wrap(event)
	if err != nil {
		log.Error(ctx, "error marshalling payload", "err", err)
		return err
	}
	return vk.client.Do(ctx, vk.client.B().Publish().Channel(topic).Message(string(p)).Build()).Error()
}

// Subscribe adds a topic to the subscriber. Messages are handled in a goroutine until ctx is done.
func (vk *valkeyClient) Subscribe(ctx context.Context, topic string, callback EventHandler) {
	go func() {
		err := vk.client.Receive(ctx, vk.client.B().Subscribe().Channel(topic).Build(), func(m valkey.PubSubMessage) {
			msg, err := unwrap([]byte(m.Message))
			if err != nil {
				log.Error(ctx, "error unmarshalling payload", "err", err)
				return
			}
			if err := safeCall(ctx, callback, msg); err != nil {
				log.Error(ctx, "error processing message", "err", err)
			}
		})
		if err != nil && ctx.Err() == nil {
			log.Error(ctx, "error subscribing to topic", "err", err, "topic", topic)
		}
	}()
}

// Close closes the pubsub client
func (vk *valkeyClient) Close() error {
	vk.client.Close()
	return nil
}

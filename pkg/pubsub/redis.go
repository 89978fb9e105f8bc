package pubsub

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/polygonid/academic-bridge/internal/log"
)

// RedisClient struct
type RedisClient struct {
	conn *redis.Client
}

// NewRedis returns a redis pubsub client
func NewRedis(rdb *redis.Client) Client {
	return &RedisClient{rdb}
}

// Publish publishes a new topic payload
func (rdb *RedisClient) Publish(ctx context.Context, topic string, event Event) error {
	p, err := wrap(event)
	if err != nil {
		return err
	}
	return rdb.conn.Publish(ctx, topic, p).Err()
}

// Subscribe adds a topic to the subscriber. Messages are handled in a goroutine until ctx is done.
func (rdb *RedisClient) Subscribe(ctx context.Context, topic string, callback EventHandler) {
	ps := rdb.conn.Subscribe(ctx, topic)
	// Wait for the subscription to be confirmed so publishers racing with us are not lost
	if _, err := ps.Receive(ctx); err != nil {
		log.Error(ctx, "subscribing to topic", "err", err, "topic", topic)
	}
	ch := ps.Channel()
	go func() {
		defer func() { _ = ps.Close() }()
		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				if event.Channel != topic {
					log.Error(ctx, "msg channel != topic")
					continue
				}
				msg, err := unwrap([]byte(event.Payload))
				if err != nil {
					log.Error(ctx, "unmarshal msg payload", "err", err)
					continue
				}
				if err := safeCall(ctx, callback, msg); err != nil {
					log.Error(ctx, "executing callback function", "err", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close closes the underlying redis connection
func (rdb *RedisClient) Close() error {
	return rdb.conn.Close()
}

func safeCall(ctx context.Context, callback EventHandler, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered from panic: %v", r)
		}
	}()
	return callback(ctx, msg)
}

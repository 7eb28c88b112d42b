package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const defaultChannelPrefix = "boardsync"

type PubSub struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &PubSub{client: client}, nil
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ps.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish: %w", err)
	}
	return nil
}

func (ps *PubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := ps.client.Subscribe(ctx, channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.PubSub.Subscribe: receive confirmation: %w", err)
	}

	out := make(chan []byte, 64)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}

// ClusterChannel returns the Redis channel hub nodes exchange events on.
func ClusterChannel(prefix string) string {
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	return prefix + ":cluster"
}

// Bus binds a PubSub to a single channel and satisfies realtime.ClusterBus.
type Bus struct {
	ps      *PubSub
	channel string
}

// Bus returns a cluster bus on the given channel.
func (ps *PubSub) Bus(channel string) *Bus {
	return &Bus{ps: ps, channel: channel}
}

func (b *Bus) Publish(ctx context.Context, payload []byte) error {
	if err := b.ps.Publish(ctx, b.channel, payload); err != nil {
		return fmt.Errorf("redis.Bus.Publish: %w", err)
	}
	return nil
}

// Subscribe calls handler for every message on the channel, in order, from a
// single goroutine. The returned function stops delivery and waits for the
// goroutine to exit.
func (b *Bus) Subscribe(ctx context.Context, handler func(payload []byte)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	msgs, cleanup, err := b.ps.Subscribe(ctx, b.channel)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("redis.Bus.Subscribe: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for payload := range msgs {
			handler(payload)
		}
		log.Debug().Str("channel", b.channel).Msg("redis: cluster subscription closed")
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			cleanup()
			<-done
		})
	}

	return stop, nil
}

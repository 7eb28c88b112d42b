// Package nats implements the hub cluster bus over core NATS subjects.
package nats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const defaultSubjectPrefix = "boardsync"

// ClusterSubject returns the subject hub nodes exchange events on.
func ClusterSubject(prefix string) string {
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return prefix + ".cluster"
}

// Bus publishes and receives cluster messages on a single subject. Core NATS
// delivery is at-most-once, which is all the hub needs.
type Bus struct {
	nc      *nats.Conn
	subject string
}

// Connect establishes a connection to NATS bound to subject.
func Connect(ctx context.Context, url, subject, name string) (*Bus, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats: disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats: reconnected")
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats.Connect: %w", err)
	}

	log.Info().Str("url", nc.ConnectedUrl()).Str("subject", subject).Msg("nats: connected")
	return &Bus{nc: nc, subject: subject}, nil
}

func (b *Bus) Publish(_ context.Context, payload []byte) error {
	if err := b.nc.Publish(b.subject, payload); err != nil {
		return fmt.Errorf("nats.Bus.Publish %s: %w", b.subject, err)
	}
	return nil
}

// Subscribe registers handler for every message on the subject. NATS calls
// the handler from one goroutine per subscription, in order.
func (b *Bus) Subscribe(_ context.Context, handler func(payload []byte)) (func(), error) {
	sub, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("nats.Bus.Subscribe %s: %w", b.subject, err)
	}
	if err := b.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("nats.Bus.Subscribe %s: flush: %w", b.subject, err)
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil {
				log.Warn().Err(err).Str("subject", b.subject).Msg("nats: unsubscribe")
			}
		})
	}

	return stop, nil
}

// Close drains pending messages and shuts down the NATS connection.
func (b *Bus) Close() error {
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return fmt.Errorf("nats.Bus.Close: %w", err)
	}
	return nil
}

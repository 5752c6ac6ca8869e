/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// subjectPrefix namespaces netmaint subjects on a shared NATS cluster.
const subjectPrefix = "netmaint.events."

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:           url,
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSBus publishes envelopes to NATS subjects, one subject per event
// type ("netmaint.events.maintenance.start" and so on).
type NATSBus struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewNATSBus connects to the NATS server. Reconnection is handled by
// the client; publishes during a reconnect window are buffered.
func NewNATSBus(cfg NATSConfig, logger zerolog.Logger) (*NATSBus, error) {
	logger = logger.With().Str("component", "natsbus").Logger()

	conn, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}

	logger.Info().Str("url", cfg.URL).Msg("NATS event bus initialized")
	return &NATSBus{conn: conn, logger: logger}, nil
}

// Name identifies the backend in logs and metrics.
func (nb *NATSBus) Name() string { return "nats" }

// Publish sends the envelope to the subject for its event type.
func (nb *NATSBus) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	subject := subjectPrefix + string(env.EventType)
	if err := nb.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending publishes and drains the connection.
func (nb *NATSBus) Close() error {
	if err := nb.conn.Flush(); err != nil {
		nb.logger.Warn().Err(err).Msg("flush before close failed")
	}
	if err := nb.conn.Drain(); err != nil {
		return err
	}
	nb.logger.Info().Msg("NATS event bus closed")
	return nil
}

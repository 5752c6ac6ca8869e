/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// channelPrefix namespaces netmaint channels on a shared Redis.
const channelPrefix = "netmaint:events:"

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Connection pooling
	PoolSize     int
	MinIdleConns int

	// Timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Circuit breaker
	MaxFailures   int
	CheckInterval time.Duration
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig(addr, password string, db int) RedisConfig {
	return RedisConfig{
		Addr:          addr,
		Password:      password,
		DB:            db,
		PoolSize:      10,
		MinIdleConns:  2,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxFailures:   5,
		CheckInterval: 30 * time.Second,
	}
}

// RedisBus publishes envelopes to Redis pub/sub channels, one channel
// per event type. A circuit breaker drops publishes after repeated
// failures and probes for recovery on an interval, so a dead Redis
// never stalls the engine.
type RedisBus struct {
	client *redis.Client
	logger zerolog.Logger

	mu            sync.Mutex
	open          bool // circuit open: publishes dropped
	failCount     int
	maxFails      int
	checkInterval time.Duration
	lastProbe     time.Time
}

// NewRedisBus creates a Redis-backed publisher. An unreachable Redis
// at startup opens the circuit instead of failing the boot.
func NewRedisBus(cfg RedisConfig, logger zerolog.Logger) (*RedisBus, error) {
	logger = logger.With().Str("component", "redisbus").Logger()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	rb := &RedisBus{
		client:        client,
		logger:        logger,
		maxFails:      cfg.MaxFailures,
		checkInterval: cfg.CheckInterval,
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis unreachable, starting with circuit open")
		rb.open = true
		rb.lastProbe = time.Now()
	} else {
		logger.Info().Str("addr", cfg.Addr).Msg("Redis event bus initialized")
	}

	return rb, nil
}

// Name identifies the backend in logs and metrics.
func (rb *RedisBus) Name() string { return "redis" }

// Publish sends the envelope to the channel for its event type.
func (rb *RedisBus) Publish(ctx context.Context, env Envelope) error {
	if !rb.allow(ctx) {
		return fmt.Errorf("redis circuit open, dropping %s", env.EventType)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	channel := channelPrefix + string(env.EventType)
	if err := rb.client.Publish(ctx, channel, data).Err(); err != nil {
		rb.recordFailure()
		return fmt.Errorf("publish %s: %w", channel, err)
	}

	rb.mu.Lock()
	rb.failCount = 0
	rb.mu.Unlock()
	return nil
}

// allow reports whether a publish may proceed, probing a downed Redis
// at most once per check interval.
func (rb *RedisBus) allow(ctx context.Context) bool {
	rb.mu.Lock()
	if !rb.open {
		rb.mu.Unlock()
		return true
	}
	if time.Since(rb.lastProbe) < rb.checkInterval {
		rb.mu.Unlock()
		return false
	}
	rb.lastProbe = time.Now()
	rb.mu.Unlock()

	if err := rb.client.Ping(ctx).Err(); err != nil {
		return false
	}

	rb.mu.Lock()
	rb.open = false
	rb.failCount = 0
	rb.mu.Unlock()
	rb.logger.Info().Msg("Redis recovered, circuit closed")
	return true
}

func (rb *RedisBus) recordFailure() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.failCount++
	if rb.failCount >= rb.maxFails && !rb.open {
		rb.open = true
		rb.lastProbe = time.Now()
		rb.logger.Warn().Int("fail_count", rb.failCount).Msg("Redis failure threshold reached, circuit opened")
	}
}

// Close releases the Redis client.
func (rb *RedisBus) Close() error {
	if err := rb.client.Close(); err != nil {
		return err
	}
	rb.logger.Info().Msg("Redis event bus closed")
	return nil
}

/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Event bus backend selection.
type EventBusBackend string

const (
	EventBusMemory EventBusBackend = "memory"
	EventBusNATS   EventBusBackend = "nats"
	EventBusRedis  EventBusBackend = "redis"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	NodeID      string

	DBBackend DatabaseBackend
	DBDSN     string

	// Topology inventory seed file (YAML). Empty means start with an
	// empty inventory and populate over the API.
	TopologyFile string

	// Event bus configuration
	EventBusBackend EventBusBackend
	NATSURL         string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	MetricsBind string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("NETMAINT_ENV", "development"),
		HTTPBind:    getEnv("NETMAINT_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("NETMAINT_HTTP_PORT", 8080),
		NodeID:      getEnv("NETMAINT_NODE_ID", ""),

		DBBackend: DatabaseBackend(getEnv("NETMAINT_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:     getEnv("NETMAINT_DB_DSN", ""),

		TopologyFile: getEnv("NETMAINT_TOPOLOGY_FILE", ""),

		EventBusBackend: EventBusBackend(getEnv("NETMAINT_EVENTBUS_BACKEND", string(EventBusMemory))),
		NATSURL:         getEnv("NETMAINT_NATS_URL", "nats://localhost:4222"),
		RedisAddr:       getEnv("NETMAINT_REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("NETMAINT_REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("NETMAINT_REDIS_DB", 0),

		MetricsBind: getEnv("NETMAINT_METRICS_BIND", "127.0.0.1:9000"),

		TracingEnabled:    getEnvBool("NETMAINT_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("NETMAINT_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("NETMAINT_TRACING_SAMPLE_RATE", 1.0),
	}

	switch cfg.DBBackend {
	case DatabasePostgres, DatabaseMySQL, DatabaseSQLite:
	default:
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		if cfg.DBBackend != DatabaseSQLite {
			return nil, fmt.Errorf("NETMAINT_DB_DSN must be provided for backend %q", cfg.DBBackend)
		}
		cfg.DBDSN = "netmaint.db"
	}

	switch cfg.EventBusBackend {
	case EventBusMemory, EventBusNATS, EventBusRedis:
	default:
		return nil, fmt.Errorf("unsupported event bus backend %q", cfg.EventBusBackend)
	}

	if cfg.NodeID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "netmaint"
		}
		cfg.NodeID = host
	}

	return cfg, nil
}

// HTTPAddr returns the bind address for the API listener.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

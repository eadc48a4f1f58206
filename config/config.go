// Package config reads the process configuration from the environment once
// at startup. Missing or malformed values fail Load instead of the first
// use.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/terraskye/ddd/streams"
)

const (
	TransportNATS      = "nats"
	TransportKurrentDB = "kurrentdb"
	TransportMemory    = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	// Streams transport
	StreamsConnection string
	StreamsGroupID    string
	StreamsAckTimeout time.Duration
	StreamsTransport  string
	TenantID          string
	EventTopic        string

	// Command store
	CommandTopic       string
	CommandDatabaseURL string
	CommandAMQPURL     string

	// API
	APIPort string

	LogLevel logrus.Level
}

// MissingKeyError is returned for a required key that is not set.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("'%s' not defined in environment", e.Key)
}

// InvalidValueError is returned for a key whose value cannot be used.
type InvalidValueError struct {
	Key    string
	Value  string
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("'%s' has invalid value %q: %s", e.Key, e.Value, e.Reason)
}

// Lookup returns the value of key and whether it is set.
type Lookup func(key string) (string, bool)

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

func LoadFrom(lookup Lookup) (*Config, error) {
	env := reader{lookup: lookup}

	cfg := &Config{
		StreamsConnection:  env.required("STREAMS_SERVICE_CONNECTION"),
		StreamsGroupID:     env.optional("STREAMS_SERVICE_GROUP_ID", streams.DefaultGroupID),
		StreamsAckTimeout:  env.milliseconds("STREAMS_SERVICE_ACK_TIMEOUT", streams.DefaultAckTimeout),
		StreamsTransport:   env.oneOf("STREAMS_SERVICE_TRANSPORT", TransportNATS, TransportNATS, TransportKurrentDB, TransportMemory),
		TenantID:           env.required("STREAMS_SERVICE_TENANT_ID"),
		EventTopic:         env.required("STREAMS_SERVICE_TOPIC"),
		CommandTopic:       env.required("COMMAND_STORE_TOPIC"),
		CommandDatabaseURL: env.optional("COMMAND_STORE_DATABASE_URL", ""),
		CommandAMQPURL:     env.optional("COMMAND_STORE_AMQP_URL", ""),
		APIPort:            env.optional("API_PORT", "8080"),
		LogLevel:           env.logLevel("LOG_LEVEL", logrus.InfoLevel),
	}
	if env.err != nil {
		return nil, env.err
	}
	return cfg, nil
}

// StreamsOptions returns the dial options of the streams transport.
func (c *Config) StreamsOptions() streams.Options {
	return streams.Options{
		ServerAddress: c.StreamsConnection,
		GroupID:       c.StreamsGroupID,
		AckTimeout:    c.StreamsAckTimeout,
	}
}

// reader keeps the first error so Load reports keys in declaration order.
type reader struct {
	lookup Lookup
	err    error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) required(key string) string {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		r.fail(&MissingKeyError{Key: key})
	}
	return v
}

func (r *reader) optional(key, fallback string) string {
	if v, ok := r.lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func (r *reader) milliseconds(key string, fallback time.Duration) time.Duration {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		r.fail(&InvalidValueError{Key: key, Value: v, Reason: "expected a positive number of milliseconds"})
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func (r *reader) oneOf(key, fallback string, allowed ...string) string {
	v := r.optional(key, fallback)
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	r.fail(&InvalidValueError{Key: key, Value: v, Reason: fmt.Sprintf("expected one of %v", allowed)})
	return fallback
}

func (r *reader) logLevel(key string, fallback logrus.Level) logrus.Level {
	v := r.optional(key, "")
	if v == "" {
		return fallback
	}
	level, err := logrus.ParseLevel(v)
	if err != nil {
		r.fail(&InvalidValueError{Key: key, Value: v, Reason: err.Error()})
		return fallback
	}
	return level
}

// Package config defines the stubd configuration surface and its
// YAML/JSON loader.
package config

import (
	"fmt"
	"time"
)

// Defaults for the simulator configuration.
const (
	DefaultScenarioName    = "default"
	DefaultHTTPPort        = 4680
	DefaultAdminPort       = 4681
	DefaultReplyTimeoutMs  = 5000
	DefaultWorkers         = 10
	DefaultPollBackoffMs   = 2000
	DefaultShutdownGraceMs = 10000
)

// HTTPConfig configures the HTTP ingress and admin listeners.
type HTTPConfig struct {
	// Port is the ingress listener port.
	Port int `json:"port" yaml:"port"`

	// AdminPort serves the administrative API. 0 disables it.
	AdminPort int `json:"adminPort" yaml:"adminPort"`

	// Host is the bind address for both listeners.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
}

// MQTTConfig configures the optional MQTT ingress. Mirrors mqtt.Config;
// kept separate so the config file schema is self-contained.
type MQTTConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	BrokerURL  string `json:"brokerUrl" yaml:"brokerUrl"`
	ClientID   string `json:"clientId,omitempty" yaml:"clientId,omitempty"`
	Topic      string `json:"topic" yaml:"topic"`
	ReplyTopic string `json:"replyTopic,omitempty" yaml:"replyTopic,omitempty"`
	QoS        byte   `json:"qos,omitempty" yaml:"qos,omitempty"`
	Username   string `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
}

// ResolutionConfig selects the scenario-name resolution strategies, tried
// in order: header, path globs, JSONPath, XML, expression.
type ResolutionConfig struct {
	// Header names the header carrying the scenario name. Empty uses
	// the built-in X-Stub-Scenario header.
	Header string `json:"header,omitempty" yaml:"header,omitempty"`

	// PathMappings maps doublestar path globs to scenario names.
	PathMappings map[string]string `json:"pathMappings,omitempty" yaml:"pathMappings,omitempty"`

	// JSONPath extracts the scenario name from JSON payloads.
	JSONPath string `json:"jsonPath,omitempty" yaml:"jsonPath,omitempty"`

	// XMLPath selects the element whose local name is the scenario name
	// (etree path syntax). Defaults to the first SOAP Body child when
	// XMLEnabled is set with an empty path.
	XMLPath    string `json:"xmlPath,omitempty" yaml:"xmlPath,omitempty"`
	XMLEnabled bool   `json:"xmlEnabled,omitempty" yaml:"xmlEnabled,omitempty"`

	// Expression is an expr-lang expression yielding the scenario name.
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// LoggingConfig configures operational logging.
type LoggingConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Config is the root simulator configuration.
type Config struct {
	// DefaultScenario handles messages no resolution strategy maps.
	DefaultScenario string `json:"defaultScenario" yaml:"defaultScenario"`

	// ReplyTimeoutMs bounds how long a dispatch waits for a reply.
	ReplyTimeoutMs int `json:"replyTimeoutMs" yaml:"replyTimeoutMs"`

	// WaitForReply false turns dispatch into fire-and-forget.
	WaitForReply *bool `json:"waitForReply,omitempty" yaml:"waitForReply,omitempty"`

	// Workers bounds concurrently running scenario scripts.
	Workers int `json:"workers" yaml:"workers"`

	// PollerBackoffMs delays the poll loop after unexpected errors.
	PollerBackoffMs int `json:"pollerBackoffMs" yaml:"pollerBackoffMs"`

	// ShutdownGraceMs bounds graceful shutdown of pollers and workers.
	ShutdownGraceMs int `json:"shutdownGraceMs" yaml:"shutdownGraceMs"`

	// AllowExecutionReset gates the administrative bulk deletion of
	// execution records.
	AllowExecutionReset bool `json:"allowExecutionReset,omitempty" yaml:"allowExecutionReset,omitempty"`

	// PersistencePath enables the bbolt-backed execution store at the
	// given file path. Empty keeps the in-memory store.
	PersistencePath string `json:"persistencePath,omitempty" yaml:"persistencePath,omitempty"`

	HTTP       HTTPConfig       `json:"http" yaml:"http"`
	MQTT       MQTTConfig       `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
	Resolution ResolutionConfig `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	Logging    LoggingConfig    `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		DefaultScenario: DefaultScenarioName,
		ReplyTimeoutMs:  DefaultReplyTimeoutMs,
		Workers:         DefaultWorkers,
		PollerBackoffMs: DefaultPollBackoffMs,
		ShutdownGraceMs: DefaultShutdownGraceMs,
		HTTP: HTTPConfig{
			Port:      DefaultHTTPPort,
			AdminPort: DefaultAdminPort,
		},
	}
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	def := Default()
	if c.DefaultScenario == "" {
		c.DefaultScenario = def.DefaultScenario
	}
	if c.ReplyTimeoutMs <= 0 {
		c.ReplyTimeoutMs = def.ReplyTimeoutMs
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.PollerBackoffMs <= 0 {
		c.PollerBackoffMs = def.PollerBackoffMs
	}
	if c.ShutdownGraceMs <= 0 {
		c.ShutdownGraceMs = def.ShutdownGraceMs
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = def.HTTP.Port
	}
}

// Validate checks the configuration for errors a running simulator could
// not recover from.
func (c *Config) Validate() error {
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if c.HTTP.AdminPort < 0 || c.HTTP.AdminPort > 65535 {
		return fmt.Errorf("http.adminPort %d out of range", c.HTTP.AdminPort)
	}
	if c.HTTP.AdminPort != 0 && c.HTTP.AdminPort == c.HTTP.Port {
		return fmt.Errorf("http.adminPort must differ from http.port")
	}
	if c.MQTT.Enabled {
		if c.MQTT.BrokerURL == "" {
			return fmt.Errorf("mqtt.brokerUrl is required when mqtt is enabled")
		}
		if c.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.topic is required when mqtt is enabled")
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1, or 2")
		}
	}
	return nil
}

// ReplyTimeout returns the reply wait bound as a duration.
func (c *Config) ReplyTimeout() time.Duration {
	return time.Duration(c.ReplyTimeoutMs) * time.Millisecond
}

// PollerBackoff returns the poll-loop error backoff as a duration.
func (c *Config) PollerBackoff() time.Duration {
	return time.Duration(c.PollerBackoffMs) * time.Millisecond
}

// ShutdownGrace returns the graceful-shutdown bound as a duration.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceMs) * time.Millisecond
}

// ReplyWaitingEnabled reports whether dispatch blocks for replies
// (default true).
func (c *Config) ReplyWaitingEnabled() bool {
	return c.WaitForReply == nil || *c.WaitForReply
}

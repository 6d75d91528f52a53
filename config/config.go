// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package config loads client configuration from YAML and applies it to a
// session builder, so connection settings can live outside the binary.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/absmach/solclient"
)

// Config holds all configuration for a client connection.
type Config struct {
	Broker  BrokerConfig  `yaml:"broker"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
}

// BrokerConfig holds the connection target and credentials.
type BrokerConfig struct {
	Host     string `yaml:"host"`
	VPN      string `yaml:"vpn"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SessionConfig holds tuning knobs for the session. Zero values leave the
// engine defaults in place.
type SessionConfig struct {
	ClientName             string `yaml:"client_name"`
	ApplicationDescription string `yaml:"application_description"`

	BufferSizeBytes     int `yaml:"buffer_size_bytes"`
	ConnectTimeoutMs    int `yaml:"connect_timeout_ms"`
	SubConfirmTimeoutMs int `yaml:"subconfirm_timeout_ms"`

	KeepAliveIntervalMs int `yaml:"keep_alive_interval_ms"`
	KeepAliveLimit      int `yaml:"keep_alive_limit"`

	// 0 disables compression; 1 through 9 trade CPU for size.
	CompressionLevel int `yaml:"compression_level"`

	ConnectRetries       int `yaml:"connect_retries"`
	ReconnectRetries     int `yaml:"reconnect_retries"`
	ReconnectRetryWaitMs int `yaml:"reconnect_retry_wait_ms"`

	GenerateSendTimestamps bool `yaml:"generate_send_timestamps"`
	GenerateRcvTimestamps  bool `yaml:"generate_rcv_timestamps"`
	GenerateSequenceNumber bool `yaml:"generate_sequence_number"`

	TCPNoDelay bool `yaml:"tcp_no_delay"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			VPN: "default",
		},
		Session: SessionConfig{
			ConnectTimeoutMs:     30000,
			SubConfirmTimeoutMs:  10000,
			KeepAliveIntervalMs:  3000,
			KeepAliveLimit:       3,
			ReconnectRetries:     3,
			ReconnectRetryWaitMs: 3000,
			TCPNoDelay:           true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
// If the file doesn't exist, returns default configuration.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid. Numeric session limits are
// left to the session builder, which enforces the engine's documented ranges.
func (c *Config) Validate() error {
	if c.Broker.Host == "" {
		return fmt.Errorf("broker.host cannot be empty")
	}
	if c.Broker.VPN == "" {
		return fmt.Errorf("broker.vpn cannot be empty")
	}
	if c.Broker.Username == "" {
		return fmt.Errorf("broker.username cannot be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: text, json")
	}

	return nil
}

// Apply copies the configuration onto the builder. Fields left at their zero
// value are not applied, so the engine defaults stay in effect.
func (c *Config) Apply(b *solclient.SessionBuilder) *solclient.SessionBuilder {
	b.Host(c.Broker.Host).
		VPN(c.Broker.VPN).
		Username(c.Broker.Username).
		Password(c.Broker.Password)

	s := c.Session
	if s.ClientName != "" {
		b.ClientName(s.ClientName)
	}
	if s.ApplicationDescription != "" {
		b.ApplicationDescription(s.ApplicationDescription)
	}
	if s.BufferSizeBytes != 0 {
		b.BufferSizeBytes(s.BufferSizeBytes)
	}
	if s.ConnectTimeoutMs != 0 {
		b.ConnectTimeoutMs(s.ConnectTimeoutMs)
	}
	if s.SubConfirmTimeoutMs != 0 {
		b.SubConfirmTimeoutMs(s.SubConfirmTimeoutMs)
	}
	if s.KeepAliveIntervalMs != 0 {
		b.KeepAliveIntervalMs(s.KeepAliveIntervalMs)
	}
	if s.KeepAliveLimit != 0 {
		b.KeepAliveLimit(s.KeepAliveLimit)
	}
	if s.CompressionLevel != 0 {
		b.CompressionLevel(s.CompressionLevel)
	}
	if s.ConnectRetries != 0 {
		b.ConnectRetries(s.ConnectRetries)
	}
	if s.ReconnectRetries != 0 {
		b.ReconnectRetries(s.ReconnectRetries)
	}
	if s.ReconnectRetryWaitMs != 0 {
		b.ReconnectRetryWaitMs(s.ReconnectRetryWaitMs)
	}
	if s.GenerateSendTimestamps {
		b.GenerateSendTimestamps(true)
	}
	if s.GenerateRcvTimestamps {
		b.GenerateRcvTimestamps(true)
	}
	if s.GenerateSequenceNumber {
		b.GenerateSequenceNumber(true)
	}
	if s.TCPNoDelay {
		b.TCPNoDelay(true)
	}
	return b
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

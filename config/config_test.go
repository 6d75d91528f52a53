// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Broker.VPN != "default" {
		t.Errorf("expected default vpn, got %s", cfg.Broker.VPN)
	}

	// Test session defaults
	if cfg.Session.ConnectTimeoutMs != 30000 {
		t.Errorf("expected connect timeout 30000, got %d", cfg.Session.ConnectTimeoutMs)
	}
	if cfg.Session.KeepAliveLimit != 3 {
		t.Errorf("expected keep alive limit 3, got %d", cfg.Session.KeepAliveLimit)
	}

	// Test log defaults
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level info, got %s", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	valid := func(c *Config) {
		c.Broker.Host = "tcp://localhost:55555"
		c.Broker.Username = "default"
	}
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "complete config is valid",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "missing host",
			modify: func(c *Config) {
				c.Broker.Host = ""
			},
			wantErr: true,
		},
		{
			name: "missing vpn",
			modify: func(c *Config) {
				c.Broker.VPN = ""
			},
			wantErr: true,
		},
		{
			name: "missing username",
			modify: func(c *Config) {
				c.Broker.Username = ""
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Log.Level = "invalid"
			},
			wantErr: true,
		},
		{
			name: "invalid log format",
			modify: func(c *Config) {
				c.Log.Format = "xml"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			valid(cfg)
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadNonExistent(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatalf("Load() should return default config and no error when file doesn't exist, got error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() should return a default config, got nil")
	}

	if cfg.Broker.VPN != "default" {
		t.Errorf("expected default config, got vpn %s", cfg.Broker.VPN)
	}
}

func TestSaveLoad(t *testing.T) {
	tmpfile := t.TempDir() + "/config.yaml"

	// Create custom config
	cfg := Default()
	cfg.Broker.Host = "tcp://broker:55555"
	cfg.Broker.Username = "tester"
	cfg.Session.CompressionLevel = 5
	cfg.Log.Level = "debug"

	// Save
	if err := cfg.Save(tmpfile); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Load
	loaded, err := Load(tmpfile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify
	if loaded.Broker.Host != "tcp://broker:55555" {
		t.Errorf("expected host tcp://broker:55555, got %s", loaded.Broker.Host)
	}
	if loaded.Session.CompressionLevel != 5 {
		t.Errorf("expected compression level 5, got %d", loaded.Session.CompressionLevel)
	}
	if loaded.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", loaded.Log.Level)
	}
}

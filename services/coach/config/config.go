// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config provides configuration loading for the coach service.
//
// Configuration comes from an optional YAML file layered over defaults,
// with environment variables taking final precedence. The file path is
// given by COACH_CONFIG_PATH or passed explicitly to Load.
//
// Thread Safety:
//
//	Config values are read-only after Load; safe to share across goroutines.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileSize caps the YAML file read to prevent memory issues from
// oversized or hostile files.
const MaxConfigFileSize = 1024 * 1024

// Duration wraps time.Duration so YAML can carry values like "24h".
type Duration time.Duration

// UnmarshalYAML accepts Go duration strings or integer nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value at line %d", value.Line)
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Dialogue  DialogueConfig  `yaml:"dialogue"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// StoreConfig controls session persistence.
type StoreConfig struct {
	// Path is the Badger data directory. Ignored when InMemory is set.
	Path string `yaml:"path"`

	// InMemory runs Badger without disk persistence.
	InMemory bool `yaml:"in_memory"`

	// SessionTTL is the idle lifetime of a session.
	SessionTTL Duration `yaml:"session_ttl"`

	// SweepInterval is how often expired sessions are evicted.
	SweepInterval Duration `yaml:"sweep_interval"`
}

// GatewayConfig selects and tunes the language gateway backend.
type GatewayConfig struct {
	// Backend is "deterministic" or "openai".
	Backend string `yaml:"backend"`

	// Model overrides the provider's default model name.
	Model string `yaml:"model"`

	// MaxRetries is the retry budget for transient gateway failures.
	MaxRetries int `yaml:"max_retries"`

	// RatePerSecond throttles outbound gateway calls.
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// DialogueConfig tunes the session state machine.
type DialogueConfig struct {
	MaxQuestionRounds   int      `yaml:"max_question_rounds"`
	MinInitialQuestions int      `yaml:"min_initial_questions"`
	TerminationKeywords []string `yaml:"termination_keywords"`
	BotUserID           string   `yaml:"bot_user_id"`
}

// DedupConfig tunes duplicate event suppression.
type DedupConfig struct {
	Window     Duration `yaml:"window"`
	MaxEntries int      `yaml:"max_entries"`
}

// KnowledgeConfig controls the reference material backend.
type KnowledgeConfig struct {
	// WeaviateURL enables the vector-store backend when set.
	WeaviateURL string `yaml:"weaviate_url"`

	// SeedPath points at a YAML seed file for the in-memory backend.
	SeedPath string `yaml:"seed_path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "12310"},
		Store: StoreConfig{
			Path:          "/var/lib/coachpilot/sessions",
			SessionTTL:    Duration(24 * time.Hour),
			SweepInterval: Duration(10 * time.Minute),
		},
		Gateway: GatewayConfig{
			Backend:       "deterministic",
			MaxRetries:    1,
			RatePerSecond: 5,
		},
		Dialogue: DialogueConfig{
			MaxQuestionRounds:   4,
			MinInitialQuestions: 3,
			TerminationKeywords: []string{"stop", "quit", "end session"},
		},
		Dedup: DedupConfig{
			Window:     Duration(5 * time.Minute),
			MaxEntries: 10000,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty and COACH_CONFIG_PATH is unset), then
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("COACH_CONFIG_PATH")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return fmt.Errorf("config file %s exceeds %d bytes", path, MaxConfigFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// applyEnv layers environment variables over the loaded values.
func (c *Config) applyEnv() {
	setString(&c.Server.Port, "COACH_PORT")
	setString(&c.Store.Path, "COACH_STORE_PATH")
	setBool(&c.Store.InMemory, "COACH_STORE_IN_MEMORY")
	setDuration(&c.Store.SessionTTL, "COACH_SESSION_TTL")
	setDuration(&c.Store.SweepInterval, "COACH_SWEEP_INTERVAL")
	setString(&c.Gateway.Backend, "COACH_GATEWAY_BACKEND")
	setString(&c.Gateway.Model, "COACH_GATEWAY_MODEL")
	setString(&c.Dialogue.BotUserID, "COACH_BOT_USER_ID")
	setDuration(&c.Dedup.Window, "COACH_DEDUP_WINDOW")
	setString(&c.Knowledge.WeaviateURL, "WEAVIATE_SERVICE_URL")
	setString(&c.Knowledge.SeedPath, "COACH_KNOWLEDGE_SEED_PATH")
}

// Validate checks the effective configuration.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server.port must be numeric, got %q", c.Server.Port)
	}
	switch c.Gateway.Backend {
	case "deterministic", "openai":
	default:
		return fmt.Errorf("gateway.backend must be deterministic or openai, got %q", c.Gateway.Backend)
	}
	if c.Store.SessionTTL <= 0 {
		return fmt.Errorf("store.session_ttl must be positive")
	}
	if c.Dedup.Window <= 0 {
		return fmt.Errorf("dedup.window must be positive")
	}
	if c.Dialogue.MaxQuestionRounds < 1 {
		return fmt.Errorf("dialogue.max_question_rounds must be at least 1")
	}
	return nil
}

func setString(dst *string, key string) {
	// Trim quotes in case the container runtime passes them literally.
	if v := strings.Trim(os.Getenv(key), "\"' "); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			*dst = Duration(parsed)
		}
	}
}

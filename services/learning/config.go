// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package learning

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs can say "5m" instead of
// nanosecond integers.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses Go duration syntax ("5m", "1h30m").
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration in Go syntax.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// LogConfig configures pkg/logging for the service.
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
	Quiet bool   `yaml:"quiet"`
}

// Config holds every tunable of the learning service. Load fills defaults
// first, then overlays the YAML file, then validates; an invalid config
// fails startup rather than limping along.
type Config struct {
	ListenAddr          string    `yaml:"listen_addr" validate:"required"`
	BufferCapacity      int       `yaml:"buffer_capacity" validate:"gte=4"`
	LearningRate        float64   `yaml:"learning_rate" validate:"gt=0"`
	BatchSize           int       `yaml:"batch_size" validate:"gt=0"`
	UpdateFrequency     int       `yaml:"update_frequency" validate:"gt=0"`
	MinGamesForUpdate   int       `yaml:"min_games_for_update" validate:"gte=1"`
	ValidationThreshold float64   `yaml:"validation_threshold" validate:"gte=0,lte=1"`
	UpdateCooldown      Duration  `yaml:"update_cooldown"`
	StabilityThreshold  float64   `yaml:"stability_threshold" validate:"gte=0,lte=1"`
	StabilityInterval   Duration  `yaml:"stability_interval"`
	Log                 LogConfig `yaml:"log"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:          ":8002",
		BufferCapacity:      100000,
		LearningRate:        0.0001,
		BatchSize:           32,
		UpdateFrequency:     100,
		MinGamesForUpdate:   50,
		ValidationThreshold: 0.95,
		UpdateCooldown:      Duration{5 * time.Minute},
		StabilityThreshold:  0.1,
		StabilityInterval:   Duration{10 * time.Minute},
		Log:                 LogConfig{Level: "info"},
	}
}

// LoadConfig reads a YAML config file over the defaults. A missing file is
// not an error: the defaults stand.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks structural constraints plus the relations the struct
// tags cannot express.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.UpdateCooldown.Duration < 0 {
		return fmt.Errorf("invalid config: update_cooldown must not be negative")
	}
	if c.StabilityInterval.Duration <= 0 {
		return fmt.Errorf("invalid config: stability_interval must be positive")
	}
	if c.BatchSize > c.BufferCapacity {
		return fmt.Errorf("invalid config: batch_size %d exceeds buffer_capacity %d", c.BatchSize, c.BufferCapacity)
	}
	return nil
}

// Copyright 2025 The GenerativeModels Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package config loads network configurations from YAML files.
//
// Unspecified fields keep their defaults, so a file only needs to name
// what differs from DefaultVQVAEConfig:
//
//	model:
//	  spatial_dims: 3
//	  num_levels: 2
//	  downsample_parameters: [[2, 4, 1, 1], [2, 4, 1, 1]]
//	  upsample_parameters: [[2, 4, 1, 1, 0], [2, 4, 1, 1, 0]]
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chadHGY/GenerativeModels/backend/cpu"
	"github.com/chadHGY/GenerativeModels/nets"
)

// Config is the top-level configuration file layout.
type Config struct {
	Model   nets.VQVAEConfig `yaml:"model"`
	Threads int              `yaml:"threads,omitempty"` // CPU backend workers, 0 = all cores
	Seed    int64            `yaml:"seed,omitempty"`    // weight init seed, 0 = nondeterministic
}

// Backend creates a CPU backend honoring the Threads setting.
func (c Config) Backend() *cpu.Backend {
	if c.Threads > 0 {
		return cpu.NewWithWorkers(c.Threads)
	}
	return cpu.New()
}

// Default returns a configuration with the standard model architecture.
func Default() Config {
	return Config{
		Model: nets.DefaultVQVAEConfig(),
	}
}

// Parse decodes a YAML document over the defaults and validates it.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Model.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (Config, error) {
	//nolint:gosec // G304: the caller picks the config path
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Copyright 2026 The lognode Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the node's immutable runtime configuration.
//
// Handlers never read flags or globals; the configuration is resolved once
// at startup and injected.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration, fixed at startup.
type Config struct {
	// HTTPEndpoint is the address the public API listens on.
	HTTPEndpoint string `yaml:"http_endpoint"`
	// MetricsEndpoint is the address the metrics server listens on. An
	// empty value serves metrics on HTTPEndpoint.
	MetricsEndpoint string `yaml:"metrics_endpoint"`
	// PeerURL is the base URL requests are proxied to while this node
	// is stale.
	PeerURL string `yaml:"peer_url"`
	// RootsPEMFile names the PEM bundle of accepted trust anchors.
	RootsPEMFile string `yaml:"roots_pem_file"`
	// SignedDataKeysPEMFile names a PEM bundle of public keys for
	// signed-data submissions. The lognode binary does not read this
	// file; keys are registered with trust.Checker.AddSignedDataKey.
	SignedDataKeysPEMFile string `yaml:"signed_data_keys_pem_file"`
	// DatabasePath names the local replica database.
	DatabasePath string `yaml:"database_path"`

	// MaxLeafEntriesPerResponse caps how many entries one get-entries
	// response returns.
	MaxLeafEntriesPerResponse int64 `yaml:"max_leaf_entries_per_response"`
	// StalenessCheckDelay is the period of the staleness poll.
	StalenessCheckDelay time.Duration `yaml:"staleness_check_delay"`
	// AcceptCertificates mounts add-chain and add-pre-chain.
	AcceptCertificates bool `yaml:"accept_certificates"`
	// AcceptSignedData mounts add-signed-data.
	AcceptSignedData bool `yaml:"accept_signed_data"`

	// NumWorkers is the size of the worker pool.
	NumWorkers int `yaml:"num_workers"`
	// WorkerQueueDepth bounds jobs waiting for an executor.
	WorkerQueueDepth int `yaml:"worker_queue_depth"`
}

// Default returns the configuration used when no file or flag overrides a
// value.
func Default() Config {
	return Config{
		HTTPEndpoint:              "localhost:6962",
		MaxLeafEntriesPerResponse: 1000,
		StalenessCheckDelay:       5 * time.Second,
		AcceptCertificates:        true,
		AcceptSignedData:          false,
		NumWorkers:                16,
		WorkerQueueDepth:          256,
	}
}

// FromFile reads a YAML configuration file over the defaults.
func FromFile(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the node cannot serve with.
func (c *Config) Validate() error {
	if c.HTTPEndpoint == "" {
		return errors.New("http_endpoint must be set")
	}
	if c.MaxLeafEntriesPerResponse <= 0 {
		return fmt.Errorf("max_leaf_entries_per_response %d, want > 0", c.MaxLeafEntriesPerResponse)
	}
	if c.StalenessCheckDelay <= 0 {
		return fmt.Errorf("staleness_check_delay %v, want > 0", c.StalenessCheckDelay)
	}
	if c.NumWorkers <= 0 {
		return fmt.Errorf("num_workers %d, want > 0", c.NumWorkers)
	}
	if c.WorkerQueueDepth < 0 {
		return fmt.Errorf("worker_queue_depth %d, want >= 0", c.WorkerQueueDepth)
	}
	return nil
}

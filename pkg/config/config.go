/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultPeerNumAlgo                = 1
	// DefaultPeerNumAlgoForDIDRotation is 2 as a did:peer:1 cannot be resolved by the other party.
	DefaultPeerNumAlgoForDIDRotation  = 2
	DefaultReturnWhenConnectedTimeout = 20 * time.Second
	DefaultResolverCacheSize          = 100
)

// Connections configures the connection, did-exchange and rotation protocols of an agent.
type Connections struct {
	Label                             string        `yaml:"label"`
	Endpoints                         []string      `yaml:"endpoints"`
	PeerNumAlgoForDIDExchangeRequests int           `yaml:"peerNumAlgoForDidExchangeRequests"`
	PeerNumAlgoForDIDRotation         int           `yaml:"peerNumAlgoForDidRotation"`
	ReturnWhenConnectedTimeout        time.Duration `yaml:"returnWhenConnectedTimeout"`
	AutoAcceptConnections             bool          `yaml:"autoAcceptConnections"`
	ResolverCacheSize                 int           `yaml:"resolverCacheSize"`
}

// Storage selects the storage provider.
type Storage struct {
	// Type is "mem" or "leveldb".
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// Config of an agent.
type Config struct {
	Connections Connections `yaml:"connections"`
	Storage     Storage     `yaml:"storage"`
	LogLevel    string      `yaml:"logLevel"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Connections: Connections{
			Label:                             "aries-connections-agent",
			PeerNumAlgoForDIDExchangeRequests: DefaultPeerNumAlgo,
			PeerNumAlgoForDIDRotation:         DefaultPeerNumAlgoForDIDRotation,
			ReturnWhenConnectedTimeout:        DefaultReturnWhenConnectedTimeout,
			ResolverCacheSize:                 DefaultResolverCacheSize,
		},
		Storage:  Storage{Type: "mem"},
		LogLevel: "INFO",
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	for name, algo := range map[string]int{
		"peerNumAlgoForDidExchangeRequests": c.Connections.PeerNumAlgoForDIDExchangeRequests,
		"peerNumAlgoForDidRotation":         c.Connections.PeerNumAlgoForDIDRotation,
	} {
		if algo != 1 && algo != 2 && algo != 4 {
			return fmt.Errorf("%s must be 1, 2 or 4, got %d", name, algo)
		}
	}

	if c.Connections.ReturnWhenConnectedTimeout <= 0 {
		return fmt.Errorf("returnWhenConnectedTimeout must be positive")
	}

	switch c.Storage.Type {
	case "mem":
	case "leveldb":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for leveldb")
		}
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}

	return nil
}

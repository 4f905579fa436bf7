// Copyright 2025 The Workspaced Authors
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

// Package config loads the operator configuration from flags, WORKSPACED_*
// environment variables and an optional YAML file, in that order of precedence.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mikelane/workspaced/internal/provision"
)

// Configuration keys, shared by flags, environment variables and the config file.
const (
	KeyConfigFile         = "config"
	KeyPVCStrategy        = "pvc-strategy"
	KeyDeleteTimeout      = "async-storage-delete-timeout"
	KeyIdleTimeout        = "async-storage-idle-timeout"
	KeyCleanupInterval    = "cleanup-interval"
	KeyMetricsBindAddress = "metrics-bind-address"
	KeyProbeBindAddress   = "health-probe-bind-address"
	KeyLeaderElect        = "leader-elect"
)

const envPrefix = "WORKSPACED"

// Strategies lists the persistent volume claim strategies a workspace can use.
var Strategies = []string{provision.CommonStrategy, "per-workspace", "unique"}

// Config is the validated operator configuration.
type Config struct {
	// PVCStrategy is the persistent volume claim strategy of all workspaces
	PVCStrategy string
	// MetricsBindAddress is the metrics endpoint address, "0" disables it
	MetricsBindAddress string
	// ProbeBindAddress is the health probe endpoint address
	ProbeBindAddress string
	// DeleteTimeout bounds the wait for an async-storage pod deletion
	DeleteTimeout time.Duration
	// IdleTimeout is how long a namespace has to be idle before its
	// async-storage pod is removed
	IdleTimeout time.Duration
	// CleanupInterval is the idle sweep period, 0 disables the sweep
	CleanupInterval time.Duration
	// LeaderElect enables leader election for the manager
	LeaderElect bool
}

// BindFlags registers the operator flags on fs and binds them to v together
// with the WORKSPACED_* environment variables.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	fs.String(KeyConfigFile, "", "Path to a YAML config file")
	fs.String(KeyPVCStrategy, provision.CommonStrategy,
		fmt.Sprintf("Persistent volume claim strategy, one of %s", strings.Join(Strategies, ", ")))
	fs.Duration(KeyDeleteTimeout, provision.DefaultDeleteTimeout,
		"Maximum time to wait for the async-storage pod deletion to be confirmed")
	fs.Duration(KeyIdleTimeout, 30*time.Minute,
		"Idle time after which the async-storage pod of a namespace without running workspaces is removed")
	fs.Duration(KeyCleanupInterval, 5*time.Minute,
		"Interval between idle async-storage sweeps, 0 disables the sweep")
	fs.String(KeyMetricsBindAddress, "0",
		"The address the metrics endpoint binds to. Use :8080 for HTTP, or leave as 0 to disable the metrics service.")
	fs.String(KeyProbeBindAddress, ":8081", "The address the probe endpoint binds to.")
	fs.Bool(KeyLeaderElect, false,
		"Enable leader election for controller manager. "+
			"Enabling this will ensure there is only one active controller manager.")

	if err := v.BindPFlags(fs); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return nil
}

// Load reads the configuration from v, including the config file when one is
// set, and validates it.
func Load(v *viper.Viper) (*Config, error) {
	if file := v.GetString(KeyConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		PVCStrategy:        v.GetString(KeyPVCStrategy),
		MetricsBindAddress: v.GetString(KeyMetricsBindAddress),
		ProbeBindAddress:   v.GetString(KeyProbeBindAddress),
		DeleteTimeout:      v.GetDuration(KeyDeleteTimeout),
		IdleTimeout:        v.GetDuration(KeyIdleTimeout),
		CleanupInterval:    v.GetDuration(KeyCleanupInterval),
		LeaderElect:        v.GetBool(KeyLeaderElect),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !slices.Contains(Strategies, c.PVCStrategy) {
		return fmt.Errorf("invalid %s %q: must be one of %s", KeyPVCStrategy, c.PVCStrategy, strings.Join(Strategies, ", "))
	}
	if c.DeleteTimeout <= 0 {
		return fmt.Errorf("invalid %s %s: must be positive", KeyDeleteTimeout, c.DeleteTimeout)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("invalid %s %s: must be positive", KeyIdleTimeout, c.IdleTimeout)
	}
	if c.CleanupInterval < 0 {
		return fmt.Errorf("invalid %s %s: must not be negative", KeyCleanupInterval, c.CleanupInterval)
	}
	return nil
}

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

// Package kubeclient builds the Kubernetes clients used by provisioning
// interceptors.
//
// Creating a clientset is comparatively expensive, so Factory builds one
// clientset from the operator's rest.Config on first use and hands the same
// instance to every workspace. Construction failures are not cached; the next
// Create call tries again.
package kubeclient

import (
	"errors"
	"fmt"
	"sync"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

const userAgent = "workspaced"

// ErrEmptyWorkspaceID is returned when a client is requested without a workspace.
var ErrEmptyWorkspaceID = errors.New("workspace id must not be empty")

// Factory hands out a shared clientset scoped to the operator's credentials.
type Factory struct {
	config       *rest.Config
	client       kubernetes.Interface
	newForConfig func(*rest.Config) (kubernetes.Interface, error)
	mu           sync.Mutex
}

// NewFactory creates a Factory for the given cluster configuration.
func NewFactory(config *rest.Config) *Factory {
	return &Factory{
		config: config,
		newForConfig: func(c *rest.Config) (kubernetes.Interface, error) {
			return kubernetes.NewForConfig(c)
		},
	}
}

// Create returns the clientset to use for workspaceID. It is safe for
// concurrent use.
func (f *Factory) Create(workspaceID string) (kubernetes.Interface, error) {
	if workspaceID == "" {
		return nil, ErrEmptyWorkspaceID
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client != nil {
		return f.client, nil
	}

	if f.config == nil {
		return nil, errors.New("no cluster configuration provided")
	}

	cfg := rest.CopyConfig(f.config)
	if cfg.UserAgent == "" {
		cfg.UserAgent = userAgent
	}

	client, err := f.newForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	f.client = client

	return client, nil
}

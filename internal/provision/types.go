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

package provision

import (
	"context"
	"time"

	"k8s.io/client-go/kubernetes"
)

// Workspace environment attribute keys read by the interceptors.
const (
	// PersistVolumesAttribute set to "false" marks an ephemeral workspace.
	// An absent attribute means volumes are persisted.
	PersistVolumesAttribute = "persistVolumes"

	// AsyncPersistAttribute set to "true" means the workspace uses the
	// async-storage pod to synchronize its data.
	AsyncPersistAttribute = "asyncPersist"
)

// CommonStrategy is the volume strategy where all workspaces of a namespace
// share a single persistent volume claim.
const CommonStrategy = "common"

// AsyncStoragePodName is the well-known name of the async-storage pod.
const AsyncStoragePodName = "async-storage"

// Environment exposes the attributes of a workspace environment.
type Environment interface {
	GetAttributes() map[string]string
}

// RuntimeIdentity identifies a workspace runtime and the namespace its pods run in.
type RuntimeIdentity interface {
	GetWorkspaceID() string
	GetInfrastructureNamespace() string
}

// Interceptor is invoked once per provisioning cycle, before workspace pods
// are created.
type Interceptor interface {
	Name() string
	Intercept(ctx context.Context, env Environment, identity RuntimeIdentity) error
}

// ClientFactory returns a Kubernetes client scoped to a workspace.
type ClientFactory interface {
	Create(workspaceID string) (kubernetes.Interface, error)
}

// Recorder receives async-storage removal outcomes and deletion latencies.
type Recorder interface {
	RecordOutcome(outcome string)
	ObserveDeletionWait(d time.Duration)
}

// Outcomes passed to Recorder.RecordOutcome, next to Decision.Outcome for
// skipped workspaces.
const (
	OutcomeAbsent  = "absent"
	OutcomeDeleted = "deleted"
	OutcomeFailed  = "failed"
)

type noopRecorder struct{}

func (noopRecorder) RecordOutcome(string) {}

func (noopRecorder) ObserveDeletionWait(time.Duration) {}

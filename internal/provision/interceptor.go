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

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// AsyncStoragePodInterceptor removes a leftover async-storage pod before a
// workspace using the common volume strategy is provisioned without
// asynchronous storage.
type AsyncStoragePodInterceptor struct {
	remover  *PodRemover
	recorder Recorder
	strategy string
}

// NewAsyncStoragePodInterceptor creates an interceptor for the given volume
// strategy. A nil recorder disables metrics.
func NewAsyncStoragePodInterceptor(strategy string, remover *PodRemover, recorder Recorder) *AsyncStoragePodInterceptor {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &AsyncStoragePodInterceptor{
		remover:  remover,
		recorder: recorder,
		strategy: strategy,
	}
}

// Name returns the interceptor name used in pipeline errors and logs.
func (i *AsyncStoragePodInterceptor) Name() string {
	return "async-storage-pod"
}

// Intercept deletes the async-storage pod of the workspace's namespace when
// Evaluate says so, and returns once the deletion is confirmed.
func (i *AsyncStoragePodInterceptor) Intercept(ctx context.Context, env Environment, identity RuntimeIdentity) error {
	decision := Evaluate(i.strategy, env.GetAttributes())
	if !decision.Proceed {
		logf.FromContext(ctx).V(1).Info("Skipping async storage cleanup", "reason", decision.Reason)
		i.recorder.RecordOutcome(decision.Outcome())
		return nil
	}

	_, err := i.remover.Remove(ctx, identity.GetWorkspaceID(), identity.GetInfrastructureNamespace())
	return err
}

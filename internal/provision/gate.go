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

// SkipReason explains why a workspace needs no async-storage cleanup.
type SkipReason string

const (
	// SkipStrategy means the volume strategy is not "common".
	SkipStrategy SkipReason = "strategy"
	// SkipEphemeral means the workspace does not persist volumes.
	SkipEphemeral SkipReason = "ephemeral"
	// SkipAsyncPersist means the workspace wants the async-storage pod.
	SkipAsyncPersist SkipReason = "async_persist"
)

// Decision is the outcome of Evaluate. Reason is empty when Proceed is true.
type Decision struct {
	Reason  SkipReason
	Proceed bool
}

// Outcome returns the metrics outcome label for a skipped decision.
func (d Decision) Outcome() string {
	if d.Proceed {
		return ""
	}
	return "skipped_" + string(d.Reason)
}

// Evaluate decides whether the async-storage pod has to be removed for a
// workspace. Conditions are checked in order and the first match wins.
func Evaluate(strategy string, attributes map[string]string) Decision {
	if strategy != CommonStrategy {
		return Decision{Reason: SkipStrategy}
	}

	// Absent means persistent; only an explicit "false" is ephemeral
	if attributes[PersistVolumesAttribute] == "false" {
		return Decision{Reason: SkipEphemeral}
	}

	if attributes[AsyncPersistAttribute] == "true" {
		return Decision{Reason: SkipAsyncPersist}
	}

	return Decision{Proceed: true}
}

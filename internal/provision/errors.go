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

import "fmt"

// InfrastructureError reports a cluster-side failure while removing a pod:
// the client could not be built, an API call failed, or the deletion could
// not be confirmed in time.
type InfrastructureError struct {
	Err       error
	Op        string
	Namespace string
	Name      string
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("failed to %s pod %s/%s: %v", e.Op, e.Namespace, e.Name, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

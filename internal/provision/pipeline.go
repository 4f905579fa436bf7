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
	"fmt"
)

// Pipeline runs interceptors in order, stopping at the first failure.
type Pipeline struct {
	interceptors []Interceptor
}

// NewPipeline creates a pipeline running the given interceptors in order.
func NewPipeline(interceptors ...Interceptor) *Pipeline {
	return &Pipeline{interceptors: interceptors}
}

// Run invokes every interceptor for the workspace. It returns the first error,
// wrapped with the failing interceptor's name.
func (p *Pipeline) Run(ctx context.Context, env Environment, identity RuntimeIdentity) error {
	for _, interceptor := range p.interceptors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := interceptor.Intercept(ctx, env, identity); err != nil {
			return fmt.Errorf("interceptor %s failed: %w", interceptor.Name(), err)
		}
	}
	return nil
}

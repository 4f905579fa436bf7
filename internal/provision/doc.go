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

// Package provision implements the interceptors that run before workspace pods
// are submitted to the cluster.
//
// The package provides a Pipeline that invokes an ordered list of Interceptors
// once per workspace provisioning cycle, and the AsyncStoragePodInterceptor,
// which keeps the shared "common" volume strategy consistent:
//
//   - When the interceptor is configured with the "common" strategy
//   - and the workspace persists its volumes (the "persistVolumes" attribute
//     is absent or anything other than "false")
//   - and the workspace did not opt into asynchronous storage (the
//     "asyncPersist" attribute is not "true")
//
// any leftover "async-storage" pod in the workspace's infrastructure namespace
// is deleted before the workspace's own pods are created.
//
// # Decision Gate
//
// Evaluate is a pure function over the configured strategy and the workspace
// attributes. It returns a Decision that either proceeds or carries the reason
// the workspace was skipped. Skipped workspaces cause no cluster calls at all.
//
// # Synchronous Deletion
//
// PodRemover deletes the async-storage pod and blocks until the cluster
// confirms the deletion:
//
//  1. Get the pod; if it does not exist, return immediately
//  2. Open a watch on that pod name, starting at the observed resource version
//  3. Delete the pod with background propagation
//  4. Wait for the DELETED event, bounded by the configured timeout
//
// The watch is opened before the delete is issued so the DELETED event cannot
// be missed, and it is stopped on every return path.
//
// # Usage Example
//
//	remover := provision.NewPodRemover(clientFactory, 2*time.Minute, nil)
//	interceptor := provision.NewAsyncStoragePodInterceptor("common", remover, nil)
//	pipeline := provision.NewPipeline(interceptor)
//
//	if err := pipeline.Run(ctx, workspaceRuntime, workspaceRuntime); err != nil {
//	    return err
//	}
package provision

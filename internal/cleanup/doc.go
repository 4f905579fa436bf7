/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package cleanup provides the idle sweep of async-storage pods.
//
// Under the common PVC strategy the async-storage pod of a namespace outlives
// the workspaces that used it. This package implements a background scheduler
// that periodically looks for infrastructure namespaces whose WorkspaceRuntimes
// are all stopped, and removes their async-storage pod once the most recent
// stop is older than the idle timeout.
//
// Key features:
//   - Periodic sweep based on configurable interval (default: 5 minutes)
//   - Configurable idle timeout (default: 30 minutes)
//   - Only active under the common PVC strategy
//   - Uses the same synchronous remover as the provisioning interceptor, so a
//     sweep returns only after each deletion is confirmed
//   - Runs on the elected leader only
//   - Graceful shutdown via context cancellation
//
// A namespace stays active while any of its runtimes is running, or is stopped
// but not yet marked as such by the WorkspaceRuntime reconciler.
//
// Example usage:
//
//	scheduler := cleanup.NewScheduler(
//		mgr.GetClient(),
//		remover,
//		provision.CommonStrategy,
//		5*time.Minute,  // sweep every 5 minutes
//		30*time.Minute, // remove after 30 idle minutes
//		ctrl.Log,
//	)
//	if err := mgr.Add(scheduler); err != nil {
//		return err
//	}
package cleanup

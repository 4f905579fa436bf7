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

package cleanup

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	workspacev1alpha1 "github.com/mikelane/workspaced/api/v1alpha1"
	"github.com/mikelane/workspaced/internal/provision"
)

// Remover deletes the async-storage pod of a namespace.
type Remover interface {
	Remove(ctx context.Context, workspaceID, namespace string) (bool, error)
}

// Scheduler periodically removes the async-storage pod of namespaces that no
// longer host a running workspace.
type Scheduler struct {
	client      client.Reader
	remover     Remover
	log         logr.Logger
	now         func() time.Time
	strategy    string
	interval    time.Duration
	idleTimeout time.Duration
}

// NewScheduler creates a new idle sweep scheduler.
//
// Parameters:
//   - k8sClient: client used to list WorkspaceRuntimes
//   - remover: removes the async-storage pod of an idle namespace
//   - strategy: PVC strategy of the workspaces, only "common" is swept
//   - interval: duration between sweeps, a non-positive interval disables them
//   - idleTimeout: how long every runtime of a namespace must have been
//     stopped before its async-storage pod is removed
//   - logger: logger for sweep results
func NewScheduler(
	k8sClient client.Reader,
	remover Remover,
	strategy string,
	interval, idleTimeout time.Duration,
	logger logr.Logger,
) *Scheduler {
	return &Scheduler{
		client:      k8sClient,
		remover:     remover,
		log:         logger.WithName("async-storage-sweep"),
		now:         time.Now,
		strategy:    strategy,
		interval:    interval,
		idleTimeout: idleTimeout,
	}
}

// Start runs a sweep every interval until the context is canceled.
// Failed sweeps are logged and retried on the next tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 || s.strategy != provision.CommonStrategy {
		s.log.Info("Idle sweep disabled", "interval", s.interval, "strategy", s.strategy)
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Starting idle sweep", "interval", s.interval, "idleTimeout", s.idleTimeout)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.log.Error(err, "Idle sweep failed")
			}
		}
	}
}

// NeedLeaderElection makes only the elected manager sweep.
func (s *Scheduler) NeedLeaderElection() bool {
	return true
}

// idleNamespace is the most recently stopped runtime of a namespace whose
// runtimes are all stopped.
type idleNamespace struct {
	workspaceID string
	stoppedAt   time.Time
	active      bool
}

// sweep performs a single pass. Only the common strategy leaves an
// async-storage pod behind, other strategies are never swept. A namespace is idle when every runtime in it
// is stopped and the most recent stop is older than the idle timeout. Runtimes
// not yet marked stopped by the reconciler keep their namespace active.
func (s *Scheduler) sweep(ctx context.Context) error {
	if s.strategy != provision.CommonStrategy {
		return nil
	}

	var runtimes workspacev1alpha1.WorkspaceRuntimeList
	if err := s.client.List(ctx, &runtimes); err != nil {
		return fmt.Errorf("failed to list workspace runtimes: %w", err)
	}

	namespaces := make(map[string]*idleNamespace)
	for i := range runtimes.Items {
		wsr := &runtimes.Items[i]
		ns := wsr.GetInfrastructureNamespace()

		idle, ok := namespaces[ns]
		if !ok {
			idle = &idleNamespace{}
			namespaces[ns] = idle
		}

		if !wsr.Spec.Stopped || wsr.Status.StoppedAt == nil {
			idle.active = true
			continue
		}
		if stoppedAt := wsr.Status.StoppedAt.Time; stoppedAt.After(idle.stoppedAt) {
			idle.stoppedAt = stoppedAt
			idle.workspaceID = wsr.GetWorkspaceID()
		}
	}

	ctx = logf.IntoContext(ctx, s.log)
	now := s.now()

	var errs []error
	for _, ns := range slices.Sorted(maps.Keys(namespaces)) {
		idle := namespaces[ns]
		if idle.active || now.Sub(idle.stoppedAt) < s.idleTimeout {
			continue
		}

		removed, err := s.remover.Remove(ctx, idle.workspaceID, ns)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if removed {
			s.log.Info("Removed idle async storage pod", "namespace", ns, "idleSince", idle.stoppedAt)
		}
	}

	return errors.Join(errs...)
}

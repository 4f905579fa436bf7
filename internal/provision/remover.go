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
	"errors"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
	corev1client "k8s.io/client-go/kubernetes/typed/core/v1"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// DefaultDeleteTimeout bounds the wait for a deletion to be confirmed when no
// positive timeout is configured.
const DefaultDeleteTimeout = 2 * time.Minute

// defaultReopenDelay paces watch reopens while a pod is still terminating.
const defaultReopenDelay = time.Second

var errWatchClosed = errors.New("watch closed before deletion was confirmed")

// PodRemover deletes the async-storage pod of a namespace and waits until the
// deletion has taken effect.
type PodRemover struct {
	clients     ClientFactory
	recorder    Recorder
	timeout     time.Duration
	reopenDelay time.Duration
}

// NewPodRemover creates a PodRemover. A non-positive timeout falls back to
// DefaultDeleteTimeout; a nil recorder disables metrics.
func NewPodRemover(clients ClientFactory, timeout time.Duration, recorder Recorder) *PodRemover {
	if timeout <= 0 {
		timeout = DefaultDeleteTimeout
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &PodRemover{
		clients:     clients,
		recorder:    recorder,
		timeout:     timeout,
		reopenDelay: defaultReopenDelay,
	}
}

// Timeout returns the bound applied to the deletion wait.
func (r *PodRemover) Timeout() time.Duration {
	return r.timeout
}

// Remove deletes the async-storage pod in namespace using a client scoped to
// workspaceID. It reports whether a pod was deleted. A missing pod is not an
// error. All failures are returned as *InfrastructureError.
func (r *PodRemover) Remove(ctx context.Context, workspaceID, namespace string) (bool, error) {
	log := logf.FromContext(ctx).WithValues("workspace", workspaceID, "namespace", namespace, "pod", AsyncStoragePodName)

	clientset, err := r.clients.Create(workspaceID)
	if err != nil {
		return false, r.fail("create client for", namespace, err)
	}
	pods := clientset.CoreV1().Pods(namespace)

	pod, err := pods.Get(ctx, AsyncStoragePodName, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			r.recorder.RecordOutcome(OutcomeAbsent)
			return false, nil
		}
		return false, r.fail("get", namespace, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Subscribe before deleting so the DELETED event cannot be missed
	watcher, err := r.watchPod(waitCtx, pods, pod.ResourceVersion)
	if err != nil {
		return false, r.fail("watch", namespace, err)
	}
	defer watcher.Stop()

	background := metav1.DeletePropagationBackground
	err = pods.Delete(ctx, AsyncStoragePodName, metav1.DeleteOptions{PropagationPolicy: &background})
	if err != nil && !apierrors.IsNotFound(err) {
		return false, r.fail("delete", namespace, err)
	}

	log.Info("Deleted async storage pod, waiting for confirmation", "timeout", r.timeout)

	start := time.Now()
	if err := r.waitForDeletion(waitCtx, pods, pod.UID, watcher); err != nil {
		return false, r.fail("confirm deletion of", namespace, err)
	}
	r.recorder.ObserveDeletionWait(time.Since(start))
	r.recorder.RecordOutcome(OutcomeDeleted)

	log.Info("Async storage pod deletion confirmed")
	return true, nil
}

func (r *PodRemover) fail(op, namespace string, err error) error {
	r.recorder.RecordOutcome(OutcomeFailed)
	return &InfrastructureError{
		Err:       err,
		Op:        op,
		Namespace: namespace,
		Name:      AsyncStoragePodName,
	}
}

func (r *PodRemover) watchPod(ctx context.Context, pods corev1client.PodInterface, resourceVersion string) (watch.Interface, error) {
	timeoutSeconds := int64(r.timeout.Seconds()) + 1
	return pods.Watch(ctx, metav1.ListOptions{
		FieldSelector:   fields.OneTermEqualSelector("metadata.name", AsyncStoragePodName).String(),
		ResourceVersion: resourceVersion,
		TimeoutSeconds:  &timeoutSeconds,
	})
}

// waitForDeletion blocks until the pod with the given UID is reported deleted,
// the watch fails, or ctx is done. A watch that closes early is settled with a
// Get; a pod that is still terminating is watched again from its latest
// resource version. Every watcher it opens is stopped before it returns.
func (r *PodRemover) waitForDeletion(ctx context.Context, pods corev1client.PodInterface, uid types.UID, watcher watch.Interface) error {
	defer func() { watcher.Stop() }()

	for {
		err := consumeEvents(ctx, uid, watcher.ResultChan())
		if !errors.Is(err, errWatchClosed) {
			return err
		}
		watcher.Stop()

		pod, err := pods.Get(ctx, AsyncStoragePodName, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if pod.UID != uid {
			return nil
		}

		logf.FromContext(ctx).V(1).Info("Watch closed while pod is terminating, watching again",
			"resourceVersion", pod.ResourceVersion)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.reopenDelay):
		}

		next, err := r.watchPod(ctx, pods, pod.ResourceVersion)
		if err != nil {
			return err
		}
		watcher = next
	}
}

// consumeEvents reads events until the pod with the given UID is deleted, the
// watch reports an error, the channel closes (errWatchClosed), or ctx is done.
func consumeEvents(ctx context.Context, uid types.UID, events <-chan watch.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return errWatchClosed
			}

			switch event.Type {
			case watch.Deleted:
				// A recreated pod with the same name is not ours
				if pod, ok := event.Object.(*corev1.Pod); ok && pod.UID != uid {
					continue
				}
				return nil
			case watch.Error:
				return apierrors.FromObject(event.Object)
			}
		}
	}
}

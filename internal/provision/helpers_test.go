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
	"sync"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

const (
	testWorkspaceID = "workspace7f3c2a"
	testNamespace   = "user-che"
)

// fakeFactory records every Create call.
type fakeFactory struct {
	client kubernetes.Interface
	err    error
	calls  []string
}

func (f *fakeFactory) Create(workspaceID string) (kubernetes.Interface, error) {
	f.calls = append(f.calls, workspaceID)
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

// fakeIdentity counts accessor calls.
type fakeIdentity struct {
	workspaceID string
	namespace   string
	calls       int
}

func (f *fakeIdentity) GetWorkspaceID() string {
	f.calls++
	return f.workspaceID
}

func (f *fakeIdentity) GetInfrastructureNamespace() string {
	f.calls++
	return f.namespace
}

type fakeEnvironment map[string]string

func (e fakeEnvironment) GetAttributes() map[string]string {
	return e
}

// fakeRecorder collects outcomes.
type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []string
	waits    int
}

func (r *fakeRecorder) RecordOutcome(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *fakeRecorder) ObserveDeletionWait(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits++
}

func newAsyncStoragePod(namespace string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      AsyncStoragePodName,
			Namespace: namespace,
			UID:       "async-storage-uid",
		},
	}
}

// watchOnDelete makes the clientset hand out a controllable watcher and emits
// the given events on it when the pod is deleted. The tracker still performs
// the deletion.
func watchOnDelete(cs *fake.Clientset, events ...watch.Event) *watch.FakeWatcher {
	fw := watch.NewFakeWithChanSize(len(events)+1, false)
	cs.PrependWatchReactor("pods", func(k8stesting.Action) (bool, watch.Interface, error) {
		return true, fw, nil
	})
	cs.PrependReactor("delete", "pods", func(k8stesting.Action) (bool, runtime.Object, error) {
		for _, event := range events {
			fw.Action(event.Type, event.Object)
		}
		return false, nil, nil
	})
	return fw
}

func verbs(cs *fake.Clientset) []string {
	var out []string
	for _, action := range cs.Actions() {
		out = append(out, action.GetVerb())
	}
	return out
}

func assertVerbs(t *testing.T, cs *fake.Clientset, want ...string) {
	t.Helper()
	got := verbs(cs)
	if len(got) != len(want) {
		t.Fatalf("client actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("client actions = %v, want %v", got, want)
		}
	}
}

// deletePropagation returns the propagation policy of the first delete action.
func deletePropagation(t *testing.T, cs *fake.Clientset) metav1.DeletionPropagation {
	t.Helper()
	for _, action := range cs.Actions() {
		if deleteAction, ok := action.(k8stesting.DeleteAction); ok {
			policy := deleteAction.GetDeleteOptions().PropagationPolicy
			if policy == nil {
				t.Fatal("delete issued without a propagation policy")
			}
			return *policy
		}
	}
	t.Fatal("no delete action recorded")
	return ""
}

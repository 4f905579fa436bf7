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

package controller

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8sruntime "k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	kubefake "k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	workspacev1alpha1 "github.com/mikelane/workspaced/api/v1alpha1"
	"github.com/mikelane/workspaced/internal/provision"
)

// clientsetFactory hands the same clientset to every workspace.
type clientsetFactory struct {
	clientset kubernetes.Interface
}

func (f clientsetFactory) Create(string) (kubernetes.Interface, error) {
	return f.clientset, nil
}

func asyncStoragePod(namespace string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      provision.AsyncStoragePodName,
			Namespace: namespace,
			UID:       "async-storage-uid",
		},
	}
}

// confirmDeletes makes every pod deletion emit a DELETED event on the
// returned watcher.
func confirmDeletes(cs *kubefake.Clientset, pod *corev1.Pod) *watch.FakeWatcher {
	fw := watch.NewFakeWithChanSize(1, false)
	cs.PrependWatchReactor("pods", func(k8stesting.Action) (bool, watch.Interface, error) {
		return true, fw, nil
	})
	cs.PrependReactor("delete", "pods", func(k8stesting.Action) (bool, k8sruntime.Object, error) {
		fw.Delete(pod)
		return false, nil, nil
	})
	return fw
}

func actionVerbs(cs *kubefake.Clientset) []string {
	var out []string
	for _, action := range cs.Actions() {
		out = append(out, action.GetVerb())
	}
	return out
}

var _ = Describe("WorkspaceRuntime Controller", func() {
	const (
		resourceName = "test-workspace"
		namespace    = "user-che"
	)

	ctx := context.Background()

	typeNamespacedName := types.NamespacedName{
		Name:      resourceName,
		Namespace: namespace,
	}

	var (
		workspaceRuntime *workspacev1alpha1.WorkspaceRuntime
		clientset        *kubefake.Clientset
	)

	newReconciler := func(strategy string, timeout time.Duration) *WorkspaceRuntimeReconciler {
		remover := provision.NewPodRemover(clientsetFactory{clientset: clientset}, timeout, nil)
		return &WorkspaceRuntimeReconciler{
			Client:      k8sClient,
			Scheme:      k8sClient.Scheme(),
			Provisioner: provision.NewPipeline(provision.NewAsyncStoragePodInterceptor(strategy, remover, nil)),
		}
	}

	fetch := func() *workspacev1alpha1.WorkspaceRuntime {
		updated := &workspacev1alpha1.WorkspaceRuntime{}
		Expect(k8sClient.Get(ctx, typeNamespacedName, updated)).To(Succeed())
		return updated
	}

	BeforeEach(func() {
		clientset = kubefake.NewClientset()

		By("creating the custom resource for the Kind WorkspaceRuntime")
		workspaceRuntime = &workspacev1alpha1.WorkspaceRuntime{
			ObjectMeta: metav1.ObjectMeta{
				Name:       resourceName,
				Namespace:  namespace,
				Generation: 1,
			},
			Spec: workspacev1alpha1.WorkspaceRuntimeSpec{
				WorkspaceID: "workspace7f3c2a",
			},
		}
	})

	JustBeforeEach(func() {
		Expect(k8sClient.Create(ctx, workspaceRuntime)).To(Succeed())
	})

	AfterEach(func() {
		resource := &workspacev1alpha1.WorkspaceRuntime{}
		err := k8sClient.Get(ctx, typeNamespacedName, resource)
		if err == nil {
			By("Cleanup the specific resource instance WorkspaceRuntime")
			Expect(k8sClient.Delete(ctx, resource)).To(Succeed())
		} else {
			Expect(apierrors.IsNotFound(err)).To(BeTrue())
		}
	})

	Describe("Scenario: common strategy without an async-storage pod", func() {
		It("only looks the pod up and marks the runtime Running", func() {
			_, err := newReconciler(provision.CommonStrategy, time.Second).Reconcile(ctx, reconcile.Request{
				NamespacedName: typeNamespacedName,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(actionVerbs(clientset)).To(Equal([]string{"get"}))

			updated := fetch()
			Expect(updated.Status.Phase).To(Equal(workspacev1alpha1.PhaseRunning))
			Expect(updated.Status.ObservedGeneration).To(Equal(updated.Generation))
			Expect(meta.IsStatusConditionTrue(updated.Status.Conditions, workspacev1alpha1.ConditionStorageReady)).To(BeTrue())
		})
	})

	Describe("Scenario: common strategy with a leftover async-storage pod", func() {
		var watcher *watch.FakeWatcher

		BeforeEach(func() {
			pod := asyncStoragePod(namespace)
			clientset = kubefake.NewClientset(pod)
			watcher = confirmDeletes(clientset, pod)
		})

		It("deletes the pod and waits for the deletion before marking the runtime Running", func() {
			_, err := newReconciler(provision.CommonStrategy, time.Second).Reconcile(ctx, reconcile.Request{
				NamespacedName: typeNamespacedName,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(actionVerbs(clientset)).To(Equal([]string{"get", "watch", "delete"}))
			Expect(watcher.IsStopped()).To(BeTrue())

			_, err = clientset.CoreV1().Pods(namespace).Get(ctx, provision.AsyncStoragePodName, metav1.GetOptions{})
			Expect(apierrors.IsNotFound(err)).To(BeTrue())

			Expect(fetch().Status.Phase).To(Equal(workspacev1alpha1.PhaseRunning))
		})

		It("does not touch the pod again once the runtime is Running", func() {
			reconciler := newReconciler(provision.CommonStrategy, time.Second)
			req := reconcile.Request{NamespacedName: typeNamespacedName}

			_, err := reconciler.Reconcile(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			_, err = reconciler.Reconcile(ctx, req)
			Expect(err).NotTo(HaveOccurred())

			Expect(actionVerbs(clientset)).To(Equal([]string{"get", "watch", "delete"}))
		})
	})

	Describe("Scenario: workspace configured for asynchronous persistence", func() {
		BeforeEach(func() {
			clientset = kubefake.NewClientset(asyncStoragePod(namespace))
			workspaceRuntime.Spec.Attributes = map[string]string{provision.AsyncPersistAttribute: "true"}
		})

		It("keeps the async-storage pod", func() {
			_, err := newReconciler(provision.CommonStrategy, time.Second).Reconcile(ctx, reconcile.Request{
				NamespacedName: typeNamespacedName,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(clientset.Actions()).To(BeEmpty())
			Expect(fetch().Status.Phase).To(Equal(workspacev1alpha1.PhaseRunning))
		})
	})

	Describe("Scenario: per-workspace strategy", func() {
		BeforeEach(func() {
			clientset = kubefake.NewClientset(asyncStoragePod(namespace))
		})

		It("makes no pod calls", func() {
			_, err := newReconciler("per-workspace", time.Second).Reconcile(ctx, reconcile.Request{
				NamespacedName: typeNamespacedName,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(clientset.Actions()).To(BeEmpty())
		})
	})

	Describe("Scenario: deletion is never confirmed", func() {
		var watcher *watch.FakeWatcher

		BeforeEach(func() {
			clientset = kubefake.NewClientset(asyncStoragePod(namespace))
			watcher = watch.NewFake()
			clientset.PrependWatchReactor("pods", func(k8stesting.Action) (bool, watch.Interface, error) {
				return true, watcher, nil
			})
		})

		It("marks the runtime Failed and returns the infrastructure error", func() {
			_, err := newReconciler(provision.CommonStrategy, 50*time.Millisecond).Reconcile(ctx, reconcile.Request{
				NamespacedName: typeNamespacedName,
			})
			Expect(err).To(HaveOccurred())

			var infraErr *provision.InfrastructureError
			Expect(errors.As(err, &infraErr)).To(BeTrue())
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
			Expect(watcher.IsStopped()).To(BeTrue())

			updated := fetch()
			Expect(updated.Status.Phase).To(Equal(workspacev1alpha1.PhaseFailed))
			condition := meta.FindStatusCondition(updated.Status.Conditions, workspacev1alpha1.ConditionStorageReady)
			Expect(condition).NotTo(BeNil())
			Expect(condition.Status).To(Equal(metav1.ConditionFalse))
			Expect(condition.Reason).To(Equal("InterceptorFailed"))
		})
	})

	Describe("Scenario: stopped runtime", func() {
		BeforeEach(func() {
			clientset = kubefake.NewClientset(asyncStoragePod(namespace))
			workspaceRuntime.Spec.Stopped = true
		})

		It("marks the runtime Stopped without provisioning", func() {
			beforeReconcile := time.Now()
			_, err := newReconciler(provision.CommonStrategy, time.Second).Reconcile(ctx, reconcile.Request{
				NamespacedName: typeNamespacedName,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(clientset.Actions()).To(BeEmpty())

			updated := fetch()
			Expect(updated.Status.Phase).To(Equal(workspacev1alpha1.PhaseStopped))
			Expect(updated.Status.StoppedAt).NotTo(BeNil())
			Expect(updated.Status.StoppedAt.Time).To(BeTemporally(">=", beforeReconcile.Truncate(time.Second)))
		})
	})
})

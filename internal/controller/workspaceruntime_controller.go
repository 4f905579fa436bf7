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

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	workspacev1alpha1 "github.com/mikelane/workspaced/api/v1alpha1"
	"github.com/mikelane/workspaced/internal/provision"
)

// Provisioner runs the provisioning interceptors for a workspace runtime.
type Provisioner interface {
	Run(ctx context.Context, env provision.Environment, identity provision.RuntimeIdentity) error
}

// WorkspaceRuntimeReconciler reconciles a WorkspaceRuntime object
type WorkspaceRuntimeReconciler struct {
	client.Client
	Scheme      *runtime.Scheme
	Provisioner Provisioner
}

// +kubebuilder:rbac:groups=workspace.workspaced.io,resources=workspaceruntimes,verbs=get;list;watch;update;patch
// +kubebuilder:rbac:groups=workspace.workspaced.io,resources=workspaceruntimes/status,verbs=get;update;patch
// +kubebuilder:rbac:groups="",resources=pods,verbs=get;list;watch;delete

// Reconcile runs the provisioning interceptors once per spec generation and
// reports the result in the WorkspaceRuntime status. A stopped runtime is
// only marked as such; its async-storage pod is left to the idle sweep.
//
// For more details, check Reconcile and its Result here:
// - https://pkg.go.dev/sigs.k8s.io/controller-runtime@v0.22.4/pkg/reconcile
func (r *WorkspaceRuntimeReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	log := logf.FromContext(ctx)

	var wsr workspacev1alpha1.WorkspaceRuntime
	if err := r.Get(ctx, req.NamespacedName, &wsr); err != nil {
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}

	if wsr.Spec.Stopped {
		return ctrl.Result{}, r.markStopped(ctx, &wsr)
	}

	if wsr.Status.Phase == workspacev1alpha1.PhaseRunning &&
		wsr.Status.ObservedGeneration == wsr.Generation {
		return ctrl.Result{}, nil
	}

	wsr.Status.Phase = workspacev1alpha1.PhaseProvisioning
	wsr.Status.StoppedAt = nil
	if err := r.Status().Update(ctx, &wsr); err != nil {
		log.Error(err, "Failed to update workspace runtime status")
		return ctrl.Result{}, err
	}

	if err := r.Provisioner.Run(ctx, &wsr, &wsr); err != nil {
		log.Error(err, "Provisioning failed", "workspace", wsr.GetWorkspaceID())

		wsr.Status.Phase = workspacev1alpha1.PhaseFailed
		meta.SetStatusCondition(&wsr.Status.Conditions, metav1.Condition{
			Type:               workspacev1alpha1.ConditionStorageReady,
			Status:             metav1.ConditionFalse,
			ObservedGeneration: wsr.Generation,
			Reason:             "InterceptorFailed",
			Message:            err.Error(),
		})
		if updateErr := r.Status().Update(ctx, &wsr); updateErr != nil {
			log.Error(updateErr, "Failed to update workspace runtime status")
		}
		return ctrl.Result{}, err
	}

	now := metav1.Now()
	wsr.Status.Phase = workspacev1alpha1.PhaseRunning
	wsr.Status.ProvisionedAt = &now
	wsr.Status.ObservedGeneration = wsr.Generation
	meta.SetStatusCondition(&wsr.Status.Conditions, metav1.Condition{
		Type:               workspacev1alpha1.ConditionStorageReady,
		Status:             metav1.ConditionTrue,
		ObservedGeneration: wsr.Generation,
		Reason:             "Provisioned",
		Message:            "Workspace storage matches the configured strategy",
	})
	if err := r.Status().Update(ctx, &wsr); err != nil {
		log.Error(err, "Failed to update workspace runtime status")
		return ctrl.Result{}, err
	}

	log.Info("Workspace runtime provisioned",
		"workspace", wsr.GetWorkspaceID(),
		"namespace", wsr.GetInfrastructureNamespace(),
		"generation", wsr.Generation)

	return ctrl.Result{}, nil
}

// markStopped records the stop time the first time a runtime is seen stopped.
func (r *WorkspaceRuntimeReconciler) markStopped(ctx context.Context, wsr *workspacev1alpha1.WorkspaceRuntime) error {
	if wsr.Status.Phase == workspacev1alpha1.PhaseStopped && wsr.Status.StoppedAt != nil {
		return nil
	}

	now := metav1.Now()
	wsr.Status.Phase = workspacev1alpha1.PhaseStopped
	wsr.Status.StoppedAt = &now
	wsr.Status.ObservedGeneration = wsr.Generation
	if err := r.Status().Update(ctx, wsr); err != nil {
		logf.FromContext(ctx).Error(err, "Failed to mark workspace runtime as stopped")
		return err
	}

	logf.FromContext(ctx).Info("Workspace runtime stopped", "workspace", wsr.GetWorkspaceID())
	return nil
}

// specChanged ignores status-only updates, including the reconciler's own
// status writes. Failed runs are retried through the rate-limited requeue.
func specChanged() predicate.Predicate {
	return predicate.GenerationChangedPredicate{}
}

// SetupWithManager sets up the controller with the Manager.
func (r *WorkspaceRuntimeReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&workspacev1alpha1.WorkspaceRuntime{}, builder.WithPredicates(specChanged())).
		Named("workspaceruntime").
		Complete(r)
}

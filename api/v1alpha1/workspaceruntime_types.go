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

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Phases reported in WorkspaceRuntimeStatus.Phase.
const (
	PhasePending      = "Pending"
	PhaseProvisioning = "Provisioning"
	PhaseRunning      = "Running"
	PhaseStopped      = "Stopped"
	PhaseFailed       = "Failed"
)

// ConditionStorageReady is set once the provisioning interceptors have
// reconciled the workspace's storage against the configured strategy.
const ConditionStorageReady = "StorageReady"

// WorkspaceRuntimeSpec defines the desired state of WorkspaceRuntime
type WorkspaceRuntimeSpec struct {
	// WorkspaceID identifies the workspace this runtime belongs to
	// +kubebuilder:validation:MinLength=1
	WorkspaceID string `json:"workspaceID"`

	// InfrastructureNamespace is the namespace the workspace pods run in.
	// Defaults to the namespace of the WorkspaceRuntime itself.
	// +optional
	InfrastructureNamespace string `json:"infrastructureNamespace,omitempty"`

	// Attributes is the workspace environment attribute mapping, e.g.
	// "persistVolumes" and "asyncPersist"
	// +optional
	Attributes map[string]string `json:"attributes,omitempty"`

	// Stopped marks the runtime as stopped; no pods are provisioned for it
	// +optional
	Stopped bool `json:"stopped,omitempty"`
}

// WorkspaceRuntimeStatus defines the observed state of WorkspaceRuntime.
type WorkspaceRuntimeStatus struct {
	// ProvisionedAt is the timestamp of the last successful provisioning pass
	// +optional
	ProvisionedAt *metav1.Time `json:"provisionedAt,omitempty"`

	// StoppedAt is the timestamp when the runtime was observed as stopped
	// +optional
	StoppedAt *metav1.Time `json:"stoppedAt,omitempty"`

	// Phase represents the current phase of the workspace runtime
	// Valid values: Pending, Provisioning, Running, Stopped, Failed
	// +kubebuilder:validation:Enum=Pending;Provisioning;Running;Stopped;Failed
	// +optional
	Phase string `json:"phase,omitempty"`

	// conditions represent the current state of the WorkspaceRuntime resource.
	// +listType=map
	// +listMapKey=type
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`

	// ObservedGeneration reflects the generation of the most recently provisioned spec
	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Workspace",type="string",JSONPath=".spec.workspaceID",description="Workspace ID"
// +kubebuilder:printcolumn:name="Phase",type="string",JSONPath=".status.phase",description="Current Phase"
// +kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp",description="Creation Time"
// +kubebuilder:resource:shortName=wsr

// WorkspaceRuntime is the Schema for the workspaceruntimes API
type WorkspaceRuntime struct {
	metav1.TypeMeta `json:",inline"`

	// metadata is a standard object metadata
	// +optional
	metav1.ObjectMeta `json:"metadata,omitempty,omitzero"`

	// status defines the observed state of WorkspaceRuntime
	// +optional
	Status WorkspaceRuntimeStatus `json:"status,omitempty,omitzero"`

	// spec defines the desired state of WorkspaceRuntime
	// +required
	Spec WorkspaceRuntimeSpec `json:"spec"`
}

// GetAttributes returns the workspace environment attributes.
func (w *WorkspaceRuntime) GetAttributes() map[string]string {
	return w.Spec.Attributes
}

// GetWorkspaceID returns the workspace identifier.
func (w *WorkspaceRuntime) GetWorkspaceID() string {
	return w.Spec.WorkspaceID
}

// GetInfrastructureNamespace returns the namespace workspace pods live in.
func (w *WorkspaceRuntime) GetInfrastructureNamespace() string {
	if w.Spec.InfrastructureNamespace != "" {
		return w.Spec.InfrastructureNamespace
	}
	return w.Namespace
}

// +kubebuilder:object:root=true

// WorkspaceRuntimeList contains a list of WorkspaceRuntime
type WorkspaceRuntimeList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []WorkspaceRuntime `json:"items"`
}

func init() {
	SchemeBuilder.Register(&WorkspaceRuntime{}, &WorkspaceRuntimeList{})
}

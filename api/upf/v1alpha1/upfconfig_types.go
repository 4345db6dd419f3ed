package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// UPFConfigPhase describes the lifecycle phase of a UPFConfig.
type UPFConfigPhase string

const (
	// PhaseWaiting means the workload container is not reachable yet and the
	// reconciler is backing off until it is.
	PhaseWaiting UPFConfigPhase = "Waiting"

	// PhaseActive means all network attachments, routing rules and the UPF
	// service layer are in place.
	PhaseActive UPFConfigPhase = "Active"

	// PhaseError means the last reconciliation failed and will be retried.
	PhaseError UPFConfigPhase = "Error"
)

// NetworkInterfaceSpec describes one of the UPF network interfaces (N3, N4 or
// N6): the address the pod should own on it, the next-hop gateway and the host
// interface the macvlan attachment is created on.
type NetworkInterfaceSpec struct {
	// CIDR is the pod address on this network in CIDR notation, e.g. 192.168.250.3/29.
	// +kubebuilder:validation:MinLength=1
	CIDR string `json:"cidr"`

	// Gateway is the next-hop address for traffic leaving this network.
	// +kubebuilder:validation:MinLength=1
	Gateway string `json:"gateway"`

	// Interface is the host interface used as the macvlan master.
	// +kubebuilder:validation:MinLength=1
	Interface string `json:"interface"`
}

// UPFConfigSpec defines the desired network configuration of a free5GC UPF
// StatefulSet. The object's name must match the name of the StatefulSet it
// configures.
type UPFConfigSpec struct {
	// N3 is the user-plane network carrying GTP-U traffic from the gNodeB.
	N3 NetworkInterfaceSpec `json:"n3"`

	// N4 is the control-plane network carrying PFCP traffic from the SMF.
	N4 NetworkInterfaceSpec `json:"n4"`

	// N6 is the data network used for subscriber traffic egress.
	N6 NetworkInterfaceSpec `json:"n6"`
}

// UPFConfigStatus defines the observed state of UPFConfig.
type UPFConfigStatus struct {
	// +optional
	Phase UPFConfigPhase `json:"phase,omitempty"`

	// Message is a human-readable explanation of the current phase.
	// +optional
	Message string `json:"message,omitempty"`

	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Namespaced,shortName=upfc
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`

// UPFConfig is the Schema for the upfconfigs API.
type UPFConfig struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   UPFConfigSpec   `json:"spec,omitempty"`
	Status UPFConfigStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// UPFConfigList contains a list of UPFConfig resources.
type UPFConfigList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []UPFConfig `json:"items"`
}

func init() {
	SchemeBuilder.Register(&UPFConfig{}, &UPFConfigList{})
}

// Package netattach renders the Multus artifacts attaching the UPF pod to its
// N3, N4 and N6 networks: three NetworkAttachmentDefinition resources carrying
// a macvlan+tuning CNI plugin chain, and the pod-template annotation selecting
// them.
package netattach

import (
	"encoding/json"
	"fmt"

	nadv1 "github.com/k8snetworkplumbingwg/network-attachment-definition-client/pkg/apis/k8s.cni.cncf.io/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	upfv1alpha1 "github.com/telcoops/free5gc-upf-operator/api/upf/v1alpha1"
)

// Fixed names of the three NetworkAttachmentDefinition resources.
const (
	N3Name = "n3network-free5gc-v1-free5gc-upf"
	N4Name = "n4network-free5gc-v1-free5gc-upf"
	N6Name = "n6network-free5gc-v1-free5gc-upf"
)

// In-pod interface names requested from Multus.
const (
	N3Interface = "n3"
	N4Interface = "n4"
	N6Interface = "n6"
)

const cniVersion = "0.3.1"

// Names lists the three NAD names in creation order.
func Names() []string {
	return []string{N3Name, N4Name, N6Name}
}

// cniConfig is the plugin-chain document embedded as spec.config.
type cniConfig struct {
	CNIVersion string `json:"cniVersion"`
	Plugins    []any  `json:"plugins"`
}

type macvlanConf struct {
	Type         string          `json:"type"`
	Capabilities map[string]bool `json:"capabilities"`
	Master       string          `json:"master"`
	Mode         string          `json:"mode"`
	IPAM         staticIPAM      `json:"ipam"`
}

type staticIPAM struct {
	Type   string        `json:"type"`
	Routes []staticRoute `json:"routes"`
}

type staticRoute struct {
	Dst string `json:"dst"`
	GW  string `json:"gw"`
}

type tuningConf struct {
	Capabilities map[string]bool `json:"capabilities"`
	Type         string          `json:"type"`
}

// Definition renders a NetworkAttachmentDefinition with a macvlan interface on
// the given master, statically addressed by Multus, defaulting routes through
// the given gateway, with the tuning plugin chained in for MAC capability.
func Definition(name, namespace string, iface upfv1alpha1.NetworkInterfaceSpec) (*nadv1.NetworkAttachmentDefinition, error) {
	chain := cniConfig{
		CNIVersion: cniVersion,
		Plugins: []any{
			macvlanConf{
				Type:         "macvlan",
				Capabilities: map[string]bool{"ips": true},
				Master:       iface.Interface,
				Mode:         "bridge",
				IPAM: staticIPAM{
					Type: "static",
					Routes: []staticRoute{
						{Dst: "0.0.0.0/0", GW: iface.Gateway},
					},
				},
			},
			tuningConf{
				Capabilities: map[string]bool{"mac": true},
				Type:         "tuning",
			},
		},
	}

	raw, err := json.Marshal(chain)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal CNI config for %s: %w", name, err)
	}

	return &nadv1.NetworkAttachmentDefinition{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		Spec: nadv1.NetworkAttachmentDefinitionSpec{
			Config: string(raw),
		},
	}, nil
}

// selectionEntry is one element of the k8s.v1.cni.cncf.io/networks annotation.
type selectionEntry struct {
	Name      string   `json:"name"`
	Interface string   `json:"interface"`
	IPs       []string `json:"ips"`
	Gateway   []string `json:"gateway"`
}

// AnnotationKey is the pod-template annotation consumed by Multus.
const AnnotationKey = nadv1.NetworkAttachmentAnnot

// AnnotationValue renders the network selection annotation for the UPF pod.
// The entry order (N3, N6, N4) matches the order the attachments are brought
// up in and must stay stable so that re-rendering is idempotent.
func AnnotationValue(spec upfv1alpha1.UPFConfigSpec) (string, error) {
	entries := []selectionEntry{
		{
			Name:      N3Name,
			Interface: N3Interface,
			IPs:       []string{spec.N3.CIDR},
			Gateway:   []string{spec.N3.Gateway},
		},
		{
			Name:      N6Name,
			Interface: N6Interface,
			IPs:       []string{spec.N6.CIDR},
			Gateway:   []string{spec.N6.Gateway},
		},
		{
			Name:      N4Name,
			Interface: N4Interface,
			IPs:       []string{spec.N4.CIDR},
			Gateway:   []string{spec.N4.Gateway},
		},
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to marshal network selection annotation: %w", err)
	}

	return string(raw), nil
}

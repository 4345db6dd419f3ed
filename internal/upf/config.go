// Package upf renders the free5gc UPF configuration document.
package upf

import (
	"fmt"
	"net"
	"strings"

	"sigs.k8s.io/yaml"

	upfv1alpha1 "github.com/telcoops/free5gc-upf-operator/api/upf/v1alpha1"
)

const (
	pfcpRetransTimeout = "1s"
	pfcpMaxRetrans     = 3
)

// Config is the top-level upfcfg.yaml document consumed by the free5gc UPF.
type Config struct {
	Version     string    `json:"version"`
	Description string    `json:"description"`
	PFCP        PFCP      `json:"pfcp"`
	GTPU        GTPU      `json:"gtpu"`
	DNNList     []DNN     `json:"dnnList"`
	Logger      LogConfig `json:"logger"`
}

// PFCP configures the N4 packet forwarding control protocol endpoint. Addr and
// NodeID both carry the N4 address; NodeID must not be 0.0.0.0.
type PFCP struct {
	Addr           string `json:"addr"`
	NodeID         string `json:"nodeID"`
	RetransTimeout string `json:"retransTimeout"`
	MaxRetrans     int    `json:"maxRetrans"`
}

// GTPU configures the N3 GTP-U endpoints.
type GTPU struct {
	Forwarder string       `json:"forwarder"`
	IfList    []GTPUServer `json:"ifList"`
}

// GTPUServer is a single GTP-U listen endpoint.
type GTPUServer struct {
	Addr string `json:"addr"`
	Type string `json:"type"`
}

// DNN describes a data network name, its UE address pool and the interface the
// pool is NATed out of.
type DNN struct {
	CIDR      string `json:"cidr"`
	DNN       string `json:"dnn"`
	NatIfName string `json:"natifname"`
}

// LogConfig configures the UPF process logger.
type LogConfig struct {
	Enable       bool   `json:"enable"`
	Level        string `json:"level"`
	ReportCaller bool   `json:"reportCaller"`
}

// RenderConfig produces the upfcfg.yaml content for the given spec. The body
// depends only on the N3 and N4 addresses, the UE pool subnet and the NAT
// interface name; the N6 address is consumed by the network attachment, never
// by the UPF config.
func RenderConfig(spec upfv1alpha1.UPFConfigSpec, uePool, natInterface string) ([]byte, error) {
	n3Addr, err := hostAddress(spec.N3.CIDR)
	if err != nil {
		return nil, fmt.Errorf("invalid n3 cidr: %w", err)
	}

	n4Addr, err := hostAddress(spec.N4.CIDR)
	if err != nil {
		return nil, fmt.Errorf("invalid n4 cidr: %w", err)
	}

	cfg := Config{
		Version:     "1.0.3",
		Description: "UPF initial local configuration",
		PFCP: PFCP{
			Addr:           n4Addr,
			NodeID:         n4Addr,
			RetransTimeout: pfcpRetransTimeout,
			MaxRetrans:     pfcpMaxRetrans,
		},
		GTPU: GTPU{
			Forwarder: "gtp5g",
			IfList: []GTPUServer{
				{Addr: n3Addr, Type: "N3"},
			},
		},
		DNNList: []DNN{
			{CIDR: uePool, DNN: "internet", NatIfName: natInterface},
		},
		Logger: LogConfig{
			Enable: true,
			Level:  "info",
		},
	}

	return yaml.Marshal(cfg)
}

// hostAddress reduces an address in CIDR notation to its bare IP.
func hostAddress(cidr string) (string, error) {
	addr := strings.SplitN(cidr, "/", 2)[0]
	if net.ParseIP(addr) == nil {
		return "", fmt.Errorf("%q is not an IP address", addr)
	}

	return addr, nil
}

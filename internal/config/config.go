// Package config carries process-level settings for the operator. The UPF
// network parameters themselves live in the UPFConfig custom resource; only
// plumbing that is fixed per operator deployment is configured here.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Settings holds environment-driven operator settings.
type Settings struct {
	// ContainerName is the name of the UPF container inside the workload pod.
	ContainerName string `envconfig:"UPF_OPERATOR_CONTAINER_NAME" default:"free5gc-upf"`

	// ConfigDir is the directory the UPF configuration file is written to.
	ConfigDir string `envconfig:"UPF_OPERATOR_CONFIG_DIR" default:"/free5gc/config"`

	// ConfigFileName is the name of the UPF configuration file.
	ConfigFileName string `envconfig:"UPF_OPERATOR_CONFIG_FILE_NAME" default:"upfcfg.yaml"`

	// RequeueInterval is how long to wait before retrying when the workload
	// container is not reachable yet.
	RequeueInterval time.Duration `envconfig:"UPF_OPERATOR_REQUEUE_INTERVAL" default:"10s"`

	// InternalSubnet is the subnet NATed and policy-routed out of the N6
	// interface.
	InternalSubnet string `envconfig:"UPF_OPERATOR_INTERNAL_SUBNET" default:"10.1.0.0/16"`

	// UESubnet is the UE address pool advertised in the UPF's dnnList. It is
	// the lower half of InternalSubnet so that routing covers it.
	UESubnet string `envconfig:"UPF_OPERATOR_UE_SUBNET" default:"10.1.0.0/17"`

	// DataInterface is the in-pod name of the N6 data-network interface.
	DataInterface string `envconfig:"UPF_OPERATOR_DATA_INTERFACE" default:"n6"`

	// RouteTable and RouteTableID identify the policy routing table used for
	// subscriber traffic.
	RouteTable   string `envconfig:"UPF_OPERATOR_ROUTE_TABLE" default:"n6if"`
	RouteTableID int    `envconfig:"UPF_OPERATOR_ROUTE_TABLE_ID" default:"1200"`
}

// ConfigPath returns the full path of the UPF configuration file.
func (s Settings) ConfigPath() string {
	return s.ConfigDir + "/" + s.ConfigFileName
}

// Load reads Settings from the environment, applying defaults for anything
// unset.
func Load() (Settings, error) {
	var settings Settings
	err := envconfig.Process("upf_operator", &settings)

	return settings, err
}

package netattach

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	upfv1alpha1 "github.com/telcoops/free5gc-upf-operator/api/upf/v1alpha1"
)

func testSpec() upfv1alpha1.UPFConfigSpec {
	return upfv1alpha1.UPFConfigSpec{
		N3: upfv1alpha1.NetworkInterfaceSpec{CIDR: "1.2.3.4/29", Gateway: "5.6.7.1", Interface: "ens3"},
		N4: upfv1alpha1.NetworkInterfaceSpec{CIDR: "1.2.3.5/29", Gateway: "5.6.7.2", Interface: "ens4"},
		N6: upfv1alpha1.NetworkInterfaceSpec{CIDR: "1.2.3.6/29", Gateway: "5.6.7.3", Interface: "ens6"},
	}
}

func TestDefinitionPluginChain(t *testing.T) {
	nad, err := Definition(N3Name, "5g-core", testSpec().N3)
	require.NoError(t, err)

	assert.Equal(t, N3Name, nad.Name)
	assert.Equal(t, "5g-core", nad.Namespace)

	var chain struct {
		CNIVersion string `json:"cniVersion"`
		Plugins    []struct {
			Type         string          `json:"type"`
			Capabilities map[string]bool `json:"capabilities"`
			Master       string          `json:"master"`
			Mode         string          `json:"mode"`
			IPAM         struct {
				Type   string `json:"type"`
				Routes []struct {
					Dst string `json:"dst"`
					GW  string `json:"gw"`
				} `json:"routes"`
			} `json:"ipam"`
		} `json:"plugins"`
	}
	require.NoError(t, json.Unmarshal([]byte(nad.Spec.Config), &chain))

	assert.Equal(t, "0.3.1", chain.CNIVersion)
	require.Len(t, chain.Plugins, 2)

	macvlan := chain.Plugins[0]
	assert.Equal(t, "macvlan", macvlan.Type)
	assert.True(t, macvlan.Capabilities["ips"])
	assert.Equal(t, "ens3", macvlan.Master)
	assert.Equal(t, "bridge", macvlan.Mode)
	assert.Equal(t, "static", macvlan.IPAM.Type)
	require.Len(t, macvlan.IPAM.Routes, 1)
	assert.Equal(t, "0.0.0.0/0", macvlan.IPAM.Routes[0].Dst)
	assert.Equal(t, "5.6.7.1", macvlan.IPAM.Routes[0].GW)

	tuning := chain.Plugins[1]
	assert.Equal(t, "tuning", tuning.Type)
	assert.True(t, tuning.Capabilities["mac"])
}

func TestAnnotationValueOrder(t *testing.T) {
	value, err := AnnotationValue(testSpec())
	require.NoError(t, err)

	var entries []struct {
		Name      string   `json:"name"`
		Interface string   `json:"interface"`
		IPs       []string `json:"ips"`
		Gateway   []string `json:"gateway"`
	}
	require.NoError(t, json.Unmarshal([]byte(value), &entries))

	require.Len(t, entries, 3)
	assert.Equal(t, N3Name, entries[0].Name)
	assert.Equal(t, N6Name, entries[1].Name)
	assert.Equal(t, N4Name, entries[2].Name)

	assert.Equal(t, "n3", entries[0].Interface)
	assert.Equal(t, []string{"1.2.3.4/29"}, entries[0].IPs)
	assert.Equal(t, []string{"5.6.7.1"}, entries[0].Gateway)

	assert.Equal(t, "n6", entries[1].Interface)
	assert.Equal(t, []string{"1.2.3.6/29"}, entries[1].IPs)
	assert.Equal(t, []string{"5.6.7.3"}, entries[1].Gateway)

	assert.Equal(t, "n4", entries[2].Interface)
	assert.Equal(t, []string{"1.2.3.5/29"}, entries[2].IPs)
	assert.Equal(t, []string{"5.6.7.2"}, entries[2].Gateway)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{N3Name, N4Name, N6Name}, Names())
}

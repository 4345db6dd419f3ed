// Package routing manages the in-container forwarding setup for subscriber
// traffic: a NAT MASQUERADE out of the data network and a policy routing table
// steering the UE pool through the N6 gateway.
package routing

import (
	"context"
	"fmt"
	"strings"

	"github.com/telcoops/free5gc-upf-operator/internal/workload"
)

// Rules describes the desired forwarding state.
type Rules struct {
	// Subnet is the UE pool whose egress is NATed and policy-routed.
	Subnet string

	// Interface is the in-pod name of the data-network interface.
	Interface string

	// Table and TableID identify the policy routing table.
	Table   string
	TableID int

	// Gateway is the data-network next hop for the default route.
	Gateway string
}

// Marker is the ip-rule substring whose presence means the rules were already
// applied. The whole sequence is treated as one unit: it is either applied
// once or not at all.
func (r Rules) Marker() string {
	return fmt.Sprintf("from %s table %s", r.Subnet, r.Table)
}

// Commands returns the command sequence establishing the forwarding state, in
// the order it must run.
func (r Rules) Commands() [][]string {
	return [][]string{
		{"iptables-legacy", "-A", "FORWARD", "-j", "ACCEPT"},
		{"iptables-legacy", "-t", "nat", "-A", "POSTROUTING", "-s", r.Subnet, "-o", r.Interface, "-j", "MASQUERADE"},
		{"sh", "-c", fmt.Sprintf("echo '%d %s' >> /etc/iproute2/rt_tables", r.TableID, r.Table)},
		{"ip", "rule", "add", "from", r.Subnet, "table", r.Table},
		{"ip", "route", "add", "default", "via", r.Gateway, "dev", r.Interface, "table", r.Table},
	}
}

// Exist probes the container for the policy rule marker. Probe failures are
// returned to the caller instead of being read as "absent", so a transient
// exec error never triggers a duplicate rule append.
func Exist(ctx context.Context, c workload.Client, ref workload.Ref, rules Rules) (bool, error) {
	out, err := c.Exec(ctx, ref, "ip", "rule", "list")
	if err != nil {
		return false, fmt.Errorf("failed to list ip rules: %w", err)
	}

	return strings.Contains(out, rules.Marker()), nil
}

// Apply runs the rule-creation sequence. It stops at the first failure; the
// next reconciliation re-probes and re-applies from scratch.
func Apply(ctx context.Context, c workload.Client, ref workload.Ref, rules Rules) error {
	for _, command := range rules.Commands() {
		if _, err := c.Exec(ctx, ref, command...); err != nil {
			return fmt.Errorf("failed to apply routing rules: %w", err)
		}
	}

	return nil
}

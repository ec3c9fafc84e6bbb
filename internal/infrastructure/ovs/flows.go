package ovs

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultFlows returns the bootstrap rules binding ARP and MAC traffic
// between the local port of a bridge and its uplink ports
func DefaultFlows(mac string, ofports []string) []string {
	local := []string{
		fmt.Sprintf("idle_timeout=0,priority=0,in_port=local,arp,dl_src=%s,actions=NORMAL", mac),
		fmt.Sprintf("idle_timeout=0,priority=0,in_port=local,dl_src=%s,actions=NORMAL", mac),
	}

	if len(ofports) == 1 {
		port := ofports[0]
		return append(local,
			fmt.Sprintf("idle_timeout=0,priority=0,in_port=%s,arp,nw_proto=2,actions=local", port),
			fmt.Sprintf("idle_timeout=0,priority=0,in_port=%s,dl_dst=%s,actions=local", port, mac),
		)
	}

	// any member of a bond may carry broadcast ARP requests for the host
	flows := local
	for _, port := range ofports {
		flows = append(flows,
			fmt.Sprintf("idle_timeout=0,priority=0,in_port=%s,arp,nw_proto=2,actions=local", port),
			fmt.Sprintf("idle_timeout=0,priority=0,in_port=%s,dl_dst=%s,actions=local", port, mac),
			fmt.Sprintf("idle_timeout=0,priority=0,in_port=%s,arp,dl_dst=ff:ff:ff:ff:ff:ff,actions=local", port),
		)
	}
	return flows
}

// AddDefaultFlows installs the bootstrap rules on a freshly created bridge.
// Each failed rule is logged and skipped.
func (s *Switch) AddDefaultFlows(ctx context.Context, bridge, mac string, ifaces []string) {
	var ofports []string
	for _, iface := range ifaces {
		output, err := s.vsctl(ctx, "get", "interface", iface, "ofport")
		if err != nil {
			s.advisory("get_ofport", iface, err)
			continue
		}
		ofports = append(ofports, strings.TrimSpace(output))
	}
	if len(ofports) == 0 {
		return
	}

	for _, flow := range DefaultFlows(mac, ofports) {
		if _, err := s.cli.Ofctl(ctx, false, "add-flow", bridge, flow); err != nil {
			s.advisory("add_flow", bridge, err)
			continue
		}
		s.logger.WithFields(logrus.Fields{"bridge": bridge, "flow": flow}).Debug("Added default flow")
	}
}

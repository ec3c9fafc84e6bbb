package ovs

import (
	"context"
	"strconv"
	"strings"
)

// GetMcastSnoopingEnable reports whether IGMP snooping is on. Any failure
// reads as off.
func (s *Switch) GetMcastSnoopingEnable(ctx context.Context, bridge string) bool {
	output, err := s.cli.Vsctl(ctx, true, "--", "get", "bridge", bridge, "mcast_snooping_enable")
	if err != nil {
		return false
	}
	enabled, err := strconv.ParseBool(strings.TrimSpace(output))
	return err == nil && enabled
}

// SetIgmpSnooping toggles IGMP snooping on a real bridge together with its
// two sub-options
func (s *Switch) SetIgmpSnooping(ctx context.Context, bridge string, enable bool) {
	_, err := s.vsctl(ctx,
		"--", "set", "bridge", bridge, "mcast_snooping_enable="+strconv.FormatBool(enable),
		"--", "set", "bridge", bridge, "other-config:enable-ipv6-mcast-snooping="+strconv.FormatBool(s.cfg.OVS.EnableIPv6McastSnooping),
		"--", "set", "bridge", bridge, "other-config:mcast-snooping-disable-flood-unregistered="+strconv.FormatBool(s.cfg.OVS.McastSnoopingDisableFloodUnregistered),
	)
	if err != nil {
		s.advisory("set_igmp_snooping", bridge, err)
	}
}

// InjectIgmpQuery asks the query helper to send a synthetic IGMP query on
// the VIFs of bridge and of its fake bridges. The helper is not waited for.
func (s *Switch) InjectIgmpQuery(ctx context.Context, bridge string) {
	args := []string{"--no-check-snooping-toggle", "--max-resp-time", s.cfg.OVS.IgmpQueryMaxRespTime}
	for _, iface := range s.BridgeToInterfaces(ctx, bridge) {
		if strings.HasPrefix(iface, "vif") {
			args = append(args, iface)
		}
	}
	args = append(args, s.GetBridgeVLANVifs(ctx, bridge)...)

	if err := s.executor.Fork(ctx, s.cfg.Tools.InjectIgmpQuery, args); err != nil {
		s.advisory("inject_igmp_query", bridge, err)
	}
}

package ovs

import (
	"context"
	"strconv"
	"strings"

	"netconfd/internal/domain/entities"
	"netconfd/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// drivers that offload VLANs but must never get the workaround
var noVLANWorkaroundDrivers = map[string]struct{}{
	"bonding": {},
}

// NeedsVLANWorkaround decides whether iface should fall back to software
// VLAN handling. An explicit override wins.
func (s *Switch) NeedsVLANWorkaround(override *bool, iface string) bool {
	if override != nil {
		return *override
	}
	if driver, ok := s.devices.GetDriverName(iface); ok {
		if _, exempt := noVLANWorkaroundDrivers[driver]; exempt {
			return false
		}
	}
	return s.devices.HasVLANAccel(iface)
}

// HandleVLANBugWorkaround runs the workaround tool on every physical
// interface of bridge
func (s *Switch) HandleVLANBugWorkaround(ctx context.Context, override *bool, bridge string) {
	for _, iface := range s.BridgeToInterfaces(ctx, bridge) {
		if !s.devices.IsPhysical(iface) {
			continue
		}
		setting := "off"
		if s.NeedsVLANWorkaround(override, iface) {
			setting = "on"
		}
		opts := interfaces.RunOptions{Timeout: s.cfg.Timeouts.Command}
		if _, err := s.executor.Run(ctx, s.cfg.Tools.VLANBugWorkaround, []string{iface, setting}, opts); err != nil {
			s.advisory("vlan_bug_workaround", iface, err)
		}
	}
}

// bridgeMatches reports whether an existing bridge already has the
// requested parent and tag
func (s *Switch) bridgeMatches(ctx context.Context, bridge entities.BridgeConfig) bool {
	exists, err := s.BridgeExists(ctx, bridge.Name)
	if err != nil || !exists {
		return false
	}
	parent, tag, ok := s.BridgeToVLAN(ctx, bridge.Name)
	if !ok {
		return false
	}
	if bridge.VLAN == nil {
		return tag == 0
	}
	return parent == bridge.VLAN.Parent && tag == bridge.VLAN.Tag
}

// interfaceTypes maps interface names to their non-default type
func (s *Switch) interfaceTypes(ctx context.Context) map[string]string {
	types := make(map[string]string)
	output, err := s.vsctl(ctx, "--bare", "-f", "table", "--", "--columns=name,type", "find", "interface", `type!=""`)
	if err != nil {
		return types
	}
	for _, line := range lines(output) {
		if fields := strings.Fields(line); len(fields) == 2 {
			types[fields[0]] = fields[1]
		}
	}
	return types
}

// vifArgs re-adds the virtual interfaces of a bridge so that they survive a
// delete and recreate in the same transaction
func (s *Switch) vifArgs(ctx context.Context, name string) []string {
	var vifs []string
	for _, iface := range s.BridgeToInterfaces(ctx, name) {
		if !s.devices.IsPhysical(iface) {
			vifs = append(vifs, iface)
		}
	}
	if len(vifs) == 0 {
		return nil
	}

	types := s.interfaceTypes(ctx)
	var args []string
	for _, vif := range vifs {
		args = append(args, "--", "--may-exist", "add-port", name, vif)
		if ty := types[vif]; ty != "" {
			args = append(args, "--", "set", "interface", strconv.Quote(vif), "type="+ty)
		}
	}
	return args
}

// bridgeSettings lists the columns a bridge config pins down
func (s *Switch) bridgeSettings(bridge entities.BridgeConfig) []columnSetting {
	name := bridge.Name
	fake := bridge.VLAN != nil
	set := func(column, value string) columnSetting {
		return columnSetting{table: "bridge", record: name, column: column, value: value}
	}

	var settings []columnSetting
	if bridge.MAC != "" {
		if fake {
			settings = append(settings, columnSetting{table: "interface", record: name, column: "MAC", value: strconv.Quote(bridge.MAC)})
		} else {
			settings = append(settings, set("other-config:hwaddr", strconv.Quote(bridge.MAC)))
		}
	}
	if fake {
		return settings
	}

	if bridge.FailMode != "" {
		settings = append(settings, set("fail_mode", bridge.FailMode))
	}
	if bridge.DisableInBand != nil {
		if bridge.DisableInBand.Value == "" {
			settings = append(settings, columnSetting{table: "bridge", record: name, column: "other_config:disable-in-band", remove: true})
		} else {
			settings = append(settings, set("other_config:disable-in-band", bridge.DisableInBand.Value))
		}
	}
	settings = append(settings, set("other_config:mac-table-size", strconv.Itoa(s.cfg.OVS.MacTableSize)))
	if bridge.IgmpSnooping != nil {
		settings = append(settings,
			set("mcast_snooping_enable", strconv.FormatBool(*bridge.IgmpSnooping)),
			set("other-config:enable-ipv6-mcast-snooping", strconv.FormatBool(s.cfg.OVS.EnableIPv6McastSnooping)),
			set("other-config:mcast-snooping-disable-flood-unregistered", strconv.FormatBool(s.cfg.OVS.McastSnoopingDisableFloodUnregistered)),
		)
	}
	return settings
}

// externalIDOwner is the bridge that carries the external id. A fake bridge
// stores it on its parent.
func externalIDOwner(bridge entities.BridgeConfig) string {
	if bridge.VLAN != nil {
		return bridge.VLAN.Parent
	}
	return bridge.Name
}

func externalIDArgs(bridge entities.BridgeConfig) []string {
	if bridge.ExternalID == nil {
		return nil
	}
	return []string{"--", "br-set-external-id", externalIDOwner(bridge), bridge.ExternalID.Key, bridge.ExternalID.Value}
}

// BridgeArgs assembles the single vsctl transaction that creates a bridge
func (s *Switch) BridgeArgs(ctx context.Context, bridge entities.BridgeConfig) []string {
	name := bridge.Name
	fake := bridge.VLAN != nil

	var args []string
	if fake {
		// a real bridge of the same name cannot become a fake bridge
		args = append(args, "--", "--if-exists", "del-br", name)
	}

	args = append(args, "--", "--may-exist", "add-br", name)
	if fake {
		args = append(args, bridge.VLAN.Parent, strconv.Itoa(bridge.VLAN.Tag))
	}

	for _, setting := range s.bridgeSettings(bridge) {
		args = append(args, setting.args()...)
	}
	args = append(args, externalIDArgs(bridge)...)
	return append(args, s.vifArgs(ctx, name)...)
}

// UpdateArgs returns the settings of an existing bridge that differ from
// the config. An empty result means the bridge is up to date.
func (s *Switch) UpdateArgs(ctx context.Context, bridge entities.BridgeConfig) []string {
	args := s.changedArgs(ctx, s.bridgeSettings(bridge))
	if id := bridge.ExternalID; id != nil {
		current, err := s.vsctl(ctx, "br-get-external-id", externalIDOwner(bridge), id.Key)
		if err != nil || unquote(current) != id.Value {
			args = append(args, externalIDArgs(bridge)...)
		}
	}
	return args
}

// CreateBridge creates a bridge or a fake bridge and reports whether it did.
// A bridge that already exists with the same parent and tag only gets the
// settings that changed.
func (s *Switch) CreateBridge(ctx context.Context, bridge entities.BridgeConfig) (bool, error) {
	if s.bridgeMatches(ctx, bridge) {
		args := s.UpdateArgs(ctx, bridge)
		if len(args) == 0 {
			s.logger.WithField("bridge", bridge.Name).Debug("Bridge already exists")
			return false, nil
		}
		s.logger.WithField("bridge", bridge.Name).Info("Updating bridge settings")
		_, err := s.vsctl(ctx, args...)
		return false, err
	}

	fields := logrus.Fields{"bridge": bridge.Name}
	if bridge.VLAN != nil {
		fields["parent"] = bridge.VLAN.Parent
		fields["tag"] = bridge.VLAN.Tag
		s.HandleVLANBugWorkaround(ctx, bridge.VLANBugWorkaround, bridge.VLAN.Parent)
	}
	s.logger.WithFields(fields).Info("Creating bridge")

	if _, err := s.vsctl(ctx, s.BridgeArgs(ctx, bridge)...); err != nil {
		return false, err
	}
	return true, nil
}

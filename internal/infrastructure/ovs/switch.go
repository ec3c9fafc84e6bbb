package ovs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"netconfd/internal/domain/interfaces"
	"netconfd/internal/infrastructure/config"
	"netconfd/internal/infrastructure/metrics"

	"github.com/sirupsen/logrus"
)

// DeviceInspector answers hardware questions about network devices
type DeviceInspector interface {
	IsPhysical(dev string) bool
	GetDriverName(dev string) (string, bool)
	HasVLANAccel(dev string) bool
}

// Port is a switch port and the interfaces behind it
type Port struct {
	Name       string
	Interfaces []string
}

// Switch implements bridge, port and bond management on top of a SwitchCli
type Switch struct {
	cli      interfaces.SwitchCli
	executor interfaces.CommandExecutor
	devices  DeviceInspector
	cfg      *config.Config
	logger   *logrus.Logger
}

// NewSwitch creates a Switch
func NewSwitch(cli interfaces.SwitchCli, executor interfaces.CommandExecutor, devices DeviceInspector, cfg *config.Config, logger *logrus.Logger) *Switch {
	return &Switch{
		cli:      cli,
		executor: executor,
		devices:  devices,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *Switch) vsctl(ctx context.Context, args ...string) (string, error) {
	return s.cli.Vsctl(ctx, false, args...)
}

func (s *Switch) advisory(operation, target string, err error) {
	metrics.RecordAdvisoryFailure(operation)
	s.logger.WithFields(logrus.Fields{
		"operation": operation,
		"target":    target,
	}).WithError(err).Warn("Ignoring failed switch operation")
}

// lines splits tool output into its non-empty trimmed lines
func lines(output string) []string {
	var out []string
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// unquote strips the quotes ovs-vsctl puts around string values
func unquote(value string) string {
	value = strings.TrimSpace(value)
	if unquoted, err := strconv.Unquote(value); err == nil {
		return unquoted
	}
	return strings.Trim(value, "\"")
}

// columnSetting is one wanted column value of a database record
type columnSetting struct {
	table  string
	record string
	column string
	value  string
	remove bool
}

func (c columnSetting) args() []string {
	if c.remove {
		column, key, _ := strings.Cut(c.column, ":")
		return []string{"--", "remove", c.table, c.record, column, key}
	}
	return []string{"--", "set", c.table, c.record, c.column + "=" + c.value}
}

// satisfiedBy reports whether the stored value already is the wanted one
func (c columnSetting) satisfiedBy(current string) bool {
	if c.remove {
		return current == ""
	}
	return current == unquote(c.value)
}

// changedArgs reads every setting and returns the vsctl arguments for the
// ones that differ. A failed read counts as a difference.
func (s *Switch) changedArgs(ctx context.Context, settings []columnSetting) []string {
	var args []string
	for _, setting := range settings {
		current, err := s.vsctl(ctx, "--if-exists", "get", setting.table, setting.record, setting.column)
		if err == nil && setting.satisfiedBy(unquote(current)) {
			continue
		}
		args = append(args, setting.args()...)
	}
	return args
}

// parseSet splits a "[a, b, c]" database set
func parseSet(value string) []string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "[")
	value = strings.TrimSuffix(value, "]")
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// ListBridges lists every bridge, fake bridges included
func (s *Switch) ListBridges(ctx context.Context) ([]string, error) {
	output, err := s.vsctl(ctx, "list-br")
	if err != nil {
		return nil, err
	}
	return lines(output), nil
}

// BridgeExists reports whether name is a known bridge
func (s *Switch) BridgeExists(ctx context.Context, name string) (bool, error) {
	bridges, err := s.ListBridges(ctx)
	if err != nil {
		return false, err
	}
	for _, bridge := range bridges {
		if bridge == name {
			return true, nil
		}
	}
	return false, nil
}

// PortToInterfaces returns the interface names of a port
func (s *Switch) PortToInterfaces(ctx context.Context, port string) []string {
	output, err := s.vsctl(ctx, "get", "port", port, "interfaces")
	if err != nil {
		return nil
	}
	var names []string
	for _, uuid := range parseSet(output) {
		name, err := s.vsctl(ctx, "get", "interface", uuid, "name")
		if err != nil {
			continue
		}
		names = append(names, unquote(name))
	}
	return names
}

// BridgeToPorts returns the ports of a bridge with their interfaces
func (s *Switch) BridgeToPorts(ctx context.Context, bridge string) []Port {
	output, err := s.vsctl(ctx, "list-ports", bridge)
	if err != nil {
		return nil
	}
	var ports []Port
	for _, name := range lines(output) {
		ports = append(ports, Port{Name: name, Interfaces: s.PortToInterfaces(ctx, name)})
	}
	return ports
}

// BridgeToInterfaces returns every interface attached to a bridge
func (s *Switch) BridgeToInterfaces(ctx context.Context, bridge string) []string {
	output, err := s.vsctl(ctx, "list-ifaces", bridge)
	if err != nil {
		return nil
	}
	return lines(output)
}

// BridgeToVLAN returns the parent and tag of a bridge. A real bridge is its
// own parent with tag 0.
func (s *Switch) BridgeToVLAN(ctx context.Context, bridge string) (string, int, bool) {
	parent, err := s.vsctl(ctx, "br-to-parent", bridge)
	if err != nil {
		return "", 0, false
	}
	rawTag, err := s.vsctl(ctx, "br-to-vlan", bridge)
	if err != nil {
		return "", 0, false
	}
	tag, err := strconv.Atoi(strings.TrimSpace(rawTag))
	if err != nil {
		s.logger.WithField("bridge", bridge).WithError(err).Debug("Unparseable bridge vlan")
		return "", 0, false
	}
	return strings.TrimSpace(parent), tag, true
}

// GetRealBridge returns the parent of a fake bridge, or the bridge itself
func (s *Switch) GetRealBridge(ctx context.Context, bridge string) string {
	if parent, tag, ok := s.BridgeToVLAN(ctx, bridge); ok && tag != 0 {
		return parent
	}
	return bridge
}

// GetVLANs returns the fake bridges whose port belongs to bridge
func (s *Switch) GetVLANs(ctx context.Context, bridge string) []string {
	fakeOutput, err := s.vsctl(ctx, "--bare", "-f", "table", "--", "--columns=name,_uuid", "find", "port", "fake_bridge=true")
	if err != nil {
		return nil
	}
	portsOutput, err := s.vsctl(ctx, "--bare", "-f", "table", "--", "--columns=ports", "list", "bridge", bridge)
	if err != nil {
		return nil
	}

	onBridge := make(map[string]struct{})
	for _, uuid := range strings.Fields(portsOutput) {
		onBridge[uuid] = struct{}{}
	}

	var vlans []string
	for _, line := range lines(fakeOutput) {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		if _, ok := onBridge[fields[1]]; ok {
			vlans = append(vlans, fields[0])
		}
	}
	return vlans
}

// GetBridgeVLANVifs returns the interfaces of every fake bridge of bridge
func (s *Switch) GetBridgeVLANVifs(ctx context.Context, bridge string) []string {
	var vifs []string
	for _, vlan := range s.GetVLANs(ctx, bridge) {
		vifs = append(vifs, s.BridgeToInterfaces(ctx, vlan)...)
	}
	return vifs
}

// DestroyBridge deletes a bridge if it exists
func (s *Switch) DestroyBridge(ctx context.Context, name string) error {
	_, err := s.vsctl(ctx, "--", "--if-exists", "del-br", name)
	return err
}

// PortToBridge returns the bridge a port belongs to
func (s *Switch) PortToBridge(ctx context.Context, port string) (string, error) {
	output, err := s.vsctl(ctx, "port-to-br", port)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// CreatePort attaches name to bridge, optionally as an internal interface
// with a fixed MAC. A port already on that bridge is left alone.
func (s *Switch) CreatePort(ctx context.Context, name, bridge string, internal bool, mac string) error {
	if current, err := s.PortToBridge(ctx, name); err == nil && current == bridge {
		return nil
	}
	args := []string{"--", "--may-exist", "add-port", bridge, name}
	if internal {
		args = append(args, "--", "set", "interface", name, "type=internal")
	}
	if mac != "" {
		args = append(args, "--", "set", "interface", name, "MAC="+strconv.Quote(mac))
	}
	_, err := s.vsctl(ctx, args...)
	return err
}

// DestroyPort removes a port and its interfaces if it exists
func (s *Switch) DestroyPort(ctx context.Context, name string) error {
	_, err := s.vsctl(ctx, "--", "--with-iface", "--if-exists", "del-port", name)
	return err
}

// GetFailMode returns the fail mode of a bridge, "" when unset
func (s *Switch) GetFailMode(ctx context.Context, bridge string) (string, error) {
	output, err := s.vsctl(ctx, "get-fail-mode", bridge)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// SetMaxIdle sets the datapath flow idle timeout in milliseconds
func (s *Switch) SetMaxIdle(ctx context.Context, ms int) {
	if _, err := s.vsctl(ctx, "set", "Open_vSwitch", ".", fmt.Sprintf("other_config:max-idle=%d", ms)); err != nil {
		s.advisory("set_max_idle", ".", err)
	}
}

// SetMTU requests an MTU for an interface
func (s *Switch) SetMTU(ctx context.Context, iface string, mtu int) {
	if _, err := s.vsctl(ctx, "set", "interface", iface, fmt.Sprintf("mtu_request=%d", mtu)); err != nil {
		s.advisory("set_mtu", iface, err)
	}
}

// ModPort changes an OpenFlow port setting, such as up or no-flood
func (s *Switch) ModPort(ctx context.Context, bridge, port, action string) error {
	_, err := s.cli.Ofctl(ctx, false, "mod-port", bridge, port, action)
	return err
}

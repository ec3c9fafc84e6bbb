package ovs

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"netconfd/internal/domain/entities"
	domainErrors "netconfd/internal/domain/errors"

	"github.com/sirupsen/logrus"
)

const defaultBondMode = "balance-slb"

// legacy numeric properties and the switch option each one maps to
var legacyBondProps = []struct {
	prop string
	key  string
}{
	{entities.BondPropUpdelay, "bond_updelay"},
	{entities.BondPropDowndelay, "bond_downdelay"},
	{entities.BondPropMiimon, "other-config:bond-miimon-interval"},
	{entities.BondPropUseCarrier, "other-config:bond-detect-mode"},
	{entities.BondPropRebalanceInterval, "other-config:bond-rebalance-interval"},
}

// string properties passed through as quoted port options
var quotedBondProps = []string{
	entities.BondPropLacpTime,
	entities.BondPropLacpFallbackAB,
}

// properties that belong on every member interface
var perInterfaceBondProps = []string{
	entities.BondPropLacpAggregationKey,
	entities.BondPropLacpActorKey,
}

func isKnownBondProp(key string) bool {
	switch key {
	case entities.BondPropMode, entities.BondPropHashingAlgorithm:
		return true
	}
	for _, legacy := range legacyBondProps {
		if legacy.prop == key {
			return true
		}
	}
	for _, prop := range quotedBondProps {
		if prop == key {
			return true
		}
	}
	for _, prop := range perInterfaceBondProps {
		if prop == key {
			return true
		}
	}
	return false
}

// bondModeArgs maps mode and hashing-algorithm to lacp and bond_mode
func (s *Switch) bondModeArgs(props map[string]string) []string {
	mode, ok := props[entities.BondPropMode]
	if !ok || mode == "" {
		mode = defaultBondMode
	}
	if mode != "lacp" {
		return []string{"lacp=off", "bond_mode=" + mode}
	}

	switch algo := props[entities.BondPropHashingAlgorithm]; algo {
	case "src_mac":
		return []string{"lacp=active", "bond_mode=balance-slb"}
	case "tcpudp_ports":
		return []string{"lacp=active", "bond_mode=balance-tcp"}
	default:
		s.logger.WithField("hashing_algorithm", algo).Warn("Unsupported LACP hashing algorithm, using tcpudp_ports")
		return []string{"lacp=active", "bond_mode=balance-tcp"}
	}
}

// legacyBondArgs validates and translates the numeric properties
func (s *Switch) legacyBondArgs(props map[string]string) []string {
	var args []string
	for _, legacy := range legacyBondProps {
		raw, ok := props[legacy.prop]
		if !ok {
			continue
		}
		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || value < 0 {
			s.logger.WithFields(logrus.Fields{
				"property": legacy.prop,
				"value":    raw,
			}).Warn("Ignoring invalid bond property")
			continue
		}
		setting := strconv.Itoa(value)
		if legacy.prop == entities.BondPropUseCarrier {
			setting = "miimon"
			if value > 0 {
				setting = "carrier"
			}
		}
		args = append(args, legacy.key+"="+setting)
	}
	return args
}

func quotedBondArgs(props map[string]string) []string {
	var args []string
	for _, prop := range quotedBondProps {
		if value, ok := props[prop]; ok {
			args = append(args, fmt.Sprintf("other-config:%s=%s", prop, strconv.Quote(value)))
		}
	}
	return args
}

// freeformBondArgs passes unrecognized keys through untouched, sorted so
// the transaction is stable
func freeformBondArgs(props map[string]string) []string {
	var keys []string
	for key := range props {
		if !isKnownBondProp(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys))
	for _, key := range keys {
		args = append(args, fmt.Sprintf("other-config:%s=%s", strconv.Quote(key), strconv.Quote(props[key])))
	}
	return args
}

// BondPortOptions translates bond properties into options of the bond port
func (s *Switch) BondPortOptions(props map[string]string) []string {
	args := s.bondModeArgs(props)
	args = append(args, s.legacyBondArgs(props)...)
	args = append(args, quotedBondArgs(props)...)
	return append(args, freeformBondArgs(props)...)
}

// BondInterfaceArgs sets the per-member properties on every interface
func BondInterfaceArgs(props map[string]string, ifaces []string) []string {
	var options []string
	for _, prop := range perInterfaceBondProps {
		if value, ok := props[prop]; ok {
			options = append(options, fmt.Sprintf("other-config:%s=%s", prop, strconv.Quote(value)))
		}
	}
	if len(options) == 0 {
		return nil
	}
	var args []string
	for _, iface := range ifaces {
		args = append(args, "--", "set", "interface", iface)
		args = append(args, options...)
	}
	return args
}

// BondArgs assembles the vsctl transaction that (re)creates a bond port
func (s *Switch) BondArgs(bridge string, bond entities.BondConfig) []string {
	args := []string{"--", "--if-exists", "del-port", bond.Name, "--", "--fake-iface", "add-bond", bridge, bond.Name}
	args = append(args, bond.Slaves...)
	if bond.MAC != "" {
		args = append(args, "--", "set", "port", bond.Name, "MAC="+strconv.Quote(bond.MAC))
	}
	args = append(args, "--", "set", "port", bond.Name)
	args = append(args, s.BondPortOptions(bond.Properties)...)
	return append(args, BondInterfaceArgs(bond.Properties, bond.Slaves)...)
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// bondSettings lists the port and member columns a bond config pins down
func (s *Switch) bondSettings(bond entities.BondConfig) []columnSetting {
	port := func(option string) columnSetting {
		column, value, _ := strings.Cut(option, "=")
		return columnSetting{table: "port", record: bond.Name, column: column, value: value}
	}

	var settings []columnSetting
	if bond.MAC != "" {
		settings = append(settings, port("MAC="+strconv.Quote(bond.MAC)))
	}
	for _, option := range s.BondPortOptions(bond.Properties) {
		settings = append(settings, port(option))
	}
	for _, slave := range bond.Slaves {
		for _, prop := range perInterfaceBondProps {
			if value, ok := bond.Properties[prop]; ok {
				settings = append(settings, columnSetting{
					table:  "interface",
					record: slave,
					column: "other-config:" + prop,
					value:  strconv.Quote(value),
				})
			}
		}
	}
	return settings
}

// CreateBond creates a bond port on bridge. A bond that already has exactly
// the requested interfaces only gets the options that changed.
func (s *Switch) CreateBond(ctx context.Context, bridge string, bond entities.BondConfig) error {
	if len(bond.Slaves) < 2 {
		return domainErrors.NewValidationError(fmt.Sprintf("bond %s needs at least two interfaces", bond.Name), nil)
	}
	for _, port := range s.BridgeToPorts(ctx, bridge) {
		if port.Name != bond.Name || !sameMembers(port.Interfaces, bond.Slaves) {
			continue
		}
		args := s.changedArgs(ctx, s.bondSettings(bond))
		if len(args) == 0 {
			s.logger.WithField("bond", bond.Name).Debug("Bond already exists")
			return nil
		}
		s.logger.WithField("bond", bond.Name).Info("Updating bond settings")
		_, err := s.vsctl(ctx, args...)
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"bridge": bridge,
		"bond":   bond.Name,
		"slaves": bond.Slaves,
	}).Info("Creating bond")
	_, err := s.vsctl(ctx, s.BondArgs(bridge, bond)...)
	return err
}

// GetBondMode returns the bond_mode of a port, if set
func (s *Switch) GetBondMode(ctx context.Context, port string) (string, bool) {
	output, err := s.vsctl(ctx, "get", "port", port, "bond_mode")
	if err != nil {
		return "", false
	}
	mode := strings.TrimSpace(output)
	if mode == "" || mode == "[]" {
		return "", false
	}
	return unquote(mode), true
}

// SlaveStatus is the state of one bond member
type SlaveStatus struct {
	Name    string
	Enabled bool
}

// ParseBondShow parses bond/show output into member states and the active
// member, accepting both the slave and member wording
func ParseBondShow(output string) ([]SlaveStatus, string) {
	var slaves []SlaveStatus
	active := ""
	for _, line := range lines(output) {
		switch {
		case strings.HasPrefix(line, "active slave ") || strings.HasPrefix(line, "active member "):
			rest := strings.TrimSpace(line[strings.Index(line, " ")+1:])
			rest = strings.TrimSpace(rest[strings.Index(rest, " ")+1:])
			if open := strings.LastIndex(rest, "("); open >= 0 && strings.HasSuffix(rest, ")") {
				rest = rest[open+1 : len(rest)-1]
			}
			if rest != "" && rest != "<none>" {
				active = rest
			}
		case strings.HasPrefix(line, "slave ") || strings.HasPrefix(line, "member "):
			rest := line[strings.Index(line, " ")+1:]
			colon := strings.Index(rest, ":")
			if colon < 0 {
				continue
			}
			slaves = append(slaves, SlaveStatus{
				Name:    strings.TrimSpace(rest[:colon]),
				Enabled: strings.TrimSpace(rest[colon+1:]) == "enabled",
			})
		}
	}
	return slaves, active
}

// GetBondLinkStatus returns the member states and the active member of a bond
func (s *Switch) GetBondLinkStatus(ctx context.Context, bond string) ([]SlaveStatus, string) {
	output, err := s.cli.Appctl(ctx, false, "bond/show", bond)
	if err != nil {
		return nil, ""
	}
	return ParseBondShow(output)
}

// GetBondLinksUp counts the enabled members of a bond
func (s *Switch) GetBondLinksUp(ctx context.Context, bond string) int {
	slaves, _ := s.GetBondLinkStatus(ctx, bond)
	up := 0
	for _, slave := range slaves {
		if slave.Enabled {
			up++
		}
	}
	return up
}

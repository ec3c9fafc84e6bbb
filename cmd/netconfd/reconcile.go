package main

import (
	"fmt"
	"strings"

	"netconfd/internal/application/usecases"
	"netconfd/internal/domain/entities"

	"github.com/spf13/cobra"
)

var bondCmd = &cobra.Command{
	Use:   "bond",
	Short: "Converge or remove a bond",
}

var bondApplyCmd = &cobra.Command{
	Use:   "apply <name>",
	Short: "Create a bond or converge it to the given slaves and properties",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		bridge, _ := flags.GetString("bridge")
		slaves, _ := flags.GetStringSlice("slaves")
		properties, _ := flags.GetStringToString("property")
		mac, _ := flags.GetString("mac")

		return state.container.GetReconcileBondUseCase().Execute(cmd.Context(), usecases.ReconcileBondInput{
			Bridge: bridge,
			Bond: entities.BondConfig{
				Name:       args[0],
				Slaves:     slaves,
				Properties: properties,
				MAC:        mac,
			},
		})
	},
}

var bondRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a bond",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge, _ := cmd.Flags().GetString("bridge")
		return state.container.GetReconcileBondUseCase().Remove(cmd.Context(), bridge, args[0])
	},
}

var bondStatusCmd = &cobra.Command{
	Use:   "status <name>",
	Short: "Show the member states of a switch bond",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slaves, active := state.container.GetSwitch().GetBondLinkStatus(cmd.Context(), args[0])
		for _, slave := range slaves {
			status := "disabled"
			if slave.Enabled {
				status = "enabled"
			}
			marker := ""
			if slave.Name == active {
				marker = " (active)"
			}
			cmd.Printf("%s %s%s\n", slave.Name, status, marker)
		}
		return nil
	},
}

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Converge or remove a bridge",
}

var bridgeApplyCmd = &cobra.Command{
	Use:   "apply <name>",
	Short: "Create a bridge or converge it to the given settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge, err := bridgeFromFlags(cmd, args[0])
		if err != nil {
			return err
		}
		ifaces, _ := cmd.Flags().GetStringSlice("interfaces")

		return state.container.GetReconcileBridgeUseCase().Execute(cmd.Context(), usecases.ReconcileBridgeInput{
			Bridge:     bridge,
			Interfaces: ifaces,
		})
	},
}

var bridgeRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a bridge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return state.container.GetReconcileBridgeUseCase().Remove(cmd.Context(), args[0])
	},
}

// bridgeFromFlags builds a BridgeConfig. Optional settings are only set when
// their flag was given, so an omitted flag leaves the setting alone.
func bridgeFromFlags(cmd *cobra.Command, name string) (entities.BridgeConfig, error) {
	flags := cmd.Flags()
	bridge := entities.BridgeConfig{Name: name}
	bridge.MAC, _ = flags.GetString("mac")
	bridge.FailMode, _ = flags.GetString("fail-mode")

	if parent, _ := flags.GetString("parent"); parent != "" {
		tag, _ := flags.GetInt("tag")
		bridge.VLAN = &entities.VLANParent{Parent: parent, Tag: tag}
	}
	if raw, _ := flags.GetString("external-id"); raw != "" {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || key == "" {
			return bridge, fmt.Errorf("invalid external id %q, want key=value", raw)
		}
		bridge.ExternalID = &entities.ExternalID{Key: key, Value: value}
	}
	if flags.Changed("igmp-snooping") {
		enable, _ := flags.GetBool("igmp-snooping")
		bridge.IgmpSnooping = &enable
	}
	if flags.Changed("vlan-bug-workaround") {
		enable, _ := flags.GetBool("vlan-bug-workaround")
		bridge.VLANBugWorkaround = &enable
	}
	if flags.Changed("disable-in-band") {
		value, _ := flags.GetString("disable-in-band")
		bridge.DisableInBand = &entities.InBandOverride{Value: value}
	}
	return bridge, nil
}

var dhcpCmd = &cobra.Command{
	Use:   "dhcp <interface>",
	Short: "Start, restart or stop the DHCP client of an interface",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		ipv6, _ := flags.GetBool("ipv6")
		gateway, _ := flags.GetString("gateway-interface")
		setDNS, _ := flags.GetBool("set-dns")
		disable, _ := flags.GetBool("disable")

		return state.container.GetReconcileDHCPUseCase().Execute(cmd.Context(), usecases.ReconcileDHCPInput{
			Client: entities.DhcpClientConfig{
				Interface: args[0],
				IPv6:      ipv6,
				Options:   entities.DhcpOptions{GatewayInterface: gateway, SetDNS: setDNS},
			},
			Enabled: !disable,
		})
	},
}

func addBridgeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("parent", "", "Parent bridge of a VLAN bridge")
	flags.Int("tag", 0, "VLAN tag of a VLAN bridge")
	flags.String("mac", "", "Bridge MAC address")
	flags.String("fail-mode", "", "Switch fail mode")
	flags.String("external-id", "", "External id key=value stored on the bridge")
	flags.Bool("igmp-snooping", false, "Enable IGMP snooping")
	flags.Bool("vlan-bug-workaround", false, "Force the VLAN bug workaround on or off")
	flags.String("disable-in-band", "", "Set disable-in-band; empty removes it")
	flags.StringSlice("interfaces", nil, "Uplink interfaces of a real bridge")
}

func init() {
	bondApplyCmd.Flags().String("bridge", "", "Bridge the bond belongs to")
	bondApplyCmd.Flags().StringSlice("slaves", nil, "Bond members")
	bondApplyCmd.Flags().StringToString("property", nil, "Bond property key=value, repeatable")
	bondApplyCmd.Flags().String("mac", "", "Bond MAC address")
	bondRemoveCmd.Flags().String("bridge", "", "Bridge the bond belongs to")
	bondCmd.AddCommand(bondApplyCmd, bondRemoveCmd, bondStatusCmd)

	addBridgeFlags(bridgeApplyCmd)
	bridgeCmd.AddCommand(bridgeApplyCmd, bridgeRemoveCmd)

	dhcpCmd.Flags().Bool("ipv6", false, "Run the IPv6 client")
	dhcpCmd.Flags().String("gateway-interface", "", "Default-gateway interface of the host")
	dhcpCmd.Flags().Bool("set-dns", false, "Request name servers")
	dhcpCmd.Flags().Bool("disable", false, "Stop the client")
}

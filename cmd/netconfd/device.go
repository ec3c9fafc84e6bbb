package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"netconfd/internal/infrastructure/ethtool"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <device>",
	Short: "Print a snapshot of a device as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		device, err := state.container.GetInspectDeviceUseCase().Execute(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(device)
	},
}

var tuneCmd = &cobra.Command{
	Use:   "tune <device>",
	Short: "Change NIC link and offload settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, _ := cmd.Flags().GetStringSlice("set")
		offloads, _ := cmd.Flags().GetStringSlice("offload")

		linkOptions, err := parseOptions(settings)
		if err != nil {
			return err
		}
		offloadOptions, err := parseOptions(offloads)
		if err != nil {
			return err
		}

		tool := state.container.GetEthtool()
		tool.SetOptions(cmd.Context(), args[0], linkOptions)
		tool.SetOffload(cmd.Context(), args[0], offloadOptions)
		return nil
	},
}

// parseOptions turns key=value pairs into ethtool options, keeping order
func parseOptions(pairs []string) ([]ethtool.Option, error) {
	options := make([]ethtool.Option, 0, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("invalid option %q, want key=value", pair)
		}
		options = append(options, ethtool.Option{Key: key, Value: value})
	}
	return options, nil
}

func init() {
	tuneCmd.Flags().StringSlice("set", nil, "Link setting key=value, e.g. speed=1000")
	tuneCmd.Flags().StringSlice("offload", nil, "Offload setting key=value, e.g. gso=off")
}

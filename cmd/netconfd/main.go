package main

import (
	"io"
	"os"

	"netconfd/internal/infrastructure/config"
	"netconfd/internal/infrastructure/container"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

const version = "0.1.0"

// app holds what every subcommand shares. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	container *container.Container
}

var state app

var mainCmd = &cobra.Command{
	Use:           "netconfd",
	Short:         "Host network configuration daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewEnvironmentConfigLoader().Load()
		if err != nil {
			return err
		}
		if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
			cfg.Backend = backend
		}

		logger := newLogger(cfg.Log, os.Stderr)
		appContainer, err := container.NewContainer(cfg, logger)
		if err != nil {
			return err
		}

		state = app{cfg: cfg, logger: logger, container: appContainer}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if state.container == nil {
			return nil
		}
		return state.container.Close()
	},
}

func init() {
	mainCmd.PersistentFlags().String("backend", "", "Bridging backend, openvswitch or bridge (overrides NETWORK_BACKEND)")
	mainCmd.AddCommand(
		serveCmd,
		bondCmd,
		bridgeCmd,
		dhcpCmd,
		showCmd,
		tuneCmd,
		versionCmd,
	)
}

// newLogger builds the JSON logger. An unknown level falls back to info;
// a configured file is rotated by size.
func newLogger(cfg config.LogConfig, stderr io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(stderr)

	if cfg.File != "" {
		logger.SetOutput(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}

	logger.SetLevel(logrus.InfoLevel)
	if cfg.Level != "" {
		level, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			logger.WithError(err).Warnf("Unknown log level %q, using info", cfg.Level)
		} else {
			logger.SetLevel(level)
		}
	}
	return logger
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version)
	},
}

func main() {
	if err := mainCmd.Execute(); err != nil {
		if state.logger != nil {
			state.logger.WithError(err).Error("Command failed")
		} else {
			logrus.WithError(err).Error("Command failed")
		}
		os.Exit(1)
	}
}

package dhcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"netconfd/internal/domain/entities"
	"netconfd/internal/domain/interfaces"
	"netconfd/internal/infrastructure/config"
	"netconfd/internal/infrastructure/metrics"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// options requested from every server
var baseRequests = []string{
	"subnet-mask",
	"broadcast-address",
	"time-offset",
	"host-name",
	"nis-domain",
	"nis-servers",
	"ntp-servers",
	"interface-mtu",
}

// Manager runs one dhclient per interface and IP version. A client counts as
// running while its pid file exists.
type Manager struct {
	executor interfaces.CommandExecutor
	fs       afero.Fs
	path     string
	pidDir   string
	stateDir string
	stopOpts interfaces.RunOptions
	logger   *logrus.Logger
}

// NewManager creates a Manager
func NewManager(executor interfaces.CommandExecutor, fs afero.Fs, cfg *config.Config, logger *logrus.Logger) *Manager {
	return &Manager{
		executor: executor,
		fs:       fs,
		path:     cfg.Tools.Dhclient,
		pidDir:   cfg.Paths.DhclientPidDir,
		stateDir: cfg.Paths.DhclientStateDir,
		stopOpts: interfaces.RunOptions{Timeout: cfg.Timeouts.Command},
		logger:   logger,
	}
}

func baseName(iface string, ipv6 bool) string {
	if ipv6 {
		return "dhclient6-" + iface
	}
	return "dhclient-" + iface
}

// PidFile returns the pid file of the client on iface
func (m *Manager) PidFile(iface string, ipv6 bool) string {
	return filepath.Join(m.pidDir, baseName(iface, ipv6)+".pid")
}

// LeaseFile returns the lease database of the client on iface
func (m *Manager) LeaseFile(iface string, ipv6 bool) string {
	return filepath.Join(m.stateDir, baseName(iface, ipv6)+".leases")
}

// ConfFile returns the generated configuration of the client on iface
func (m *Manager) ConfFile(iface string, ipv6 bool) string {
	return filepath.Join(m.stateDir, baseName(iface, ipv6)+".conf")
}

// GenerateConf renders the dhclient configuration for c
func GenerateConf(c entities.DhcpClientConfig) string {
	requests := append([]string(nil), baseRequests...)
	if c.RequestsDefaultRoute() {
		requests = append(requests, "routers")
	}
	if c.Options.SetDNS {
		requests = append(requests, "domain-name", "domain-name-servers")
	}
	return fmt.Sprintf("interface %q {\n\trequest %s;\n}\n", c.Interface, strings.Join(requests, ", "))
}

// IsRunning reports whether a client is tracked for iface
func (m *Manager) IsRunning(iface string, ipv6 bool) bool {
	ok, err := afero.Exists(m.fs, m.PidFile(iface, ipv6))
	return err == nil && ok
}

func (m *Manager) writeConf(c entities.DhcpClientConfig) error {
	if err := m.fs.MkdirAll(m.stateDir, 0755); err != nil {
		return err
	}
	return afero.WriteFile(m.fs, m.ConfFile(c.Interface, c.IPv6), []byte(GenerateConf(c)), 0644)
}

// Start writes a fresh configuration and starts the client. The client
// daemonizes once it has a lease, so no timeout applies.
func (m *Manager) Start(ctx context.Context, c entities.DhcpClientConfig) error {
	if err := m.writeConf(c); err != nil {
		return fmt.Errorf("failed to write dhclient config for %s: %w", c.Interface, err)
	}

	args := []string{
		"-q",
		"-pf", m.PidFile(c.Interface, c.IPv6),
		"-lf", m.LeaseFile(c.Interface, c.IPv6),
		"-cf", m.ConfFile(c.Interface, c.IPv6),
	}
	if c.IPv6 {
		args = append(args, "-6")
	}
	if c.Options.GatewayInterface != "" {
		args = append(args, "-e", "GATEWAYDEV="+c.Options.GatewayInterface)
	}
	args = append(args, c.Interface)

	m.logger.WithFields(logrus.Fields{
		"interface": c.Interface,
		"ipv6":      c.IPv6,
	}).Info("Starting DHCP client")
	_, err := m.executor.Run(ctx, m.path, args, interfaces.RunOptions{LogOutput: true})
	return err
}

// Stop releases the lease and stops the client, then forgets its pid file
func (m *Manager) Stop(ctx context.Context, iface string, ipv6 bool) error {
	args := []string{"-r", "-pf", m.PidFile(iface, ipv6), iface}

	m.logger.WithFields(logrus.Fields{
		"interface": iface,
		"ipv6":      ipv6,
	}).Info("Stopping DHCP client")
	if _, err := m.executor.Run(ctx, m.path, args, m.stopOpts); err != nil {
		return err
	}
	if err := m.fs.Remove(m.PidFile(iface, ipv6)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// EnsureRunning starts a client for c, or restarts the tracked one when its
// configuration on disk differs from what c renders to
func (m *Manager) EnsureRunning(ctx context.Context, c entities.DhcpClientConfig) error {
	if !m.IsRunning(c.Interface, c.IPv6) {
		return m.Start(ctx, c)
	}

	current, err := afero.ReadFile(m.fs, m.ConfFile(c.Interface, c.IPv6))
	if err == nil && string(current) == GenerateConf(c) {
		m.logger.WithField("interface", c.Interface).Debug("DHCP client configuration unchanged")
		return nil
	}

	metrics.RecordDhcpRestart()
	if err := m.Stop(ctx, c.Interface, c.IPv6); err != nil {
		return err
	}
	return m.Start(ctx, c)
}

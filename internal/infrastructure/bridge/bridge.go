package bridge

import (
	"context"
	"strconv"

	"netconfd/internal/domain/interfaces"
	"netconfd/internal/infrastructure/config"
	"netconfd/internal/infrastructure/metrics"

	"github.com/sirupsen/logrus"
)

// Inspector reads kernel bridge state
type Inspector interface {
	IsBridge(dev string) bool
	BridgeToInterfaces(bridge string) []string
	SetMulticastSnooping(bridge string, enable bool)
}

// LinkController takes a device down before it is deleted
type LinkController interface {
	LinkSetDown(ctx context.Context, dev string) error
}

// Manager drives the kernel bridge through brctl. Every mutation is guarded
// by an existence or membership check so repeated calls are no-ops.
type Manager struct {
	executor interfaces.CommandExecutor
	devices  Inspector
	links    LinkController
	path     string
	opts     interfaces.RunOptions
	logger   *logrus.Logger
}

// NewManager creates a Manager
func NewManager(executor interfaces.CommandExecutor, devices Inspector, links LinkController, cfg *config.Config, logger *logrus.Logger) *Manager {
	return &Manager{
		executor: executor,
		devices:  devices,
		links:    links,
		path:     cfg.Tools.Brctl,
		opts:     interfaces.RunOptions{Timeout: cfg.Timeouts.Command},
		logger:   logger,
	}
}

func (m *Manager) brctl(ctx context.Context, args ...string) error {
	_, err := m.executor.Run(ctx, m.path, args, m.opts)
	return err
}

// BridgeExists reports whether name is a kernel bridge
func (m *Manager) BridgeExists(name string) bool {
	return m.devices.IsBridge(name)
}

// IsMember reports whether iface is a port of bridge
func (m *Manager) IsMember(bridge, iface string) bool {
	for _, port := range m.devices.BridgeToInterfaces(bridge) {
		if port == iface {
			return true
		}
	}
	return false
}

// CreateBridge creates a bridge unless it exists
func (m *Manager) CreateBridge(ctx context.Context, name string) error {
	if m.BridgeExists(name) {
		return nil
	}
	m.logger.WithField("bridge", name).Info("Creating bridge")
	return m.brctl(ctx, "addbr", name)
}

// DestroyBridge brings a bridge down and deletes it if it exists
func (m *Manager) DestroyBridge(ctx context.Context, name string) error {
	if !m.BridgeExists(name) {
		return nil
	}
	if err := m.links.LinkSetDown(ctx, name); err != nil {
		return err
	}
	m.logger.WithField("bridge", name).Info("Destroying bridge")
	return m.brctl(ctx, "delbr", name)
}

// AddInterface attaches iface to bridge unless it is already a port
func (m *Manager) AddInterface(ctx context.Context, bridge, iface string) error {
	if m.IsMember(bridge, iface) {
		return nil
	}
	m.logger.WithFields(logrus.Fields{"bridge": bridge, "interface": iface}).Info("Adding bridge port")
	return m.brctl(ctx, "addif", bridge, iface)
}

// RemoveInterface detaches iface from bridge if it is a port
func (m *Manager) RemoveInterface(ctx context.Context, bridge, iface string) error {
	if !m.IsMember(bridge, iface) {
		return nil
	}
	m.logger.WithFields(logrus.Fields{"bridge": bridge, "interface": iface}).Info("Removing bridge port")
	return m.brctl(ctx, "delif", bridge, iface)
}

// SetInterfaces converges the ports of bridge to ifaces, removals first
func (m *Manager) SetInterfaces(ctx context.Context, bridge string, ifaces []string) error {
	wanted := make(map[string]struct{}, len(ifaces))
	for _, iface := range ifaces {
		wanted[iface] = struct{}{}
	}
	for _, port := range m.devices.BridgeToInterfaces(bridge) {
		if _, ok := wanted[port]; ok {
			continue
		}
		if err := m.brctl(ctx, "delif", bridge, port); err != nil {
			return err
		}
	}
	for _, iface := range ifaces {
		if err := m.AddInterface(ctx, bridge, iface); err != nil {
			return err
		}
	}
	return nil
}

// SetForwardingDelay sets the forwarding delay of bridge in seconds
func (m *Manager) SetForwardingDelay(ctx context.Context, bridge string, seconds int) {
	if err := m.brctl(ctx, "setfd", bridge, strconv.Itoa(seconds)); err != nil {
		metrics.RecordAdvisoryFailure("set_forwarding_delay")
		m.logger.WithField("bridge", bridge).WithError(err).Warn("Failed to set forwarding delay")
	}
}

// SetIgmpSnooping toggles multicast snooping on bridge
func (m *Manager) SetIgmpSnooping(bridge string, enable bool) {
	m.devices.SetMulticastSnooping(bridge, enable)
}

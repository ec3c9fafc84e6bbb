package interfaces

import (
	"context"

	"netconfd/internal/domain/entities"
)

// SwitchCli is the capability the OVS algorithm layer calls through. The
// production implementation shells out to the OVS control tools; tests use a
// recording fake.
type SwitchCli interface {
	// Vsctl runs a switch database command
	Vsctl(ctx context.Context, logOutput bool, args ...string) (string, error)

	// Ofctl runs an OpenFlow command
	Ofctl(ctx context.Context, logOutput bool, args ...string) (string, error)

	// Appctl runs a daemon control command
	Appctl(ctx context.Context, logOutput bool, args ...string) (string, error)
}

// NetworkBackend converges bridges and bonds through one bridging
// implementation, either the OVS switch or the kernel bridge
type NetworkBackend interface {
	// Name identifies the backend in logs and health output
	Name() string

	// ApplyBridge creates bridge and attaches ifaces to a real bridge
	ApplyBridge(ctx context.Context, bridge entities.BridgeConfig, ifaces []string) error

	// DestroyBridge removes a bridge
	DestroyBridge(ctx context.Context, name string) error

	// ApplyBond creates or converges bond and attaches it to bridge
	ApplyBond(ctx context.Context, bridge string, bond entities.BondConfig) error

	// DestroyBond removes a bond
	DestroyBond(ctx context.Context, bridge, name string) error
}

// DhcpClient manages the DHCP client of one interface and IP version
type DhcpClient interface {
	// EnsureRunning starts the client or restarts it on a configuration change
	EnsureRunning(ctx context.Context, config entities.DhcpClientConfig) error

	// Stop stops the client
	Stop(ctx context.Context, iface string, ipv6 bool) error

	// IsRunning reports whether a client is tracked
	IsRunning(iface string, ipv6 bool) bool
}

// ReconciliationObserver is told the outcome of every reconciliation call
type ReconciliationObserver interface {
	RecordReconciliation(kind string, err error)
}

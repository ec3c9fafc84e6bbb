// Package backend implements interfaces.NetworkBackend on top of the OVS
// switch and on top of the kernel bonding driver and bridge.
package backend

import (
	"context"

	"netconfd/internal/domain/entities"
)

// LinkController is the part of the ip tool both backends need
type LinkController interface {
	LinkSetUp(ctx context.Context, dev string) error
	SetMAC(ctx context.Context, dev, mac string)
	CreateVLAN(ctx context.Context, parent string, tag int) error
}

// Switch is the OVS algorithm layer
type Switch interface {
	CreateBridge(ctx context.Context, bridge entities.BridgeConfig) (bool, error)
	DestroyBridge(ctx context.Context, name string) error
	CreatePort(ctx context.Context, name, bridge string, internal bool, mac string) error
	DestroyPort(ctx context.Context, name string) error
	CreateBond(ctx context.Context, bridge string, bond entities.BondConfig) error
	AddDefaultFlows(ctx context.Context, bridge, mac string, ifaces []string)
	InjectIgmpQuery(ctx context.Context, bridge string)
}

// BondDriver is the kernel bonding reconciler
type BondDriver interface {
	AddBondMaster(ctx context.Context, name string) error
	RemoveBondMaster(ctx context.Context, name string)
	SetBondProperties(ctx context.Context, master string, properties map[string]string) error
	SetBondSlaves(ctx context.Context, master string, slaves []string) error
}

// KernelBridge is the native bridge tool wrapper
type KernelBridge interface {
	CreateBridge(ctx context.Context, name string) error
	DestroyBridge(ctx context.Context, name string) error
	AddInterface(ctx context.Context, bridge, iface string) error
	RemoveInterface(ctx context.Context, bridge, iface string) error
	SetInterfaces(ctx context.Context, bridge string, ifaces []string) error
	SetForwardingDelay(ctx context.Context, bridge string, seconds int)
	SetIgmpSnooping(bridge string, enable bool)
}

package backend

import (
	"context"

	"netconfd/internal/domain/constants"
	"netconfd/internal/domain/entities"
	"netconfd/internal/domain/interfaces"
	"netconfd/internal/infrastructure/ip"

	"github.com/sirupsen/logrus"
)

// Native converges bridges and bonds with the kernel bridge and bonding
// drivers. A fake bridge becomes a kernel bridge holding the 802.1Q
// sub-interface <parent>.<tag>.
type Native struct {
	bonds   BondDriver
	bridges KernelBridge
	links   LinkController
	logger  *logrus.Logger
}

// NewNative creates the kernel bridge backend
func NewNative(bonds BondDriver, bridges KernelBridge, links LinkController, logger *logrus.Logger) *Native {
	return &Native{bonds: bonds, bridges: bridges, links: links, logger: logger}
}

var _ interfaces.NetworkBackend = (*Native)(nil)

// Name implements interfaces.NetworkBackend
func (n *Native) Name() string {
	return constants.BackendBridge
}

// ApplyBridge creates the bridge and converges its ports to ifaces
func (n *Native) ApplyBridge(ctx context.Context, bridge entities.BridgeConfig, ifaces []string) error {
	members := append([]string(nil), ifaces...)
	if bridge.VLAN != nil {
		if err := n.links.CreateVLAN(ctx, bridge.VLAN.Parent, bridge.VLAN.Tag); err != nil {
			return err
		}
		members = append([]string{ip.VLANName(bridge.VLAN.Parent, bridge.VLAN.Tag)}, members...)
	}

	if err := n.bridges.CreateBridge(ctx, bridge.Name); err != nil {
		return err
	}
	n.bridges.SetForwardingDelay(ctx, bridge.Name, 0)
	if err := n.bridges.SetInterfaces(ctx, bridge.Name, members); err != nil {
		return err
	}
	if bridge.IgmpSnooping != nil {
		n.bridges.SetIgmpSnooping(bridge.Name, *bridge.IgmpSnooping)
	}
	if bridge.MAC != "" {
		n.links.SetMAC(ctx, bridge.Name, bridge.MAC)
	}
	return n.links.LinkSetUp(ctx, bridge.Name)
}

// DestroyBridge implements interfaces.NetworkBackend
func (n *Native) DestroyBridge(ctx context.Context, name string) error {
	return n.bridges.DestroyBridge(ctx, name)
}

// ApplyBond creates the bond master, converges its properties and slaves,
// and attaches it to bridge when one is named
func (n *Native) ApplyBond(ctx context.Context, bridge string, bond entities.BondConfig) error {
	if err := n.bonds.AddBondMaster(ctx, bond.Name); err != nil {
		return err
	}
	if err := n.bonds.SetBondProperties(ctx, bond.Name, bond.Properties); err != nil {
		return err
	}
	if err := n.bonds.SetBondSlaves(ctx, bond.Name, bond.Slaves); err != nil {
		return err
	}
	if bond.MAC != "" {
		n.links.SetMAC(ctx, bond.Name, bond.MAC)
	}
	if err := n.links.LinkSetUp(ctx, bond.Name); err != nil {
		return err
	}
	if bridge == "" {
		return nil
	}
	return n.bridges.AddInterface(ctx, bridge, bond.Name)
}

// DestroyBond detaches the bond from bridge and removes the master
func (n *Native) DestroyBond(ctx context.Context, bridge, name string) error {
	if bridge != "" {
		if err := n.bridges.RemoveInterface(ctx, bridge, name); err != nil {
			return err
		}
	}
	n.logger.WithField("bond", name).Info("Destroying bond master")
	n.bonds.RemoveBondMaster(ctx, name)
	return nil
}

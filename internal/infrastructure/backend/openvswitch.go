package backend

import (
	"context"

	"netconfd/internal/domain/constants"
	"netconfd/internal/domain/entities"
	"netconfd/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// OpenVSwitch converges bridges and bonds on the OVS switch
type OpenVSwitch struct {
	sw     Switch
	links  LinkController
	logger *logrus.Logger
}

// NewOpenVSwitch creates the switch backend
func NewOpenVSwitch(sw Switch, links LinkController, logger *logrus.Logger) *OpenVSwitch {
	return &OpenVSwitch{sw: sw, links: links, logger: logger}
}

var _ interfaces.NetworkBackend = (*OpenVSwitch)(nil)

// Name implements interfaces.NetworkBackend
func (o *OpenVSwitch) Name() string {
	return constants.BackendOpenVSwitch
}

// ApplyBridge creates the bridge, attaches ifaces as plain ports of a real
// bridge, installs the default flows on a new bridge and brings it up
func (o *OpenVSwitch) ApplyBridge(ctx context.Context, bridge entities.BridgeConfig, ifaces []string) error {
	created, err := o.sw.CreateBridge(ctx, bridge)
	if err != nil {
		return err
	}

	if !bridge.IsFakeBridge() {
		for _, iface := range ifaces {
			if err := o.sw.CreatePort(ctx, iface, bridge.Name, false, ""); err != nil {
				return err
			}
		}
		if created && bridge.MAC != "" && len(ifaces) > 0 {
			o.sw.AddDefaultFlows(ctx, bridge.Name, bridge.MAC, ifaces)
		}
		if bridge.IgmpSnooping != nil && *bridge.IgmpSnooping {
			o.sw.InjectIgmpQuery(ctx, bridge.Name)
		}
	}

	return o.links.LinkSetUp(ctx, bridge.Name)
}

// DestroyBridge implements interfaces.NetworkBackend
func (o *OpenVSwitch) DestroyBridge(ctx context.Context, name string) error {
	return o.sw.DestroyBridge(ctx, name)
}

// ApplyBond creates the bond port on bridge and brings its members up
func (o *OpenVSwitch) ApplyBond(ctx context.Context, bridge string, bond entities.BondConfig) error {
	if err := o.sw.CreateBond(ctx, bridge, bond); err != nil {
		return err
	}
	for _, slave := range bond.Slaves {
		if err := o.links.LinkSetUp(ctx, slave); err != nil {
			return err
		}
	}
	return nil
}

// DestroyBond removes the bond port and its interfaces
func (o *OpenVSwitch) DestroyBond(ctx context.Context, _ string, name string) error {
	o.logger.WithField("bond", name).Info("Destroying bond port")
	return o.sw.DestroyPort(ctx, name)
}

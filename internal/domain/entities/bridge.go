package entities

import (
	"errors"
	"fmt"

	"netconfd/pkg/utils"
)

// VLANParent names the real bridge a fake bridge overlays, and its tag
type VLANParent struct {
	Parent string
	Tag    int
}

// ExternalID is a single key/value pair stored on a switch bridge
type ExternalID struct {
	Key   string
	Value string
}

// InBandOverride selects the disable-in-band handling of a bridge. A nil
// *InBandOverride leaves the setting alone; Value == "" removes it.
type InBandOverride struct {
	Value string
}

var ErrVLANParentIsSelf = errors.New("fake bridge cannot be its own parent")

// BridgeConfig is the desired state of a bridge
type BridgeConfig struct {
	Name              string
	VLAN              *VLANParent
	MAC               string
	FailMode          string
	ExternalID        *ExternalID
	IgmpSnooping      *bool
	DisableInBand     *InBandOverride
	VLANBugWorkaround *bool
}

// IsFakeBridge reports whether the bridge is a VLAN overlay
func (b *BridgeConfig) IsFakeBridge() bool {
	return b.VLAN != nil
}

// Validate checks the bridge name, the VLAN parent and the MAC
func (b *BridgeConfig) Validate() error {
	if err := utils.ValidateInterfaceName(b.Name); err != nil {
		return fmt.Errorf("bridge %q: %w", b.Name, err)
	}
	if b.VLAN != nil {
		if err := utils.ValidateInterfaceName(b.VLAN.Parent); err != nil {
			return fmt.Errorf("bridge %s parent %q: %w", b.Name, b.VLAN.Parent, err)
		}
		if b.VLAN.Parent == b.Name {
			return ErrVLANParentIsSelf
		}
		if err := utils.ValidateVLANTag(b.VLAN.Tag); err != nil {
			return err
		}
	}
	if b.MAC != "" {
		if err := utils.ValidateMAC(b.MAC); err != nil {
			return err
		}
	}
	return nil
}

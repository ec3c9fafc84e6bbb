package entities

import (
	"errors"
	"fmt"

	"netconfd/pkg/utils"
)

// Well-known bond property keys
const (
	BondPropMode               = "mode"
	BondPropHashingAlgorithm   = "hashing-algorithm"
	BondPropUpdelay            = "updelay"
	BondPropDowndelay          = "downdelay"
	BondPropMiimon             = "miimon"
	BondPropUseCarrier         = "use_carrier"
	BondPropRebalanceInterval  = "rebalance-interval"
	BondPropLacpTime           = "lacp-time"
	BondPropLacpAggregationKey = "lacp-aggregation-key"
	BondPropLacpFallbackAB     = "lacp-fallback-ab"
	BondPropLacpActorKey       = "lacp-actor-key"
)

var ErrDuplicateSlave = errors.New("bond slave listed more than once")

// BondConfig is the desired state of a bond master
type BondConfig struct {
	Name       string
	Slaves     []string
	Properties map[string]string
	MAC        string
}

// Validate checks the bond name, the slave names and the MAC
func (b *BondConfig) Validate() error {
	if err := utils.ValidateInterfaceName(b.Name); err != nil {
		return fmt.Errorf("bond %q: %w", b.Name, err)
	}
	seen := make(map[string]struct{}, len(b.Slaves))
	for _, slave := range b.Slaves {
		if err := utils.ValidateInterfaceName(slave); err != nil {
			return fmt.Errorf("bond %s slave %q: %w", b.Name, slave, err)
		}
		if slave == b.Name {
			return fmt.Errorf("bond %s cannot enslave itself", b.Name)
		}
		if _, ok := seen[slave]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateSlave, slave)
		}
		seen[slave] = struct{}{}
	}
	if b.MAC != "" {
		if err := utils.ValidateMAC(b.MAC); err != nil {
			return err
		}
	}
	return nil
}

// Property returns a property value and whether it was supplied
func (b *BondConfig) Property(key string) (string, bool) {
	v, ok := b.Properties[key]
	return v, ok
}

package entities

import (
	"fmt"
	"net"
)

// DeviceKind classifies a network device
type DeviceKind string

const (
	KindPhysical   DeviceKind = "physical"
	KindBondMaster DeviceKind = "bond-master"
	KindBridge     DeviceKind = "bridge"
	KindVLAN       DeviceKind = "vlan"
	KindInternal   DeviceKind = "internal"
)

// IPAddress is an address together with its prefix length
type IPAddress struct {
	IP        net.IP
	PrefixLen int
}

// String returns the CIDR form used on the ip command line
func (a IPAddress) String() string {
	return fmt.Sprintf("%s/%d", a.IP.String(), a.PrefixLen)
}

// IsIPv6 reports whether the address is an IPv6 address
func (a IPAddress) IsIPv6() bool {
	return a.IP.To4() == nil
}

// NetworkDevice is a snapshot of a device as observed on the host. It is
// never cached; every reconciliation reads it again.
type NetworkDevice struct {
	Name      string
	Kind      DeviceKind
	Up        bool
	MTU       int
	MAC       string
	Carrier   bool
	Addresses []IPAddress
	Driver    string
	PCIBusID  string
}

package ip

import (
	"fmt"
	"net"
)

// InterfaceID returns the modified EUI-64 identifier of a 48-bit MAC: the
// universal/local bit of byte 0 flipped and ff:fe inserted after byte 2
func InterfaceID(mac string) ([]byte, error) {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return nil, err
	}
	if len(hw) != 6 {
		return nil, fmt.Errorf("%s is not a 48-bit MAC address", mac)
	}
	return []byte{hw[0] ^ 0x02, hw[1], hw[2], 0xff, 0xfe, hw[3], hw[4], hw[5]}, nil
}

// LinkLocalAddr returns the fe80::/64 address derived from a MAC
func LinkLocalAddr(mac string) (string, error) {
	id, err := InterfaceID(mac)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("fe80::%x:%x:%x:%x/64",
		uint16(id[0])<<8|uint16(id[1]),
		uint16(id[2])<<8|uint16(id[3]),
		uint16(id[4])<<8|uint16(id[5]),
		uint16(id[6])<<8|uint16(id[7])), nil
}

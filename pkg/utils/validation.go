package utils

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

const maxInterfaceNameLen = 15

var (
	// Linux interface names: no slash, no whitespace, no colon
	interfacePattern = regexp.MustCompile(`^[^/\s:]+$`)

	// Hostname pattern
	hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-\.]*[a-zA-Z0-9]$`)
)

// ValidateInterfaceName checks a kernel network device name
func ValidateInterfaceName(name string) error {
	if name == "" {
		return fmt.Errorf("interface name is empty")
	}

	if len(name) > maxInterfaceNameLen {
		return fmt.Errorf("interface name too long: %s (max %d characters)", name, maxInterfaceNameLen)
	}

	if name == "." || name == ".." || !interfacePattern.MatchString(name) {
		return fmt.Errorf("invalid interface name: %s", name)
	}

	return nil
}

// ValidateVLANTag checks an 802.1Q tag
func ValidateVLANTag(tag int) error {
	if tag < 0 || tag > 4094 {
		return fmt.Errorf("vlan tag out of range: %d (0-4094)", tag)
	}
	return nil
}

// ValidateMAC checks a colon separated 48-bit MAC address
func ValidateMAC(mac string) error {
	hw, err := net.ParseMAC(mac)
	if err != nil || len(hw) != 6 || !strings.Contains(mac, ":") {
		return fmt.Errorf("invalid MAC address: %s", mac)
	}
	return nil
}

// ValidateHostname checks a hostname
func ValidateHostname(hostname string) error {
	if hostname == "" {
		return fmt.Errorf("hostname is empty")
	}

	if len(hostname) > 253 {
		return fmt.Errorf("hostname too long: %d characters (max 253)", len(hostname))
	}

	if !hostnamePattern.MatchString(hostname) {
		return fmt.Errorf("invalid hostname: %s", hostname)
	}

	return nil
}

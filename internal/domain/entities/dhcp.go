package entities

import (
	"fmt"

	"netconfd/pkg/utils"
)

// DhcpOptions are the per-interface client options
type DhcpOptions struct {
	// GatewayInterface names the host's default-gateway interface. When it
	// equals the configured interface the client requests routers.
	GatewayInterface string
	// SetDNS requests domain name and name servers
	SetDNS bool
}

// DhcpClientConfig is the desired state of a DHCP client
type DhcpClientConfig struct {
	Interface string
	IPv6      bool
	Options   DhcpOptions
}

// RequestsDefaultRoute reports whether this interface is the gateway interface
func (c *DhcpClientConfig) RequestsDefaultRoute() bool {
	return c.Options.GatewayInterface != "" && c.Options.GatewayInterface == c.Interface
}

// Validate checks the interface names
func (c *DhcpClientConfig) Validate() error {
	if err := utils.ValidateInterfaceName(c.Interface); err != nil {
		return fmt.Errorf("dhcp interface %q: %w", c.Interface, err)
	}
	if c.Options.GatewayInterface != "" {
		if err := utils.ValidateInterfaceName(c.Options.GatewayInterface); err != nil {
			return fmt.Errorf("dhcp gateway interface %q: %w", c.Options.GatewayInterface, err)
		}
	}
	return nil
}

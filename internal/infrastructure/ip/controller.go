package ip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"netconfd/internal/domain/entities"
	"netconfd/internal/domain/interfaces"
	"netconfd/internal/infrastructure/config"
	"netconfd/internal/infrastructure/metrics"

	"github.com/sirupsen/logrus"
)

// DeviceRegistry reports which devices exist on the host
type DeviceRegistry interface {
	Exists(dev string) bool
}

// Controller drives the ip tool for link, address and route changes
type Controller struct {
	executor interfaces.CommandExecutor
	devices  DeviceRegistry
	path     string
	opts     interfaces.RunOptions
	logger   *logrus.Logger
}

// NewController creates a Controller
func NewController(executor interfaces.CommandExecutor, devices DeviceRegistry, cfg *config.Config, logger *logrus.Logger) *Controller {
	return &Controller{
		executor: executor,
		devices:  devices,
		path:     cfg.Tools.IP,
		opts:     interfaces.RunOptions{Timeout: cfg.Timeouts.Command},
		logger:   logger,
	}
}

func (c *Controller) call(ctx context.Context, args ...string) (string, error) {
	return c.executor.Run(ctx, c.path, args, c.opts)
}

func (c *Controller) advisory(operation, dev string, err error) {
	metrics.RecordAdvisoryFailure(operation)
	c.logger.WithFields(logrus.Fields{
		"operation": operation,
		"device":    dev,
	}).WithError(err).Warn("Ignoring failed link operation")
}

// Link returns the values of attr in the link show output of dev
func (c *Controller) Link(ctx context.Context, dev, attr string) ([]string, error) {
	output, err := c.call(ctx, "link", "show", "dev", dev)
	if err != nil {
		return nil, err
	}
	return Find(output, attr), nil
}

// Addr returns the values of attr in the addr show output of dev
func (c *Controller) Addr(ctx context.Context, dev, attr string) ([]string, error) {
	output, err := c.call(ctx, "addr", "show", "dev", dev)
	if err != nil {
		return nil, err
	}
	return Find(output, attr), nil
}

// GetLinkFlags returns the flags of dev, such as UP and LOWER_UP
func (c *Controller) GetLinkFlags(ctx context.Context, dev string) ([]string, error) {
	output, err := c.call(ctx, "link", "show", "dev", dev)
	if err != nil {
		return nil, err
	}
	return ParseLinkFlags(output), nil
}

// IsUp reports whether dev is administratively up. Any failure reads as down.
func (c *Controller) IsUp(ctx context.Context, dev string) bool {
	flags, err := c.GetLinkFlags(ctx, dev)
	if err != nil {
		return false
	}
	for _, flag := range flags {
		if flag == "UP" {
			return true
		}
	}
	return false
}

// LinkSetUp brings dev up
func (c *Controller) LinkSetUp(ctx context.Context, dev string) error {
	_, err := c.call(ctx, "link", "set", dev, "up")
	return err
}

// LinkSetDown brings dev down. A device that is already down is left alone.
func (c *Controller) LinkSetDown(ctx context.Context, dev string) error {
	if !c.IsUp(ctx, dev) {
		return nil
	}
	_, err := c.call(ctx, "link", "set", dev, "down")
	return err
}

// SetMTU sets the MTU of dev. Failures are logged only.
func (c *Controller) SetMTU(ctx context.Context, dev string, mtu int) {
	if _, err := c.call(ctx, "link", "set", dev, "mtu", strconv.Itoa(mtu)); err != nil {
		c.advisory("set_mtu", dev, err)
	}
}

// SetMAC sets the MAC address of dev. Failures are logged only.
func (c *Controller) SetMAC(ctx context.Context, dev, mac string) {
	if _, err := c.call(ctx, "link", "set", dev, "address", mac); err != nil {
		c.advisory("set_mac", dev, err)
	}
}

// GetMTU returns the MTU of dev
func (c *Controller) GetMTU(ctx context.Context, dev string) (int, error) {
	values, err := c.Link(ctx, dev, "mtu")
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("no mtu reported for %s", dev)
	}
	return strconv.Atoi(values[0])
}

// GetMAC returns the ethernet address of dev
func (c *Controller) GetMAC(ctx context.Context, dev string) (string, error) {
	values, err := c.Link(ctx, dev, "link/ether")
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", fmt.Errorf("no ethernet address reported for %s", dev)
	}
	return values[0], nil
}

// GetIPv4 returns the IPv4 addresses of dev
func (c *Controller) GetIPv4(ctx context.Context, dev string) ([]entities.IPAddress, error) {
	output, err := c.call(ctx, "addr", "show", "dev", dev)
	if err != nil {
		return nil, err
	}
	return ParseAddrs(output, "inet"), nil
}

// GetIPv6 returns the IPv6 addresses of dev
func (c *Controller) GetIPv6(ctx context.Context, dev string) ([]entities.IPAddress, error) {
	output, err := c.call(ctx, "addr", "show", "dev", dev)
	if err != nil {
		return nil, err
	}
	return ParseAddrs(output, "inet6"), nil
}

// SetIPAddr adds an address to dev. IPv4 addresses also get the derived
// broadcast address.
func (c *Controller) SetIPAddr(ctx context.Context, dev string, addr entities.IPAddress) error {
	args := []string{"addr", "add", addr.String(), "dev", dev}
	if !addr.IsIPv6() {
		args = append(args, "broadcast", "+")
	}
	_, err := c.call(ctx, args...)
	return err
}

// DeleteIPAddr removes an address from dev
func (c *Controller) DeleteIPAddr(ctx context.Context, dev string, addr entities.IPAddress) error {
	_, err := c.call(ctx, "addr", "del", addr.String(), "dev", dev)
	return err
}

// FlushIPAddr removes every address of one family from dev
func (c *Controller) FlushIPAddr(ctx context.Context, dev string, ipv6 bool) error {
	family := "-4"
	if ipv6 {
		family = "-6"
	}
	_, err := c.call(ctx, family, "addr", "flush", "dev", dev)
	return err
}

// RouteShow returns the raw route listing of dev
func (c *Controller) RouteShow(ctx context.Context, dev string) (string, error) {
	return c.call(ctx, "route", "show", "dev", dev)
}

// SetRoute replaces the route to network via gateway on dev, or the default
// route when network is nil. Failures are logged only.
func (c *Controller) SetRoute(ctx context.Context, dev string, network *entities.IPAddress, gateway net.IP) {
	dest := "default"
	if network != nil {
		dest = network.String()
	}
	if _, err := c.call(ctx, "route", "replace", dest, "via", gateway.String(), "dev", dev); err != nil {
		c.advisory("set_route", dev, err)
	}
}

// SetGateway replaces the default route of dev
func (c *Controller) SetGateway(ctx context.Context, dev string, gateway net.IP) {
	c.SetRoute(ctx, dev, nil, gateway)
}

// VLANName returns the name of the tagged sub-interface of parent
func VLANName(parent string, tag int) string {
	return fmt.Sprintf("%s.%d", parent, tag)
}

// CreateVLAN creates the 802.1Q sub-interface <parent>.<tag> unless it exists
func (c *Controller) CreateVLAN(ctx context.Context, parent string, tag int) error {
	name := VLANName(parent, tag)
	if c.devices.Exists(name) {
		return nil
	}
	_, err := c.call(ctx, "link", "add", "link", parent, "name", name, "type", "vlan", "id", strconv.Itoa(tag))
	return err
}

// DestroyVLAN deletes a sub-interface if it exists
func (c *Controller) DestroyVLAN(ctx context.Context, name string) error {
	if !c.devices.Exists(name) {
		return nil
	}
	_, err := c.call(ctx, "link", "delete", name)
	return err
}

// WithLinksDown brings down those of devs that are up, runs body, and brings
// the same devices back up whatever body returns
func (c *Controller) WithLinksDown(ctx context.Context, devs []string, body func() error) (err error) {
	var wasUp []string
	for _, dev := range devs {
		if c.IsUp(ctx, dev) {
			wasUp = append(wasUp, dev)
		}
	}

	defer func() {
		for _, dev := range wasUp {
			if upErr := c.LinkSetUp(ctx, dev); upErr != nil {
				c.logger.WithError(upErr).WithField("device", dev).Error("Failed to restore link state")
				err = errors.Join(err, upErr)
			}
		}
	}()

	for _, dev := range wasUp {
		if _, downErr := c.call(ctx, "link", "set", dev, "down"); downErr != nil {
			return downErr
		}
	}
	return body()
}

// GetIPv6LinkLocalAddr derives the link-local address of dev from its MAC
func (c *Controller) GetIPv6LinkLocalAddr(ctx context.Context, dev string) (string, error) {
	mac, err := c.GetMAC(ctx, dev)
	if err != nil {
		return "", err
	}
	return LinkLocalAddr(mac)
}

// GetIPv6InterfaceID returns the EUI-64 interface identifier of dev
func (c *Controller) GetIPv6InterfaceID(ctx context.Context, dev string) ([]byte, error) {
	mac, err := c.GetMAC(ctx, dev)
	if err != nil {
		return nil, err
	}
	return InterfaceID(mac)
}

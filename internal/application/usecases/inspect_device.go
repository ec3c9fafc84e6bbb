package usecases

import (
	"context"

	"netconfd/internal/domain/entities"
	"netconfd/internal/domain/errors"

	"github.com/sirupsen/logrus"
)

// DeviceFacts answers device questions from the per-device attribute tree
type DeviceFacts interface {
	Exists(dev string) bool
	Classify(dev string) entities.DeviceKind
	GetCarrier(dev string) bool
	GetDriverName(dev string) (string, bool)
	GetPCIBusPath(dev string) string
}

// LinkFacts answers device questions through the ip tool
type LinkFacts interface {
	IsUp(ctx context.Context, dev string) bool
	GetMTU(ctx context.Context, dev string) (int, error)
	GetMAC(ctx context.Context, dev string) (string, error)
	GetIPv4(ctx context.Context, dev string) ([]entities.IPAddress, error)
	GetIPv6(ctx context.Context, dev string) ([]entities.IPAddress, error)
}

// InspectDeviceUseCase builds a fresh snapshot of one device
type InspectDeviceUseCase struct {
	devices DeviceFacts
	links   LinkFacts
	logger  *logrus.Logger
}

// NewInspectDeviceUseCase creates a new InspectDeviceUseCase
func NewInspectDeviceUseCase(devices DeviceFacts, links LinkFacts, logger *logrus.Logger) *InspectDeviceUseCase {
	return &InspectDeviceUseCase{devices: devices, links: links, logger: logger}
}

// Execute returns the device snapshot, or a NotFoundError when dev is absent
func (uc *InspectDeviceUseCase) Execute(ctx context.Context, dev string) (*entities.NetworkDevice, error) {
	if !uc.devices.Exists(dev) {
		return nil, errors.NewNotFoundError("device " + dev + " not found")
	}

	device := &entities.NetworkDevice{
		Name:     dev,
		Kind:     uc.devices.Classify(dev),
		Up:       uc.links.IsUp(ctx, dev),
		Carrier:  uc.devices.GetCarrier(dev),
		PCIBusID: uc.devices.GetPCIBusPath(dev),
	}
	if driver, ok := uc.devices.GetDriverName(dev); ok {
		device.Driver = driver
	}

	mtu, err := uc.links.GetMTU(ctx, dev)
	if err != nil {
		return nil, errors.NewSystemError("failed to read mtu of "+dev, err)
	}
	device.MTU = mtu

	mac, err := uc.links.GetMAC(ctx, dev)
	if err != nil {
		return nil, errors.NewSystemError("failed to read mac of "+dev, err)
	}
	device.MAC = mac

	v4, err := uc.links.GetIPv4(ctx, dev)
	if err != nil {
		return nil, errors.NewSystemError("failed to read ipv4 addresses of "+dev, err)
	}
	v6, err := uc.links.GetIPv6(ctx, dev)
	if err != nil {
		// IPv6 may be disabled on the host
		uc.logger.WithError(err).WithField("device", dev).Debug("No IPv6 addresses")
	}
	device.Addresses = append(v4, v6...)

	return device, nil
}

package usecases

import (
	"context"

	"netconfd/internal/domain/entities"
	"netconfd/internal/domain/errors"
	"netconfd/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// ReconcileDHCPUseCase keeps the DHCP client of an interface in step with
// its desired configuration
type ReconcileDHCPUseCase struct {
	client interfaces.DhcpClient
	reporter
}

// NewReconcileDHCPUseCase creates a new ReconcileDHCPUseCase
func NewReconcileDHCPUseCase(
	client interfaces.DhcpClient,
	observer interfaces.ReconciliationObserver,
	clock interfaces.Clock,
	logger *logrus.Logger,
) *ReconcileDHCPUseCase {
	return &ReconcileDHCPUseCase{
		client:   client,
		reporter: reporter{observer: observer, clock: clock, logger: logger},
	}
}

// ReconcileDHCPInput is the desired DHCP state of an interface. A disabled
// client is stopped if it runs.
type ReconcileDHCPInput struct {
	Client  entities.DhcpClientConfig
	Enabled bool
}

// Execute validates the input and starts, restarts or stops the client
func (uc *ReconcileDHCPUseCase) Execute(ctx context.Context, input ReconcileDHCPInput) error {
	start := uc.clock.Now()
	fields := logrus.Fields{
		"kind":      KindDHCP,
		"interface": input.Client.Interface,
		"ipv6":      input.Client.IPv6,
		"enabled":   input.Enabled,
	}

	if err := input.Client.Validate(); err != nil {
		return uc.finish(KindDHCP, start, fields, errors.NewValidationError("invalid dhcp configuration", err))
	}

	if !input.Enabled {
		if !uc.client.IsRunning(input.Client.Interface, input.Client.IPv6) {
			return uc.finish(KindDHCP, start, fields, nil)
		}
		if err := uc.client.Stop(ctx, input.Client.Interface, input.Client.IPv6); err != nil {
			return uc.finish(KindDHCP, start, fields, errors.NewSystemError("failed to stop dhcp client on "+input.Client.Interface, err))
		}
		return uc.finish(KindDHCP, start, fields, nil)
	}

	if err := uc.client.EnsureRunning(ctx, input.Client); err != nil {
		return uc.finish(KindDHCP, start, fields, errors.NewSystemError("failed to run dhcp client on "+input.Client.Interface, err))
	}
	return uc.finish(KindDHCP, start, fields, nil)
}

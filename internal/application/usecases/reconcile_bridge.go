package usecases

import (
	"context"

	"netconfd/internal/domain/entities"
	"netconfd/internal/domain/errors"
	"netconfd/internal/domain/interfaces"
	"netconfd/pkg/utils"

	"github.com/sirupsen/logrus"
)

// ReconcileBridgeUseCase converges one bridge toward its desired state
type ReconcileBridgeUseCase struct {
	backend interfaces.NetworkBackend
	reporter
}

// NewReconcileBridgeUseCase creates a new ReconcileBridgeUseCase
func NewReconcileBridgeUseCase(
	backend interfaces.NetworkBackend,
	observer interfaces.ReconciliationObserver,
	clock interfaces.Clock,
	logger *logrus.Logger,
) *ReconcileBridgeUseCase {
	return &ReconcileBridgeUseCase{
		backend:  backend,
		reporter: reporter{observer: observer, clock: clock, logger: logger},
	}
}

// ReconcileBridgeInput is the desired state of a bridge and its uplinks
type ReconcileBridgeInput struct {
	Bridge     entities.BridgeConfig
	Interfaces []string
}

// Execute validates the input and applies it through the backend
func (uc *ReconcileBridgeUseCase) Execute(ctx context.Context, input ReconcileBridgeInput) error {
	start := uc.clock.Now()
	fields := logrus.Fields{
		"kind":       KindBridge,
		"backend":    uc.backend.Name(),
		"bridge":     input.Bridge.Name,
		"interfaces": input.Interfaces,
	}
	if input.Bridge.VLAN != nil {
		fields["parent"] = input.Bridge.VLAN.Parent
		fields["tag"] = input.Bridge.VLAN.Tag
	}

	if err := input.Bridge.Validate(); err != nil {
		return uc.finish(KindBridge, start, fields, errors.NewValidationError("invalid bridge configuration", err))
	}
	for _, iface := range input.Interfaces {
		if err := utils.ValidateInterfaceName(iface); err != nil {
			return uc.finish(KindBridge, start, fields, errors.NewValidationError("invalid bridge interface "+iface, err))
		}
	}

	if err := uc.backend.ApplyBridge(ctx, input.Bridge, input.Interfaces); err != nil {
		return uc.finish(KindBridge, start, fields, errors.NewSystemError("failed to apply bridge "+input.Bridge.Name, err))
	}
	return uc.finish(KindBridge, start, fields, nil)
}

// Remove deletes a bridge
func (uc *ReconcileBridgeUseCase) Remove(ctx context.Context, name string) error {
	start := uc.clock.Now()
	fields := logrus.Fields{
		"kind":    KindBridge,
		"backend": uc.backend.Name(),
		"bridge":  name,
		"remove":  true,
	}

	if err := utils.ValidateInterfaceName(name); err != nil {
		return uc.finish(KindBridge, start, fields, errors.NewValidationError("invalid bridge name", err))
	}
	if err := uc.backend.DestroyBridge(ctx, name); err != nil {
		return uc.finish(KindBridge, start, fields, errors.NewSystemError("failed to remove bridge "+name, err))
	}
	return uc.finish(KindBridge, start, fields, nil)
}

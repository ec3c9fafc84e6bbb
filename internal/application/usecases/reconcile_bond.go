package usecases

import (
	"context"

	"netconfd/internal/domain/entities"
	"netconfd/internal/domain/errors"
	"netconfd/internal/domain/interfaces"
	"netconfd/pkg/utils"

	"github.com/sirupsen/logrus"
)

// ReconcileBondUseCase converges one bond toward its desired state
type ReconcileBondUseCase struct {
	backend interfaces.NetworkBackend
	reporter
}

// NewReconcileBondUseCase creates a new ReconcileBondUseCase
func NewReconcileBondUseCase(
	backend interfaces.NetworkBackend,
	observer interfaces.ReconciliationObserver,
	clock interfaces.Clock,
	logger *logrus.Logger,
) *ReconcileBondUseCase {
	return &ReconcileBondUseCase{
		backend:  backend,
		reporter: reporter{observer: observer, clock: clock, logger: logger},
	}
}

// ReconcileBondInput is the desired state of a bond. Bridge names the
// bridge the bond belongs to, empty for a standalone kernel bond.
type ReconcileBondInput struct {
	Bridge string
	Bond   entities.BondConfig
}

// Execute validates the input and applies it through the backend
func (uc *ReconcileBondUseCase) Execute(ctx context.Context, input ReconcileBondInput) error {
	start := uc.clock.Now()
	fields := logrus.Fields{
		"kind":    KindBond,
		"backend": uc.backend.Name(),
		"bond":    input.Bond.Name,
		"bridge":  input.Bridge,
	}

	if err := input.Bond.Validate(); err != nil {
		return uc.finish(KindBond, start, fields, errors.NewValidationError("invalid bond configuration", err))
	}
	if input.Bridge != "" {
		if err := utils.ValidateInterfaceName(input.Bridge); err != nil {
			return uc.finish(KindBond, start, fields, errors.NewValidationError("invalid bond bridge", err))
		}
	}

	if err := uc.backend.ApplyBond(ctx, input.Bridge, input.Bond); err != nil {
		return uc.finish(KindBond, start, fields, errors.NewSystemError("failed to apply bond "+input.Bond.Name, err))
	}
	return uc.finish(KindBond, start, fields, nil)
}

// Remove deletes a bond
func (uc *ReconcileBondUseCase) Remove(ctx context.Context, bridge, name string) error {
	start := uc.clock.Now()
	fields := logrus.Fields{
		"kind":    KindBond,
		"backend": uc.backend.Name(),
		"bond":    name,
		"bridge":  bridge,
		"remove":  true,
	}

	if err := utils.ValidateInterfaceName(name); err != nil {
		return uc.finish(KindBond, start, fields, errors.NewValidationError("invalid bond name", err))
	}
	if err := uc.backend.DestroyBond(ctx, bridge, name); err != nil {
		return uc.finish(KindBond, start, fields, errors.NewSystemError("failed to remove bond "+name, err))
	}
	return uc.finish(KindBond, start, fields, nil)
}

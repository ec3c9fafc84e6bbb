package usecases

import (
	"time"

	"netconfd/internal/domain/interfaces"
	"netconfd/internal/infrastructure/metrics"

	"github.com/sirupsen/logrus"
)

// Reconciliation kinds as reported to metrics and health
const (
	KindBond   = "bond"
	KindBridge = "bridge"
	KindDHCP   = "dhcp"
)

// reporter records the outcome of one reconciliation call
type reporter struct {
	observer interfaces.ReconciliationObserver
	clock    interfaces.Clock
	logger   *logrus.Logger
}

func (r reporter) finish(kind string, start time.Time, fields logrus.Fields, err error) error {
	elapsed := r.clock.Now().Sub(start)
	metrics.RecordReconciliation(kind, err == nil, elapsed.Seconds())
	r.observer.RecordReconciliation(kind, err)

	entry := r.logger.WithFields(fields).WithField("duration", elapsed)
	if err != nil {
		entry.WithError(err).Error("Reconciliation failed")
		return err
	}
	entry.Info("Reconciliation completed")
	return nil
}

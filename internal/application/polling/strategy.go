package polling

import (
	"context"
	"math"
	"time"

	"netconfd/internal/infrastructure/metrics"

	"github.com/sirupsen/logrus"
)

// Strategy decides how long to wait before the next run of a periodic task
type Strategy interface {
	// NextInterval returns the wait after a run that succeeded or failed
	NextInterval(success bool) time.Duration
	// Reset returns the strategy to its initial state
	Reset()
}

// ExponentialBackoffStrategy waits baseInterval after a success and grows
// the wait by multiplier on every consecutive failure, up to maxInterval
type ExponentialBackoffStrategy struct {
	baseInterval   time.Duration
	maxInterval    time.Duration
	multiplier     float64
	currentBackoff int
	logger         *logrus.Logger
}

// NewExponentialBackoffStrategy creates a new ExponentialBackoffStrategy. A
// multiplier of 1 or less falls back to 2.
func NewExponentialBackoffStrategy(
	baseInterval time.Duration,
	maxInterval time.Duration,
	multiplier float64,
	logger *logrus.Logger,
) *ExponentialBackoffStrategy {
	if multiplier <= 1 {
		multiplier = 2.0
	}

	return &ExponentialBackoffStrategy{
		baseInterval: baseInterval,
		maxInterval:  maxInterval,
		multiplier:   multiplier,
		logger:       logger,
	}
}

// NextInterval implements Strategy
func (s *ExponentialBackoffStrategy) NextInterval(success bool) time.Duration {
	if success {
		if s.currentBackoff > 0 {
			s.logger.Debug("Resetting backoff after success")
			s.currentBackoff = 0
			metrics.SetProbeBackoffLevel(0)
		}
		return s.baseInterval
	}

	s.currentBackoff++
	metrics.SetProbeBackoffLevel(float64(s.currentBackoff))

	backoffDuration := float64(s.baseInterval) * math.Pow(s.multiplier, float64(s.currentBackoff-1))
	nextInterval := time.Duration(backoffDuration)
	if nextInterval > s.maxInterval {
		nextInterval = s.maxInterval
	}

	s.logger.WithFields(logrus.Fields{
		"backoff_count": s.currentBackoff,
		"next_interval": nextInterval,
		"max_interval":  s.maxInterval,
	}).Debug("Exponential backoff calculated")

	return nextInterval
}

// Reset implements Strategy
func (s *ExponentialBackoffStrategy) Reset() {
	s.currentBackoff = 0
	metrics.SetProbeBackoffLevel(0)
}

// PollingController runs a task on the schedule of a Strategy
type PollingController struct {
	strategy Strategy
	logger   *logrus.Logger
}

// NewPollingController creates a new PollingController
func NewPollingController(strategy Strategy, logger *logrus.Logger) *PollingController {
	return &PollingController{
		strategy: strategy,
		logger:   logger,
	}
}

// Start runs task after every interval until ctx is done. The first run
// happens one base interval after Start.
func (c *PollingController) Start(ctx context.Context, task func(context.Context) error) error {
	timer := time.NewTimer(c.strategy.NextInterval(true))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			err := task(ctx)
			if err != nil {
				c.logger.WithError(err).Error("Polling task failed")
			}
			timer.Reset(c.strategy.NextInterval(err == nil))
		}
	}
}

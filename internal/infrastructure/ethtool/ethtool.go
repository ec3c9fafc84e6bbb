package ethtool

import (
	"context"

	"netconfd/internal/domain/interfaces"
	"netconfd/internal/infrastructure/config"
	"netconfd/internal/infrastructure/metrics"

	"github.com/sirupsen/logrus"
)

// Option is one key/value pair on the ethtool command line. Order is kept.
type Option struct {
	Key   string
	Value string
}

// Tool wraps the NIC-tuning tool
type Tool struct {
	executor interfaces.CommandExecutor
	path     string
	opts     interfaces.RunOptions
	logger   *logrus.Logger
}

// NewTool creates a Tool
func NewTool(executor interfaces.CommandExecutor, cfg *config.Config, logger *logrus.Logger) *Tool {
	return &Tool{
		executor: executor,
		path:     cfg.Tools.Ethtool,
		opts:     interfaces.RunOptions{Timeout: cfg.Timeouts.Probe},
		logger:   logger,
	}
}

// SetOptions changes link settings such as speed or autoneg
func (t *Tool) SetOptions(ctx context.Context, dev string, options []Option) {
	t.apply(ctx, "-s", dev, options)
}

// SetOffload changes offload settings such as gso or tx
func (t *Tool) SetOffload(ctx context.Context, dev string, options []Option) {
	t.apply(ctx, "-K", dev, options)
}

func (t *Tool) apply(ctx context.Context, flag, dev string, options []Option) {
	if len(options) == 0 {
		return
	}
	args := []string{flag, dev}
	for _, option := range options {
		args = append(args, option.Key, option.Value)
	}
	if _, err := t.executor.Run(ctx, t.path, args, t.opts); err != nil {
		metrics.RecordAdvisoryFailure("ethtool" + flag)
		t.logger.WithFields(logrus.Fields{
			"device": dev,
			"flag":   flag,
		}).WithError(err).Warn("Ignoring failed ethtool call")
	}
}

package ovs

import (
	"context"
	"fmt"

	"netconfd/internal/domain/interfaces"
	"netconfd/internal/infrastructure/config"
	"netconfd/internal/infrastructure/metrics"

	"golang.org/x/sync/semaphore"
)

// Cli runs the OVS control tools. Concurrent ovs-vsctl invocations are
// bounded because the switch database serializes transactions.
type Cli struct {
	executor  interfaces.CommandExecutor
	vsctl     string
	ofctl     string
	appctl    string
	sem       *semaphore.Weighted
	dbTimeout string
	timeout   interfaces.RunOptions
}

// NewCli creates the production SwitchCli
func NewCli(executor interfaces.CommandExecutor, cfg *config.Config) interfaces.SwitchCli {
	return &Cli{
		executor:  executor,
		vsctl:     cfg.Tools.OVSVsctl,
		ofctl:     cfg.Tools.OVSOfctl,
		appctl:    cfg.Tools.OVSAppctl,
		sem:       semaphore.NewWeighted(int64(cfg.OVS.VsctlConcurrency)),
		dbTimeout: fmt.Sprintf("--timeout=%d", int(cfg.OVS.DBTimeout.Seconds())),
		timeout:   interfaces.RunOptions{Timeout: cfg.Timeouts.Command},
	}
}

func (c *Cli) run(ctx context.Context, path string, logOutput bool, args []string) (string, error) {
	opts := c.timeout
	opts.LogOutput = logOutput
	return c.executor.Run(ctx, path, args, opts)
}

// Vsctl runs ovs-vsctl with the database timeout, waiting for a free slot
func (c *Cli) Vsctl(ctx context.Context, logOutput bool, args ...string) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)

	metrics.AddVsctlInFlight(1)
	defer metrics.AddVsctlInFlight(-1)

	return c.run(ctx, c.vsctl, logOutput, append([]string{c.dbTimeout}, args...))
}

// Ofctl runs ovs-ofctl
func (c *Cli) Ofctl(ctx context.Context, logOutput bool, args ...string) (string, error) {
	return c.run(ctx, c.ofctl, logOutput, args)
}

// Appctl runs ovs-appctl
func (c *Cli) Appctl(ctx context.Context, logOutput bool, args ...string) (string, error) {
	return c.run(ctx, c.appctl, logOutput, args)
}

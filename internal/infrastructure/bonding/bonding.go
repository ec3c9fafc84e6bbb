package bonding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"netconfd/internal/domain/entities"
	domainErrors "netconfd/internal/domain/errors"
	"netconfd/internal/domain/interfaces"
	"netconfd/internal/infrastructure/config"
	"netconfd/internal/infrastructure/metrics"
	"netconfd/internal/infrastructure/sysfs"
	"netconfd/pkg/utils"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// KnownProperties are the bond parameters read back from the driver and
// compared before any change
var KnownProperties = []string{
	entities.BondPropMode,
	entities.BondPropUpdelay,
	entities.BondPropDowndelay,
	entities.BondPropMiimon,
	entities.BondPropUseCarrier,
}

// LinkController brings devices down around unsafe changes
type LinkController interface {
	WithLinksDown(ctx context.Context, devs []string, body func() error) error
}

// Manager drives the kernel bonding driver through its control files
type Manager struct {
	executor    interfaces.CommandExecutor
	fs          afero.Fs
	store       *sysfs.Store
	links       LinkController
	mastersPath string
	modprobe    string
	probeOpts   interfaces.RunOptions
	removal     utils.RetryConfig
	logger      *logrus.Logger
}

// NewManager creates a Manager
func NewManager(executor interfaces.CommandExecutor, fs afero.Fs, store *sysfs.Store, links LinkController, cfg *config.Config, logger *logrus.Logger) *Manager {
	return &Manager{
		executor:    executor,
		fs:          fs,
		store:       store,
		links:       links,
		mastersPath: cfg.Paths.BondingMasters,
		modprobe:    cfg.Tools.Modprobe,
		probeOpts:   interfaces.RunOptions{Timeout: cfg.Timeouts.Command},
		removal:     utils.ConstantRetryConfig(cfg.Bonding.RemoveAttempts, cfg.Bonding.RemoveInterval),
		logger:      logger,
	}
}

// IsDriverLoaded reports whether the bonding driver exposes its masters file
func (m *Manager) IsDriverLoaded() bool {
	ok, err := afero.Exists(m.fs, m.mastersPath)
	return err == nil && ok
}

// LoadBondingDriver loads the bonding module and removes the masters it
// creates by default, so only masters created here are ever present
func (m *Manager) LoadBondingDriver(ctx context.Context) error {
	if _, err := m.executor.Run(ctx, m.modprobe, []string{"bonding"}, m.probeOpts); err != nil {
		return err
	}
	for _, master := range m.GetBondMasters() {
		m.logger.WithField("bond", master).Info("Removing default bond master")
		m.RemoveBondMaster(ctx, master)
	}
	return nil
}

// GetBondMasters lists the bond masters known to the driver
func (m *Manager) GetBondMasters() []string {
	line, err := sysfs.ReadFileLine(m.fs, m.mastersPath)
	if err != nil {
		return nil
	}
	return strings.Fields(line)
}

// IsBondDevice reports whether name is a bond master
func (m *Manager) IsBondDevice(name string) bool {
	for _, master := range m.GetBondMasters() {
		if master == name {
			return true
		}
	}
	return false
}

func (m *Manager) writeMasters(value string) error {
	if err := sysfs.WriteFileLine(m.fs, m.mastersPath, value); err != nil {
		return &domainErrors.AttributeWriteError{Device: "", Attribute: m.mastersPath, Value: value, Cause: err}
	}
	return nil
}

// AddBondMaster creates a bond master, loading the driver first if needed.
// An existing bond master of that name is left alone.
func (m *Manager) AddBondMaster(ctx context.Context, name string) error {
	if !m.IsDriverLoaded() {
		if err := m.LoadBondingDriver(ctx); err != nil {
			return err
		}
	}
	if m.IsBondDevice(name) {
		m.logger.WithField("bond", name).Debug("Bond master already exists")
		return nil
	}
	m.logger.WithField("bond", name).Info("Adding bond master")
	return m.writeMasters("+" + name)
}

// RemoveBondMaster destroys a bond master. Drivers that release their slaves
// slowly can make the first requests fail, so removal is retried; when every
// attempt fails the failure is logged and the master stays.
func (m *Manager) RemoveBondMaster(ctx context.Context, name string) {
	if !m.IsBondDevice(name) {
		return
	}

	err := utils.RetryWithNotify(ctx, m.removal, func() error {
		metrics.RecordBondRemoveAttempt()
		if err := m.writeMasters("-" + name); err != nil {
			return err
		}
		if m.IsBondDevice(name) {
			return fmt.Errorf("bond master %s still present", name)
		}
		return nil
	}, func(attempt int, err error, next time.Duration) {
		m.logger.WithFields(logrus.Fields{
			"bond":    name,
			"attempt": attempt,
			"next":    next,
		}).WithError(err).Debug("Bond master removal did not take effect")
	})
	if err != nil {
		m.logger.WithField("bond", name).WithError(err).Error("Failed to remove bond master")
		return
	}
	m.logger.WithField("bond", name).Info("Removed bond master")
}

// GetBondSlaves lists the slaves of master
func (m *Manager) GetBondSlaves(master string) []string {
	line, err := m.store.ReadOneLine(master, "bonding/slaves")
	if err != nil {
		return nil
	}
	return strings.Fields(line)
}

func (m *Manager) changeSlaves(master, sign string, slaves []string) {
	action := "add"
	if sign == "-" {
		action = "remove"
	}
	for _, slave := range slaves {
		if err := m.store.WriteOneLine(master, "bonding/slaves", sign+slave); err != nil {
			metrics.RecordAdvisoryFailure("bond_slave_" + action)
			m.logger.WithFields(logrus.Fields{
				"bond":   master,
				"slave":  slave,
				"action": action,
			}).WithError(err).Warn("Failed to change bond slave")
			continue
		}
		metrics.RecordSlaveChange(action)
	}
}

// SlaveDiff returns the slaves to detach and to attach to move from current
// to desired
func SlaveDiff(current, desired []string) (toRemove, toAdd []string) {
	return difference(current, desired), difference(desired, current)
}

func difference(a, b []string) []string {
	exclude := make(map[string]struct{}, len(b))
	for _, item := range b {
		exclude[item] = struct{}{}
	}
	var out []string
	for _, item := range a {
		if _, ok := exclude[item]; !ok {
			out = append(out, item)
		}
	}
	return out
}

// SetBondSlaves converges the slave set of master to slaves. Every moved
// device is down while it moves, and removals come before additions.
func (m *Manager) SetBondSlaves(ctx context.Context, master string, slaves []string) error {
	if !m.IsBondDevice(master) {
		return domainErrors.NewNotFoundError(master + " is not a bond device")
	}

	toRemove, toAdd := SlaveDiff(m.GetBondSlaves(master), slaves)
	if len(toRemove) == 0 && len(toAdd) == 0 {
		return nil
	}

	m.logger.WithFields(logrus.Fields{
		"bond":   master,
		"remove": toRemove,
		"add":    toAdd,
	}).Info("Updating bond slaves")

	moving := append(append([]string{}, toAdd...), toRemove...)
	return m.links.WithLinksDown(ctx, moving, func() error {
		m.changeSlaves(master, "-", toRemove)
		m.changeSlaves(master, "+", toAdd)
		return nil
	})
}

// GetBondProperties reads the known properties of master. The mode is
// reported by its name only.
func (m *Manager) GetBondProperties(master string) map[string]string {
	props := make(map[string]string)
	if !m.IsBondDevice(master) {
		return props
	}
	for _, prop := range KnownProperties {
		value, err := m.store.ReadOneLine(master, "bonding/"+prop)
		if err != nil {
			continue
		}
		if prop == entities.BondPropMode {
			if fields := strings.Fields(value); len(fields) > 0 {
				value = fields[0]
			}
		}
		props[prop] = value
	}
	return props
}

// changedProperties returns the known properties whose desired value differs
// from the current value, in KnownProperties order
func changedProperties(current, desired map[string]string) []string {
	var changed []string
	for _, prop := range KnownProperties {
		value, ok := desired[prop]
		if !ok {
			continue
		}
		if cur, ok := current[prop]; ok && cur == value {
			continue
		}
		changed = append(changed, prop)
	}
	return changed
}

// SetBondProperties applies the known properties that differ from the
// driver's current values. The master is taken down and its slaves are
// detached while the parameters change, then reattached.
func (m *Manager) SetBondProperties(ctx context.Context, master string, properties map[string]string) error {
	if !m.IsBondDevice(master) {
		return domainErrors.NewNotFoundError(master + " is not a bond device")
	}

	changed := changedProperties(m.GetBondProperties(master), properties)
	if len(changed) == 0 {
		return nil
	}

	m.logger.WithFields(logrus.Fields{
		"bond":       master,
		"properties": changed,
	}).Info("Updating bond properties")

	return m.links.WithLinksDown(ctx, []string{master}, func() error {
		slaves := m.GetBondSlaves(master)
		m.changeSlaves(master, "-", slaves)
		defer m.changeSlaves(master, "+", slaves)

		for _, prop := range changed {
			if err := m.store.WriteOneLine(master, "bonding/"+prop, properties[prop]); err != nil {
				metrics.RecordAdvisoryFailure("bond_property")
				m.logger.WithFields(logrus.Fields{
					"bond":     master,
					"property": prop,
				}).WithError(err).Warn("Failed to set bond property")
			}
		}
		return nil
	})
}

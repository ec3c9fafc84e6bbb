package container

import (
	"context"
	"path/filepath"

	"netconfd/internal/application/usecases"
	"netconfd/internal/domain/constants"
	"netconfd/internal/domain/interfaces"
	"netconfd/internal/infrastructure/adapters"
	"netconfd/internal/infrastructure/backend"
	"netconfd/internal/infrastructure/bonding"
	"netconfd/internal/infrastructure/bridge"
	"netconfd/internal/infrastructure/config"
	"netconfd/internal/infrastructure/dhcp"
	"netconfd/internal/infrastructure/ethtool"
	"netconfd/internal/infrastructure/health"
	"netconfd/internal/infrastructure/ip"
	"netconfd/internal/infrastructure/ovs"
	"netconfd/internal/infrastructure/sysfs"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Container wires the daemon's components together
type Container struct {
	config *config.Config
	logger *logrus.Logger

	// Infrastructure adapters
	fs              afero.Fs
	fileSystem      interfaces.FileSystem
	commandExecutor interfaces.CommandExecutor
	clock           interfaces.Clock

	// Device layer
	store   *sysfs.Store
	links   *ip.Controller
	ethtool *ethtool.Tool
	bonds   *bonding.Manager
	bridges *bridge.Manager
	ovs     *ovs.Switch
	dhcp    *dhcp.Manager
	backend interfaces.NetworkBackend

	// Services
	healthService *health.HealthService

	// Use cases
	reconcileBondUseCase   *usecases.ReconcileBondUseCase
	reconcileBridgeUseCase *usecases.ReconcileBridgeUseCase
	reconcileDHCPUseCase   *usecases.ReconcileDHCPUseCase
	inspectDeviceUseCase   *usecases.InspectDeviceUseCase
}

// NewContainer creates a new Container on the host file system
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	return newContainer(cfg, afero.NewOsFs(), adapters.NewRealCommandExecutor(logger), logger)
}

func newContainer(cfg *config.Config, fs afero.Fs, executor interfaces.CommandExecutor, logger *logrus.Logger) (*Container, error) {
	container := &Container{
		config:          cfg,
		logger:          logger,
		fs:              fs,
		fileSystem:      adapters.NewFileSystem(fs),
		commandExecutor: executor,
		clock:           adapters.NewRealClock(),
	}

	container.initializeInfrastructure()
	container.initializeServices()
	container.initializeUseCases()

	return container, nil
}

// initializeInfrastructure builds the device layer and selects the backend
func (c *Container) initializeInfrastructure() {
	c.store = sysfs.NewStore(c.fs, c.config.Paths.SysClassNet, c.logger)
	c.links = ip.NewController(c.commandExecutor, c.store, c.config, c.logger)
	c.ethtool = ethtool.NewTool(c.commandExecutor, c.config, c.logger)
	c.bonds = bonding.NewManager(c.commandExecutor, c.fs, c.store, c.links, c.config, c.logger)
	c.bridges = bridge.NewManager(c.commandExecutor, c.store, c.links, c.config, c.logger)
	c.ovs = ovs.NewSwitch(ovs.NewCli(c.commandExecutor, c.config), c.commandExecutor, c.store, c.config, c.logger)
	c.dhcp = dhcp.NewManager(c.commandExecutor, c.fs, c.config, c.logger)

	switch c.config.Backend {
	case constants.BackendBridge:
		c.backend = backend.NewNative(c.bonds, c.bridges, c.links, c.logger)
	default:
		c.backend = backend.NewOpenVSwitch(c.ovs, c.links, c.logger)
	}
}

// initializeServices builds the health service
func (c *Container) initializeServices() {
	c.healthService = health.NewHealthService(c.clock, c.fileSystem, c.backend.Name(), RequiredTools(c.config), c.logger)
}

// initializeUseCases builds the use cases
func (c *Container) initializeUseCases() {
	c.reconcileBondUseCase = usecases.NewReconcileBondUseCase(c.backend, c.healthService, c.clock, c.logger)
	c.reconcileBridgeUseCase = usecases.NewReconcileBridgeUseCase(c.backend, c.healthService, c.clock, c.logger)
	c.reconcileDHCPUseCase = usecases.NewReconcileDHCPUseCase(c.dhcp, c.healthService, c.clock, c.logger)
	c.inspectDeviceUseCase = usecases.NewInspectDeviceUseCase(c.store, c.links, c.logger)
}

// RequiredTools returns the tools the configured backend shells out to,
// keyed by base name
func RequiredTools(cfg *config.Config) map[string]string {
	paths := []string{cfg.Tools.IP, cfg.Tools.Ethtool, cfg.Tools.Dhclient}
	switch cfg.Backend {
	case constants.BackendBridge:
		paths = append(paths, cfg.Tools.Brctl, cfg.Tools.Modprobe)
	default:
		paths = append(paths, cfg.Tools.OVSVsctl, cfg.Tools.OVSOfctl, cfg.Tools.OVSAppctl)
	}

	tools := make(map[string]string, len(paths))
	for _, path := range paths {
		tools[filepath.Base(path)] = path
	}
	return tools
}

// Prepare loads the kernel bonding driver when the native backend needs it
func (c *Container) Prepare(ctx context.Context) error {
	if c.config.Backend != constants.BackendBridge || c.bonds.IsDriverLoaded() {
		return nil
	}
	return c.bonds.LoadBondingDriver(ctx)
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetBackend returns the selected bridging backend
func (c *Container) GetBackend() interfaces.NetworkBackend {
	return c.backend
}

// GetHealthService returns the health service
func (c *Container) GetHealthService() *health.HealthService {
	return c.healthService
}

// GetEthtool returns the NIC tuning tool
func (c *Container) GetEthtool() *ethtool.Tool {
	return c.ethtool
}

// GetSwitch returns the OVS switch
func (c *Container) GetSwitch() *ovs.Switch {
	return c.ovs
}

// GetReconcileBondUseCase returns the bond reconciliation use case
func (c *Container) GetReconcileBondUseCase() *usecases.ReconcileBondUseCase {
	return c.reconcileBondUseCase
}

// GetReconcileBridgeUseCase returns the bridge reconciliation use case
func (c *Container) GetReconcileBridgeUseCase() *usecases.ReconcileBridgeUseCase {
	return c.reconcileBridgeUseCase
}

// GetReconcileDHCPUseCase returns the DHCP reconciliation use case
func (c *Container) GetReconcileDHCPUseCase() *usecases.ReconcileDHCPUseCase {
	return c.reconcileDHCPUseCase
}

// GetInspectDeviceUseCase returns the device inspection use case
func (c *Container) GetInspectDeviceUseCase() *usecases.InspectDeviceUseCase {
	return c.inspectDeviceUseCase
}

// Close releases container resources
func (c *Container) Close() error {
	return nil
}

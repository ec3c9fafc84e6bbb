package config

import (
	"os"
	"strconv"
	"time"

	"netconfd/internal/domain/constants"
	"netconfd/internal/domain/errors"

	"gopkg.in/yaml.v3"
)

// Config is a struct that holds application configuration. It is built once
// at startup and shared read-only by every component.
type Config struct {
	Backend  string         `yaml:"backend"`
	Tools    ToolsConfig    `yaml:"tools"`
	Paths    PathsConfig    `yaml:"paths"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	Bonding  BondingConfig  `yaml:"bonding"`
	OVS      OVSConfig      `yaml:"ovs"`
	Health   HealthConfig   `yaml:"health"`
	Log      LogConfig      `yaml:"log"`
}

// ToolsConfig holds the external tool paths
type ToolsConfig struct {
	IP                string `yaml:"ip"`
	OVSVsctl          string `yaml:"ovs_vsctl"`
	OVSOfctl          string `yaml:"ovs_ofctl"`
	OVSAppctl         string `yaml:"ovs_appctl"`
	Brctl             string `yaml:"brctl"`
	Ethtool           string `yaml:"ethtool"`
	Dhclient          string `yaml:"dhclient"`
	Modprobe          string `yaml:"modprobe"`
	VLANBugWorkaround string `yaml:"vlan_bug_workaround"`
	InjectIgmpQuery   string `yaml:"inject_igmp_query"`
}

// PathsConfig holds file system locations
type PathsConfig struct {
	SysClassNet      string `yaml:"sys_class_net"`
	BondingMasters   string `yaml:"bonding_masters"`
	DhclientPidDir   string `yaml:"dhclient_pid_dir"`
	DhclientStateDir string `yaml:"dhclient_state_dir"`
}

// TimeoutsConfig holds tool invocation timeouts
type TimeoutsConfig struct {
	Command time.Duration `yaml:"command"`
	Probe   time.Duration `yaml:"probe"`
}

// BondingConfig holds the bond master removal retry policy
type BondingConfig struct {
	RemoveAttempts int           `yaml:"remove_attempts"`
	RemoveInterval time.Duration `yaml:"remove_interval"`
}

// OVSConfig holds switch backend tunables
type OVSConfig struct {
	VsctlConcurrency                      int           `yaml:"vsctl_concurrency"`
	DBTimeout                             time.Duration `yaml:"db_timeout"`
	MacTableSize                          int           `yaml:"mac_table_size"`
	EnableIPv6McastSnooping               bool          `yaml:"enable_ipv6_mcast_snooping"`
	McastSnoopingDisableFloodUnregistered bool          `yaml:"mcast_snooping_disable_flood_unregistered"`
	IgmpQueryMaxRespTime                  string        `yaml:"igmp_query_max_resp_time"`
}

// HealthConfig is a struct that holds health check configuration
type HealthConfig struct {
	Port string `yaml:"port"`
	// ProbeInterval is the period of the tool availability probe; failed
	// probes back off by ProbeBackoffFactor up to ProbeMaxInterval
	ProbeInterval      time.Duration `yaml:"probe_interval"`
	ProbeMaxInterval   time.Duration `yaml:"probe_max_interval"`
	ProbeBackoffFactor float64       `yaml:"probe_backoff_factor"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// ConfigLoader is an interface for loading configuration
type ConfigLoader interface {
	Load() (*Config, error)
}

// EnvironmentConfigLoader loads configuration from an optional YAML file
// named by NETCONFD_CONFIG, then applies environment variable overrides
type EnvironmentConfigLoader struct{}

// NewEnvironmentConfigLoader creates a new EnvironmentConfigLoader
func NewEnvironmentConfigLoader() ConfigLoader {
	return &EnvironmentConfigLoader{}
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Backend: constants.BackendOpenVSwitch,
		Tools: ToolsConfig{
			IP:                constants.IPTool,
			OVSVsctl:          constants.OVSVsctl,
			OVSOfctl:          constants.OVSOfctl,
			OVSAppctl:         constants.OVSAppctl,
			Brctl:             constants.Brctl,
			Ethtool:           constants.Ethtool,
			Dhclient:          constants.Dhclient,
			Modprobe:          constants.Modprobe,
			VLANBugWorkaround: constants.VLANBugWorkaroundTool,
			InjectIgmpQuery:   constants.InjectIgmpQueryScript,
		},
		Paths: PathsConfig{
			SysClassNet:      constants.SysClassNet,
			BondingMasters:   constants.BondingMasters,
			DhclientPidDir:   constants.DhclientPidDir,
			DhclientStateDir: constants.DhclientStateDir,
		},
		Timeouts: TimeoutsConfig{
			Command: constants.DefaultCommandTimeout,
			Probe:   constants.ProbeCommandTimeout,
		},
		Bonding: BondingConfig{
			RemoveAttempts: constants.BondRemoveAttempts,
			RemoveInterval: constants.BondRemoveInterval,
		},
		OVS: OVSConfig{
			VsctlConcurrency:                      constants.OVSVsctlConcurrency,
			DBTimeout:                             constants.OVSDBTimeout,
			MacTableSize:                          constants.OVSMacTableSize,
			EnableIPv6McastSnooping:               false,
			McastSnoopingDisableFloodUnregistered: true,
			IgmpQueryMaxRespTime:                  constants.IgmpQueryMaxRespTime,
		},
		Health: HealthConfig{
			Port:               constants.DefaultHealthPort,
			ProbeInterval:      constants.DefaultProbeInterval,
			ProbeMaxInterval:   constants.DefaultProbeMaxInterval,
			ProbeBackoffFactor: constants.DefaultProbeBackoffFactor,
		},
		Log: LogConfig{
			Level:      constants.DefaultLogLevel,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

// Load loads configuration
func (l *EnvironmentConfigLoader) Load() (*Config, error) {
	config := Default()

	if path := os.Getenv("NETCONFD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.NewValidationError("failed to read config file "+path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, errors.NewValidationError("failed to parse config file "+path, err)
		}
	}

	l.applyEnvironment(config)

	// Validate configuration
	if err := l.validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func (l *EnvironmentConfigLoader) applyEnvironment(config *Config) {
	config.Backend = getEnvOrDefault("NETWORK_BACKEND", config.Backend)

	config.Tools.IP = getEnvOrDefault("IP_TOOL", config.Tools.IP)
	config.Tools.OVSVsctl = getEnvOrDefault("OVS_VSCTL", config.Tools.OVSVsctl)
	config.Tools.OVSOfctl = getEnvOrDefault("OVS_OFCTL", config.Tools.OVSOfctl)
	config.Tools.OVSAppctl = getEnvOrDefault("OVS_APPCTL", config.Tools.OVSAppctl)
	config.Tools.Brctl = getEnvOrDefault("BRCTL", config.Tools.Brctl)
	config.Tools.Ethtool = getEnvOrDefault("ETHTOOL", config.Tools.Ethtool)
	config.Tools.Dhclient = getEnvOrDefault("DHCLIENT", config.Tools.Dhclient)
	config.Tools.Modprobe = getEnvOrDefault("MODPROBE", config.Tools.Modprobe)

	config.Paths.SysClassNet = getEnvOrDefault("SYS_CLASS_NET", config.Paths.SysClassNet)
	config.Paths.BondingMasters = getEnvOrDefault("BONDING_MASTERS", config.Paths.BondingMasters)
	config.Paths.DhclientPidDir = getEnvOrDefault("DHCLIENT_PID_DIR", config.Paths.DhclientPidDir)
	config.Paths.DhclientStateDir = getEnvOrDefault("DHCLIENT_STATE_DIR", config.Paths.DhclientStateDir)

	config.Timeouts.Command = getEnvDurationOrDefault("COMMAND_TIMEOUT", config.Timeouts.Command)
	config.Timeouts.Probe = getEnvDurationOrDefault("PROBE_TIMEOUT", config.Timeouts.Probe)

	config.Bonding.RemoveAttempts = getEnvIntOrDefault("BOND_REMOVE_ATTEMPTS", config.Bonding.RemoveAttempts)
	config.Bonding.RemoveInterval = getEnvDurationOrDefault("BOND_REMOVE_INTERVAL", config.Bonding.RemoveInterval)

	config.OVS.VsctlConcurrency = getEnvIntOrDefault("OVS_VSCTL_CONCURRENCY", config.OVS.VsctlConcurrency)
	config.OVS.DBTimeout = getEnvDurationOrDefault("OVS_DB_TIMEOUT", config.OVS.DBTimeout)
	config.OVS.MacTableSize = getEnvIntOrDefault("OVS_MAC_TABLE_SIZE", config.OVS.MacTableSize)
	config.OVS.EnableIPv6McastSnooping = getEnvBoolOrDefault("OVS_ENABLE_IPV6_MCAST_SNOOPING", config.OVS.EnableIPv6McastSnooping)
	config.OVS.McastSnoopingDisableFloodUnregistered = getEnvBoolOrDefault("OVS_MCAST_DISABLE_FLOOD_UNREGISTERED", config.OVS.McastSnoopingDisableFloodUnregistered)

	config.Health.Port = getEnvOrDefault("HEALTH_PORT", config.Health.Port)
	config.Health.ProbeInterval = getEnvDurationOrDefault("HEALTH_PROBE_INTERVAL", config.Health.ProbeInterval)
	config.Health.ProbeMaxInterval = getEnvDurationOrDefault("HEALTH_PROBE_MAX_INTERVAL", config.Health.ProbeMaxInterval)
	config.Log.Level = getEnvOrDefault("LOG_LEVEL", config.Log.Level)
	config.Log.File = getEnvOrDefault("LOG_FILE", config.Log.File)
}

// validate validates the configuration
func (l *EnvironmentConfigLoader) validate(config *Config) error {
	switch config.Backend {
	case constants.BackendOpenVSwitch, constants.BackendBridge:
	default:
		return errors.NewValidationError("unknown network backend "+config.Backend, nil)
	}
	if config.Tools.IP == "" {
		return errors.NewValidationError("ip tool path not configured", nil)
	}
	if config.Paths.SysClassNet == "" {
		return errors.NewValidationError("sysfs network path not configured", nil)
	}
	if config.Paths.DhclientStateDir == "" || config.Paths.DhclientPidDir == "" {
		return errors.NewValidationError("dhclient directories not configured", nil)
	}
	if config.Timeouts.Command < 0 || config.Timeouts.Probe < 0 {
		return errors.NewValidationError("invalid command timeout", nil)
	}
	if config.Bonding.RemoveAttempts < 1 {
		return errors.NewValidationError("invalid bond removal attempt count", nil)
	}
	if config.Bonding.RemoveInterval < 0 {
		return errors.NewValidationError("invalid bond removal interval", nil)
	}
	if config.OVS.VsctlConcurrency < 1 {
		return errors.NewValidationError("invalid ovs-vsctl concurrency", nil)
	}
	if config.OVS.DBTimeout <= 0 {
		return errors.NewValidationError("invalid ovs database timeout", nil)
	}
	if config.Health.Port == "" {
		return errors.NewValidationError("health check port not configured", nil)
	}
	if config.Health.ProbeInterval <= 0 || config.Health.ProbeMaxInterval < config.Health.ProbeInterval {
		return errors.NewValidationError("invalid health probe interval", nil)
	}

	return nil
}

// Environment variable helper functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

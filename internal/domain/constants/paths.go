package constants

import "time"

// Tool paths
const (
	IPTool                = "/sbin/ip"
	OVSVsctl              = "/usr/bin/ovs-vsctl"
	OVSOfctl              = "/usr/bin/ovs-ofctl"
	OVSAppctl             = "/usr/bin/ovs-appctl"
	Brctl                 = "/usr/sbin/brctl"
	Ethtool               = "/sbin/ethtool"
	Dhclient              = "/sbin/dhclient"
	Modprobe              = "/sbin/modprobe"
	VLANBugWorkaroundTool = "/usr/libexec/netconfd/ovs-vlan-bug-workaround"
	InjectIgmpQueryScript = "/usr/libexec/netconfd/igmp-query-injector"
)

// System paths
const (
	SysClassNet      = "/sys/class/net"
	BondingMasters   = "/sys/class/net/bonding_masters"
	DhclientPidDir   = "/var/run"
	DhclientStateDir = "/var/lib/netconfd"
)

// Tunable defaults
const (
	DefaultCommandTimeout = 60 * time.Second
	ProbeCommandTimeout   = 10 * time.Second

	BondRemoveAttempts = 10
	BondRemoveInterval = 500 * time.Millisecond

	OVSVsctlConcurrency = 5
	OVSDBTimeout        = 20 * time.Second
	OVSMacTableSize     = 10000

	IgmpQueryMaxRespTime = "5000"

	DefaultHealthPort         = "8080"
	DefaultProbeInterval      = 30 * time.Second
	DefaultProbeMaxInterval   = 5 * time.Minute
	DefaultProbeBackoffFactor = 2.0
	DefaultLogLevel           = "info"
)

// Bridging backends
const (
	BackendOpenVSwitch = "openvswitch"
	BackendBridge      = "bridge"
)

// VLAN tag range
const (
	MinVLANTag = 0
	MaxVLANTag = 4094
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tool invocation metrics
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netconfd_commands_total",
			Help: "Total number of external tool invocations",
		},
		[]string{"tool", "result"}, // success, error, timeout, missing, forked
	)

	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netconfd_command_duration_seconds",
			Help:    "Time spent in external tool invocations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	// Switch database concurrency
	VsctlInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netconfd_vsctl_in_flight",
			Help: "Number of ovs-vsctl invocations currently holding a semaphore slot",
		},
	)

	// Reconciliation metrics
	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netconfd_reconciliations_total",
			Help: "Total number of reconciliation calls",
		},
		[]string{"kind", "result"}, // bond/bridge/dhcp, success/failed
	)

	ReconciliationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netconfd_reconciliation_duration_seconds",
			Help:    "Time spent in each reconciliation call",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Advisory failures are logged and swallowed; this makes them countable
	AdvisoryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netconfd_advisory_failures_total",
			Help: "Total number of best-effort operations that failed and were skipped",
		},
		[]string{"operation"},
	)

	// Bonding metrics
	BondRemoveAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netconfd_bond_remove_attempts_total",
			Help: "Total number of bond master removal attempts",
		},
	)

	BondSlaveChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netconfd_bond_slave_changes_total",
			Help: "Total number of bond slave additions and removals",
		},
		[]string{"action"}, // add, remove
	)

	// DHCP metrics
	DhcpRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netconfd_dhcp_restarts_total",
			Help: "Total number of DHCP client restarts caused by a configuration change",
		},
	)

	ProbeBackoffLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netconfd_probe_backoff_level",
			Help: "Consecutive failed tool probes driving the probe interval",
		},
	)

	// System information
	AgentInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netconfd_agent_info",
			Help: "Agent information",
		},
		[]string{"version", "node_name"},
	)
)

// RecordCommand records one external tool invocation
func RecordCommand(tool, result string, duration float64) {
	CommandsTotal.WithLabelValues(tool, result).Inc()
	if duration > 0 {
		CommandDuration.WithLabelValues(tool).Observe(duration)
	}
}

// RecordReconciliation records one reconciliation call
func RecordReconciliation(kind string, success bool, duration float64) {
	result := "success"
	if !success {
		result = "failed"
	}
	ReconciliationsTotal.WithLabelValues(kind, result).Inc()
	ReconciliationDuration.WithLabelValues(kind).Observe(duration)
}

// RecordAdvisoryFailure records a swallowed best-effort failure
func RecordAdvisoryFailure(operation string) {
	AdvisoryFailures.WithLabelValues(operation).Inc()
}

// RecordBondRemoveAttempt records one write to the bonding masters file
func RecordBondRemoveAttempt() {
	BondRemoveAttempts.Inc()
}

// RecordSlaveChange records a slave addition or removal
func RecordSlaveChange(action string) {
	BondSlaveChanges.WithLabelValues(action).Inc()
}

// RecordDhcpRestart records a DHCP client restart
func RecordDhcpRestart() {
	DhcpRestarts.Inc()
}

// AddVsctlInFlight adjusts the number of running vsctl invocations
func AddVsctlInFlight(delta float64) {
	VsctlInFlight.Add(delta)
}

// SetProbeBackoffLevel sets the current probe backoff level
func SetProbeBackoffLevel(level float64) {
	ProbeBackoffLevel.Set(level)
}

// SetAgentInfo sets agent information
func SetAgentInfo(version, nodeName string) {
	AgentInfo.WithLabelValues(version, nodeName).Set(1)
}

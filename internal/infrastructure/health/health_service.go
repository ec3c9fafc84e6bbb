package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	domainErrors "netconfd/internal/domain/errors"
	"netconfd/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// HealthService provides health check functionality
type HealthService struct {
	mu        sync.RWMutex
	clock     interfaces.Clock
	fs        interfaces.FileSystem
	logger    *logrus.Logger
	startTime time.Time
	backend   string

	// required tools by name, and whether each was present at the last probe
	tools     map[string]string
	available map[string]bool
	lastProbe time.Time

	stats map[string]*reconcileStats
}

type reconcileStats struct {
	succeeded int64
	failed    int64
	lastError error
}

// HealthStatus represents health check status
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse is the health check response struct
type HealthResponse struct {
	Status     HealthStatus           `json:"status"`
	Timestamp  string                 `json:"timestamp"`
	LastCheck  string                 `json:"last_check"`
	Components map[string]interface{} `json:"components"`
	Statistics map[string]interface{} `json:"statistics"`
}

// NewHealthService creates a new HealthService. tools maps a tool name to
// the path that must exist for the daemon to work.
func NewHealthService(clock interfaces.Clock, fs interfaces.FileSystem, backend string, tools map[string]string, logger *logrus.Logger) *HealthService {
	return &HealthService{
		clock:     clock,
		fs:        fs,
		logger:    logger,
		startTime: clock.Now(),
		backend:   backend,
		tools:     tools,
		available: make(map[string]bool),
		stats:     make(map[string]*reconcileStats),
	}
}

// ProbeTools checks that every required tool is present and returns an
// error naming the missing ones
func (h *HealthService) ProbeTools() error {
	available := make(map[string]bool, len(h.tools))
	var missing []string
	for name, path := range h.tools {
		ok := h.fs.Exists(path)
		available[name] = ok
		if !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)

	h.mu.Lock()
	h.available = available
	h.lastProbe = h.clock.Now()
	h.mu.Unlock()

	if len(missing) > 0 {
		return domainErrors.NewSystemError("required tools missing: "+strings.Join(missing, ", "), nil)
	}
	return nil
}

// RecordReconciliation implements interfaces.ReconciliationObserver
func (h *HealthService) RecordReconciliation(kind string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats, ok := h.stats[kind]
	if !ok {
		stats = &reconcileStats{}
		h.stats[kind] = stats
	}
	if err != nil {
		stats.failed++
		stats.lastError = err
		return
	}
	stats.succeeded++
}

// ServeHTTP handles the HTTP health check endpoint
func (h *HealthService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := h.buildHealthResponse()

	// Set HTTP status code based on health status
	statusCode := http.StatusOK
	if response.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.WithError(err).Error("failed to encode health check response")
	}
}

// buildHealthResponse constructs the health check response
func (h *HealthService) buildHealthResponse() HealthResponse {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.clock.Now()

	tools := make(map[string]interface{}, len(h.tools))
	for name, path := range h.tools {
		tools[name] = map[string]interface{}{
			"path":      path,
			"available": h.available[name],
		}
	}

	components := map[string]interface{}{
		"backend": map[string]interface{}{
			"type": h.backend,
		},
		"tools": tools,
	}

	reconciliations := make(map[string]interface{}, len(h.stats))
	for kind, stats := range h.stats {
		reconciliations[kind] = map[string]interface{}{
			"succeeded":  stats.succeeded,
			"failed":     stats.failed,
			"last_error": h.formatError(stats.lastError),
		}
	}

	statistics := map[string]interface{}{
		"reconciliations": reconciliations,
		"uptime":          h.formatUptime(now.Sub(h.startTime)),
	}

	lastCheck := ""
	if !h.lastProbe.IsZero() {
		lastCheck = h.lastProbe.Format(time.RFC3339)
	}

	return HealthResponse{
		Status:     h.determineOverallStatus(),
		Timestamp:  now.Format(time.RFC3339),
		LastCheck:  lastCheck,
		Components: components,
		Statistics: statistics,
	}
}

// determineOverallStatus determines the overall health status
func (h *HealthService) determineOverallStatus() HealthStatus {
	// Unprobed or missing tools make the daemon unusable
	if h.lastProbe.IsZero() {
		return StatusUnhealthy
	}
	for name := range h.tools {
		if !h.available[name] {
			return StatusUnhealthy
		}
	}

	// If failed reconciliations are 50% or more, status is degraded
	var succeeded, failed int64
	for _, stats := range h.stats {
		succeeded += stats.succeeded
		failed += stats.failed
	}
	if failed > 0 && float64(failed)/float64(succeeded+failed) >= 0.5 {
		return StatusDegraded
	}

	return StatusHealthy
}

// formatError formats an error to string
func (h *HealthService) formatError(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// formatUptime formats uptime duration to human-readable format
func (h *HealthService) formatUptime(duration time.Duration) string {
	days := int(duration.Hours()) / 24
	hours := int(duration.Hours()) % 24
	minutes := int(duration.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd%dh%dm", days, hours, minutes)
	} else if hours > 0 {
		return fmt.Sprintf("%dh%dm", hours, minutes)
	} else {
		return fmt.Sprintf("%dm", minutes)
	}
}

package health

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"netconfd/internal/infrastructure/adapters"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, present ...string) (*HealthService, *fixedClock) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	fs := afero.NewMemMapFs()
	for _, path := range present {
		require.NoError(t, afero.WriteFile(fs, path, []byte("#!/bin/sh\n"), 0755))
	}
	clock := &fixedClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tools := map[string]string{
		"ip":        "/sbin/ip",
		"ovs-vsctl": "/usr/bin/ovs-vsctl",
	}
	return NewHealthService(clock, adapters.NewFileSystem(fs), "openvswitch", tools, logger), clock
}

func get(t *testing.T, h *HealthService) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var response HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	return rec.Code, response
}

func TestHealthService_ProbeTools(t *testing.T) {
	h, _ := newTestService(t, "/sbin/ip")

	err := h.ProbeTools()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ovs-vsctl")

	code, response := get(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusUnhealthy, response.Status)
	assert.NotEmpty(t, response.LastCheck)
}

func TestHealthService_Status(t *testing.T) {
	tests := []struct {
		name     string
		probe    bool
		outcomes []error
		wantCode int
		want     HealthStatus
	}{
		{name: "not probed yet", wantCode: http.StatusServiceUnavailable, want: StatusUnhealthy},
		{name: "all tools present", probe: true, wantCode: http.StatusOK, want: StatusHealthy},
		{
			name:     "mostly successful",
			probe:    true,
			outcomes: []error{nil, nil, errors.New("boom")},
			wantCode: http.StatusOK,
			want:     StatusHealthy,
		},
		{
			name:     "half failed",
			probe:    true,
			outcomes: []error{nil, errors.New("boom")},
			wantCode: http.StatusOK,
			want:     StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestService(t, "/sbin/ip", "/usr/bin/ovs-vsctl")
			if tt.probe {
				require.NoError(t, h.ProbeTools())
			}
			for _, outcome := range tt.outcomes {
				h.RecordReconciliation("bond", outcome)
			}

			code, response := get(t, h)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.want, response.Status)
		})
	}
}

func TestHealthService_Statistics(t *testing.T) {
	h, clock := newTestService(t, "/sbin/ip", "/usr/bin/ovs-vsctl")
	require.NoError(t, h.ProbeTools())
	h.RecordReconciliation("bridge", nil)
	h.RecordReconciliation("dhcp", errors.New("exit code 2"))
	clock.now = clock.now.Add(26*time.Hour + 5*time.Minute)

	_, response := get(t, h)

	assert.Equal(t, "1d2h5m", response.Statistics["uptime"])
	reconciliations := response.Statistics["reconciliations"].(map[string]interface{})
	dhcp := reconciliations["dhcp"].(map[string]interface{})
	assert.Equal(t, float64(1), dhcp["failed"])
	assert.Equal(t, "exit code 2", dhcp["last_error"])

	backend := response.Components["backend"].(map[string]interface{})
	assert.Equal(t, "openvswitch", backend["type"])
}

func TestHealthService_MethodNotAllowed(t *testing.T) {
	h, _ := newTestService(t)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

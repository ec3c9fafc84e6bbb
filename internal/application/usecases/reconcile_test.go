package usecases

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"netconfd/internal/domain/entities"
	domainErrors "netconfd/internal/domain/errors"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// Mock implementations
type MockNetworkBackend struct {
	mock.Mock
}

func (m *MockNetworkBackend) Name() string {
	return "openvswitch"
}

func (m *MockNetworkBackend) ApplyBridge(ctx context.Context, bridge entities.BridgeConfig, ifaces []string) error {
	args := m.Called(ctx, bridge, ifaces)
	return args.Error(0)
}

func (m *MockNetworkBackend) DestroyBridge(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockNetworkBackend) ApplyBond(ctx context.Context, bridge string, bond entities.BondConfig) error {
	args := m.Called(ctx, bridge, bond)
	return args.Error(0)
}

func (m *MockNetworkBackend) DestroyBond(ctx context.Context, bridge, name string) error {
	args := m.Called(ctx, bridge, name)
	return args.Error(0)
}

type MockDhcpClient struct {
	mock.Mock
}

func (m *MockDhcpClient) EnsureRunning(ctx context.Context, config entities.DhcpClientConfig) error {
	args := m.Called(ctx, config)
	return args.Error(0)
}

func (m *MockDhcpClient) Stop(ctx context.Context, iface string, ipv6 bool) error {
	args := m.Called(ctx, iface, ipv6)
	return args.Error(0)
}

func (m *MockDhcpClient) IsRunning(iface string, ipv6 bool) bool {
	args := m.Called(iface, ipv6)
	return args.Bool(0)
}

type MockObserver struct {
	mock.Mock
}

func (m *MockObserver) RecordReconciliation(kind string, err error) {
	m.Called(kind, err)
}

type MockClock struct {
	now time.Time
}

func (m *MockClock) Now() time.Time {
	return m.now
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestReconcileBondUseCase_Execute(t *testing.T) {
	ctx := context.Background()
	valid := entities.BondConfig{Name: "bond0", Slaves: []string{"eth0", "eth1"}, Properties: map[string]string{"mode": "lacp"}}

	tests := []struct {
		name          string
		input         ReconcileBondInput
		setupMocks    func(*MockNetworkBackend)
		wantError     bool
		wantErrorType func(error) bool
	}{
		{
			name:  "applies a valid bond",
			input: ReconcileBondInput{Bridge: "xenbr0", Bond: valid},
			setupMocks: func(backend *MockNetworkBackend) {
				backend.On("ApplyBond", ctx, "xenbr0", valid).Return(nil)
			},
		},
		{
			name:          "rejects a duplicate slave",
			input:         ReconcileBondInput{Bridge: "xenbr0", Bond: entities.BondConfig{Name: "bond0", Slaves: []string{"eth0", "eth0"}}},
			setupMocks:    func(*MockNetworkBackend) {},
			wantError:     true,
			wantErrorType: domainErrors.IsValidationError,
		},
		{
			name:          "rejects an invalid bridge name",
			input:         ReconcileBondInput{Bridge: "bad bridge", Bond: valid},
			setupMocks:    func(*MockNetworkBackend) {},
			wantError:     true,
			wantErrorType: domainErrors.IsValidationError,
		},
		{
			name:  "keeps the tool failure reachable",
			input: ReconcileBondInput{Bridge: "xenbr0", Bond: valid},
			setupMocks: func(backend *MockNetworkBackend) {
				backend.On("ApplyBond", ctx, "xenbr0", valid).Return(&domainErrors.ScriptError{Path: "/usr/bin/ovs-vsctl", Cause: "exit code 1"})
			},
			wantError:     true,
			wantErrorType: domainErrors.IsScriptError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := new(MockNetworkBackend)
			observer := new(MockObserver)
			observer.On("RecordReconciliation", KindBond, mock.Anything).Return()
			tt.setupMocks(backend)

			uc := NewReconcileBondUseCase(backend, observer, &MockClock{}, quietLogger())
			err := uc.Execute(ctx, tt.input)

			if tt.wantError {
				assert.Error(t, err)
				assert.True(t, tt.wantErrorType(err))
			} else {
				assert.NoError(t, err)
			}
			backend.AssertExpectations(t)
			observer.AssertNumberOfCalls(t, "RecordReconciliation", 1)
		})
	}
}

func TestReconcileBondUseCase_Remove(t *testing.T) {
	ctx := context.Background()
	backend := new(MockNetworkBackend)
	observer := new(MockObserver)
	backend.On("DestroyBond", ctx, "xenbr0", "bond0").Return(nil)
	observer.On("RecordReconciliation", KindBond, nil).Return()

	uc := NewReconcileBondUseCase(backend, observer, &MockClock{}, quietLogger())

	assert.NoError(t, uc.Remove(ctx, "xenbr0", "bond0"))
	backend.AssertExpectations(t)
	observer.AssertExpectations(t)
}

func TestReconcileBridgeUseCase_Execute(t *testing.T) {
	ctx := context.Background()
	snooping := true
	bridge := entities.BridgeConfig{Name: "xenbr0", IgmpSnooping: &snooping}

	tests := []struct {
		name          string
		input         ReconcileBridgeInput
		setupMocks    func(*MockNetworkBackend)
		wantError     bool
		wantErrorType func(error) bool
	}{
		{
			name:  "applies a bridge with uplinks",
			input: ReconcileBridgeInput{Bridge: bridge, Interfaces: []string{"eth0"}},
			setupMocks: func(backend *MockNetworkBackend) {
				backend.On("ApplyBridge", ctx, bridge, []string{"eth0"}).Return(nil)
			},
		},
		{
			name:          "rejects a fake bridge on itself",
			input:         ReconcileBridgeInput{Bridge: entities.BridgeConfig{Name: "xapi1", VLAN: &entities.VLANParent{Parent: "xapi1", Tag: 5}}},
			setupMocks:    func(*MockNetworkBackend) {},
			wantError:     true,
			wantErrorType: domainErrors.IsValidationError,
		},
		{
			name:          "rejects an out of range tag",
			input:         ReconcileBridgeInput{Bridge: entities.BridgeConfig{Name: "xapi1", VLAN: &entities.VLANParent{Parent: "xenbr0", Tag: 5000}}},
			setupMocks:    func(*MockNetworkBackend) {},
			wantError:     true,
			wantErrorType: domainErrors.IsValidationError,
		},
		{
			name:          "rejects an invalid interface",
			input:         ReconcileBridgeInput{Bridge: bridge, Interfaces: []string{""}},
			setupMocks:    func(*MockNetworkBackend) {},
			wantError:     true,
			wantErrorType: domainErrors.IsValidationError,
		},
		{
			name:  "backend failure is a system error",
			input: ReconcileBridgeInput{Bridge: bridge},
			setupMocks: func(backend *MockNetworkBackend) {
				backend.On("ApplyBridge", ctx, bridge, []string(nil)).Return(errors.New("db locked"))
			},
			wantError:     true,
			wantErrorType: domainErrors.IsSystemError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := new(MockNetworkBackend)
			observer := new(MockObserver)
			observer.On("RecordReconciliation", KindBridge, mock.Anything).Return()
			tt.setupMocks(backend)

			uc := NewReconcileBridgeUseCase(backend, observer, &MockClock{}, quietLogger())
			err := uc.Execute(ctx, tt.input)

			if tt.wantError {
				assert.Error(t, err)
				assert.True(t, tt.wantErrorType(err))
			} else {
				assert.NoError(t, err)
			}
			backend.AssertExpectations(t)
			observer.AssertNumberOfCalls(t, "RecordReconciliation", 1)
		})
	}
}

func TestReconcileBridgeUseCase_Remove(t *testing.T) {
	ctx := context.Background()
	backend := new(MockNetworkBackend)
	observer := new(MockObserver)
	failure := errors.New("no such bridge")
	backend.On("DestroyBridge", ctx, "xenbr0").Return(failure)
	observer.On("RecordReconciliation", KindBridge, mock.Anything).Return()

	uc := NewReconcileBridgeUseCase(backend, observer, &MockClock{}, quietLogger())
	err := uc.Remove(ctx, "xenbr0")

	assert.ErrorIs(t, err, failure)
	assert.True(t, domainErrors.IsSystemError(err))
}

func TestReconcileDHCPUseCase_Execute(t *testing.T) {
	ctx := context.Background()
	client := entities.DhcpClientConfig{Interface: "xenbr0", Options: entities.DhcpOptions{GatewayInterface: "xenbr0"}}

	tests := []struct {
		name       string
		input      ReconcileDHCPInput
		setupMocks func(*MockDhcpClient)
		wantError  bool
	}{
		{
			name:  "enabled ensures the client runs",
			input: ReconcileDHCPInput{Client: client, Enabled: true},
			setupMocks: func(m *MockDhcpClient) {
				m.On("EnsureRunning", ctx, client).Return(nil)
			},
		},
		{
			name:  "disabled stops a running client",
			input: ReconcileDHCPInput{Client: client},
			setupMocks: func(m *MockDhcpClient) {
				m.On("IsRunning", "xenbr0", false).Return(true)
				m.On("Stop", ctx, "xenbr0", false).Return(nil)
			},
		},
		{
			name:  "disabled and stopped does nothing",
			input: ReconcileDHCPInput{Client: client},
			setupMocks: func(m *MockDhcpClient) {
				m.On("IsRunning", "xenbr0", false).Return(false)
			},
		},
		{
			name:  "stop failure propagates",
			input: ReconcileDHCPInput{Client: client},
			setupMocks: func(m *MockDhcpClient) {
				m.On("IsRunning", "xenbr0", false).Return(true)
				m.On("Stop", ctx, "xenbr0", false).Return(errors.New("exit code 1"))
			},
			wantError: true,
		},
		{
			name:       "invalid interface",
			input:      ReconcileDHCPInput{Client: entities.DhcpClientConfig{Interface: "eth/0"}, Enabled: true},
			setupMocks: func(*MockDhcpClient) {},
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dhcp := new(MockDhcpClient)
			observer := new(MockObserver)
			observer.On("RecordReconciliation", KindDHCP, mock.Anything).Return()
			tt.setupMocks(dhcp)

			uc := NewReconcileDHCPUseCase(dhcp, observer, &MockClock{}, quietLogger())
			err := uc.Execute(ctx, tt.input)

			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			dhcp.AssertExpectations(t)
			observer.AssertNumberOfCalls(t, "RecordReconciliation", 1)
		})
	}
}

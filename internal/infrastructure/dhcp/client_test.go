package dhcp

import (
	"context"
	"errors"
	"io"
	"testing"

	"netconfd/internal/domain/entities"
	"netconfd/internal/infrastructure/config"
	"netconfd/internal/nettest"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	startEth0 = "dhclient -q -pf /var/run/dhclient-eth0.pid -lf /var/lib/netconfd/dhclient-eth0.leases -cf /var/lib/netconfd/dhclient-eth0.conf eth0"
	stopEth0  = "dhclient -r -pf /var/run/dhclient-eth0.pid eth0"
)

func newTestManager(t *testing.T) (*Manager, afero.Fs, *nettest.FakeExec) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	fs := afero.NewMemMapFs()
	fexec := nettest.NewFakeExec()
	return NewManager(fexec, fs, config.Default(), logger), fs, fexec
}

// markRunning creates the pid file the client would write after starting
func markRunning(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte("4242\n"), 0644))
}

func TestGenerateConf(t *testing.T) {
	base := "subnet-mask, broadcast-address, time-offset, host-name, nis-domain, nis-servers, ntp-servers, interface-mtu"

	tests := []struct {
		name    string
		options entities.DhcpOptions
		want    string
	}{
		{
			name: "minimal",
			want: "interface \"eth0\" {\n\trequest " + base + ";\n}\n",
		},
		{
			name:    "gateway interface",
			options: entities.DhcpOptions{GatewayInterface: "eth0"},
			want:    "interface \"eth0\" {\n\trequest " + base + ", routers;\n}\n",
		},
		{
			name:    "gateway elsewhere",
			options: entities.DhcpOptions{GatewayInterface: "eth1"},
			want:    "interface \"eth0\" {\n\trequest " + base + ";\n}\n",
		},
		{
			name:    "dns",
			options: entities.DhcpOptions{SetDNS: true},
			want:    "interface \"eth0\" {\n\trequest " + base + ", domain-name, domain-name-servers;\n}\n",
		},
		{
			name:    "gateway and dns",
			options: entities.DhcpOptions{GatewayInterface: "eth0", SetDNS: true},
			want:    "interface \"eth0\" {\n\trequest " + base + ", routers, domain-name, domain-name-servers;\n}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateConf(entities.DhcpClientConfig{Interface: "eth0", Options: tt.options}))
		})
	}
}

func TestManager_Paths(t *testing.T) {
	m, _, _ := newTestManager(t)

	assert.Equal(t, "/var/run/dhclient-eth0.pid", m.PidFile("eth0", false))
	assert.Equal(t, "/var/run/dhclient6-eth0.pid", m.PidFile("eth0", true))
	assert.Equal(t, "/var/lib/netconfd/dhclient6-eth0.leases", m.LeaseFile("eth0", true))
	assert.Equal(t, "/var/lib/netconfd/dhclient-eth0.conf", m.ConfFile("eth0", false))
}

func TestManager_Start(t *testing.T) {
	tests := []struct {
		name   string
		config entities.DhcpClientConfig
		want   string
	}{
		{
			name:   "ipv4",
			config: entities.DhcpClientConfig{Interface: "eth0"},
			want:   startEth0,
		},
		{
			name:   "ipv6 with gateway device",
			config: entities.DhcpClientConfig{Interface: "eth0", IPv6: true, Options: entities.DhcpOptions{GatewayInterface: "xenbr0"}},
			want: "dhclient -q -pf /var/run/dhclient6-eth0.pid -lf /var/lib/netconfd/dhclient6-eth0.leases" +
				" -cf /var/lib/netconfd/dhclient6-eth0.conf -6 -e GATEWAYDEV=xenbr0 eth0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, fs, fexec := newTestManager(t)

			require.NoError(t, m.Start(context.Background(), tt.config))

			calls := fexec.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.want, calls[0].Cmd)
			assert.Zero(t, calls[0].Options.Timeout)
			assert.True(t, calls[0].Options.LogOutput)

			conf, err := afero.ReadFile(fs, m.ConfFile(tt.config.Interface, tt.config.IPv6))
			require.NoError(t, err)
			assert.Equal(t, GenerateConf(tt.config), string(conf))
		})
	}
}

func TestManager_Stop(t *testing.T) {
	m, fs, fexec := newTestManager(t)
	markRunning(t, fs, m.PidFile("eth0", false))

	require.NoError(t, m.Stop(context.Background(), "eth0", false))

	assert.Equal(t, []string{stopEth0}, fexec.Executed())
	assert.False(t, m.IsRunning("eth0", false))
}

func TestManager_Stop_FailureKeepsPidFile(t *testing.T) {
	m, fs, fexec := newTestManager(t)
	markRunning(t, fs, m.PidFile("eth0", false))
	fexec.AddFakeCmd(&nettest.ExpectedCmd{Cmd: stopEth0, Err: errors.New("exit code 1")})

	assert.Error(t, m.Stop(context.Background(), "eth0", false))
	assert.True(t, m.IsRunning("eth0", false))
}

func TestManager_EnsureRunning(t *testing.T) {
	plain := entities.DhcpClientConfig{Interface: "eth0"}
	withDNS := entities.DhcpClientConfig{Interface: "eth0", Options: entities.DhcpOptions{SetDNS: true}}

	tests := []struct {
		name     string
		running  bool
		onDisk   *entities.DhcpClientConfig
		desired  entities.DhcpClientConfig
		wantCmds []string
	}{
		{
			name:     "not running starts once",
			desired:  plain,
			wantCmds: []string{startEth0},
		},
		{
			name:    "running and unchanged",
			running: true,
			onDisk:  &plain,
			desired: plain,
		},
		{
			name:     "running and changed restarts",
			running:  true,
			onDisk:   &plain,
			desired:  withDNS,
			wantCmds: []string{stopEth0, startEth0},
		},
		{
			name:     "running without config restarts",
			running:  true,
			desired:  plain,
			wantCmds: []string{stopEth0, startEth0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, fs, fexec := newTestManager(t)
			if tt.running {
				markRunning(t, fs, m.PidFile("eth0", false))
			}
			if tt.onDisk != nil {
				require.NoError(t, m.writeConf(*tt.onDisk))
			}

			require.NoError(t, m.EnsureRunning(context.Background(), tt.desired))

			assert.Equal(t, tt.wantCmds, fexec.ExecutedWithPrefix("dhclient"))
			conf, err := afero.ReadFile(fs, m.ConfFile("eth0", false))
			require.NoError(t, err)
			assert.Equal(t, GenerateConf(tt.desired), string(conf))
		})
	}
}

func TestManager_EnsureRunning_StopFailureSkipsStart(t *testing.T) {
	m, fs, fexec := newTestManager(t)
	markRunning(t, fs, m.PidFile("eth0", false))
	fexec.AddFakeCmd(&nettest.ExpectedCmd{Cmd: stopEth0, Err: errors.New("exit code 1")})

	err := m.EnsureRunning(context.Background(), entities.DhcpClientConfig{Interface: "eth0"})
	assert.Error(t, err)
	assert.Equal(t, []string{stopEth0}, fexec.Executed())
}

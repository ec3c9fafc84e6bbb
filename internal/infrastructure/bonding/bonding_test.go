package bonding

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	domainErrors "netconfd/internal/domain/errors"
	"netconfd/internal/infrastructure/config"
	"netconfd/internal/infrastructure/sysfs"
	"netconfd/internal/nettest"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	netRoot     = "/sys/class/net"
	mastersPath = "/sys/class/net/bonding_masters"
)

// kernelFs emulates the +name/-name list semantics of the bonding control
// files on top of a MemMapFs
type kernelFs struct {
	afero.Fs
	mu sync.Mutex
	// tokens written to a control file, in order, as "<file> <token>"
	writes []string
	// remaining failures per token; -1 fails forever
	failures map[string]int
}

func newKernelFs() *kernelFs {
	return &kernelFs{Fs: afero.NewMemMapFs(), failures: make(map[string]int)}
}

func isControlFile(name string) bool {
	return name == mastersPath || strings.HasSuffix(name, "/bonding/slaves")
}

func (k *kernelFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR) == 0 || !isControlFile(name) {
		return k.Fs.OpenFile(name, flag, perm)
	}
	inner, err := k.Fs.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return &controlFile{File: inner, fs: k, name: name}, nil
}

func (k *kernelFs) apply(name, token string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.writes = append(k.writes, filepath.Base(name)+" "+token)

	if n, ok := k.failures[token]; ok && n != 0 {
		if n > 0 {
			k.failures[token] = n - 1
		}
		return errors.New("device or resource busy")
	}

	data, _ := afero.ReadFile(k.Fs, name)
	var members []string
	item := token[1:]
	for _, member := range strings.Fields(string(data)) {
		if member != item {
			members = append(members, member)
		}
	}
	if token[0] == '+' {
		members = append(members, item)
	}
	if name == mastersPath {
		dir := filepath.Join(netRoot, item, "bonding")
		if token[0] == '+' {
			_ = k.Fs.MkdirAll(dir, 0755)
			_ = afero.WriteFile(k.Fs, filepath.Join(dir, "slaves"), nil, 0644)
		} else {
			_ = k.Fs.RemoveAll(filepath.Join(netRoot, item))
		}
	}
	return afero.WriteFile(k.Fs, name, []byte(strings.Join(members, " ")+"\n"), 0644)
}

func (k *kernelFs) written() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.writes...)
}

type controlFile struct {
	afero.File
	fs   *kernelFs
	name string
	buf  bytes.Buffer
}

func (c *controlFile) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *controlFile) WriteString(s string) (int, error) {
	return c.buf.WriteString(s)
}

func (c *controlFile) Close() error {
	_ = c.File.Close()
	return c.fs.apply(c.name, strings.TrimSpace(c.buf.String()))
}

type fakeLinks struct {
	calls [][]string
}

func (f *fakeLinks) WithLinksDown(_ context.Context, devs []string, body func() error) error {
	f.calls = append(f.calls, devs)
	return body()
}

type fixture struct {
	manager *Manager
	fs      *kernelFs
	exec    *nettest.FakeExec
	links   *fakeLinks
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.Default()
	cfg.Bonding.RemoveInterval = 0

	kfs := newKernelFs()
	fexec := nettest.NewFakeExec()
	links := &fakeLinks{}
	store := sysfs.NewStore(kfs, netRoot, logger)
	return &fixture{
		manager: NewManager(fexec, kfs, store, links, cfg, logger),
		fs:      kfs,
		exec:    fexec,
		links:   links,
	}
}

// withBond creates a loaded driver with one master and its slaves
func (f *fixture) withBond(t *testing.T, master string, slaves ...string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.fs.Fs, mastersPath, []byte(master+"\n"), 0644))
	dir := filepath.Join(netRoot, master, "bonding")
	require.NoError(t, f.fs.Fs.MkdirAll(dir, 0755))
	require.NoError(t, afero.WriteFile(f.fs.Fs, filepath.Join(dir, "slaves"), []byte(strings.Join(slaves, " ")+"\n"), 0644))
}

func (f *fixture) writeProp(t *testing.T, master, prop, value string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.fs.Fs, filepath.Join(netRoot, master, "bonding", prop), []byte(value+"\n"), 0644))
}

func TestSlaveDiff(t *testing.T) {
	tests := []struct {
		name       string
		current    []string
		desired    []string
		wantRemove []string
		wantAdd    []string
	}{
		{name: "identical", current: []string{"eth0", "eth1"}, desired: []string{"eth1", "eth0"}},
		{name: "add only", current: []string{"eth0"}, desired: []string{"eth0", "eth1"}, wantAdd: []string{"eth1"}},
		{name: "remove only", current: []string{"eth0", "eth1"}, desired: []string{"eth1"}, wantRemove: []string{"eth0"}},
		{name: "replace", current: []string{"eth0", "eth1"}, desired: []string{"eth2", "eth3"}, wantRemove: []string{"eth0", "eth1"}, wantAdd: []string{"eth2", "eth3"}},
		{name: "from empty", current: nil, desired: []string{"eth0"}, wantAdd: []string{"eth0"}},
		{name: "to empty", current: []string{"eth0"}, desired: nil, wantRemove: []string{"eth0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toRemove, toAdd := SlaveDiff(tt.current, tt.desired)
			assert.Equal(t, tt.wantRemove, toRemove)
			assert.Equal(t, tt.wantAdd, toAdd)
		})
	}
}

func TestManager_AddBondMaster_LoadsDriver(t *testing.T) {
	f := newFixture(t)
	f.exec.AddFakeCmd(&nettest.ExpectedCmd{
		Cmd: "modprobe bonding",
		Action: func() {
			require.NoError(t, afero.WriteFile(f.fs.Fs, mastersPath, []byte("bond0\n"), 0644))
			require.NoError(t, f.fs.Fs.MkdirAll(filepath.Join(netRoot, "bond0", "bonding"), 0755))
		},
	})

	require.NoError(t, f.manager.AddBondMaster(context.Background(), "bond1"))

	assert.Equal(t, []string{"modprobe bonding"}, f.exec.Executed())
	assert.Equal(t, []string{"bonding_masters -bond0", "bonding_masters +bond1"}, f.fs.written())
	assert.Equal(t, []string{"bond1"}, f.manager.GetBondMasters())
	assert.True(t, f.manager.IsBondDevice("bond1"))
}

func TestManager_AddBondMaster_Existing(t *testing.T) {
	f := newFixture(t)
	f.withBond(t, "bond0", "eth0")

	require.NoError(t, f.manager.AddBondMaster(context.Background(), "bond0"))

	assert.Empty(t, f.exec.Executed())
	assert.Empty(t, f.fs.written())
}

func TestManager_AddBondMaster_PlainDeviceOfSameName(t *testing.T) {
	f := newFixture(t)
	f.withBond(t, "bond0")
	require.NoError(t, f.fs.Fs.MkdirAll(filepath.Join(netRoot, "bond1"), 0755))

	require.NoError(t, f.manager.AddBondMaster(context.Background(), "bond1"))

	assert.Equal(t, []string{"bonding_masters +bond1"}, f.fs.written())
	assert.True(t, f.manager.IsBondDevice("bond1"))
}

func TestManager_AddBondMaster_ModprobeFails(t *testing.T) {
	f := newFixture(t)
	f.exec.AddFakeCmd(&nettest.ExpectedCmd{Cmd: "modprobe bonding", Err: &domainErrors.ScriptError{Path: "/sbin/modprobe", Cause: "exit code 1"}})

	err := f.manager.AddBondMaster(context.Background(), "bond0")
	assert.True(t, domainErrors.IsScriptError(err))
	assert.Empty(t, f.fs.written())
}

func TestManager_RemoveBondMaster(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		wantAttempts int
		wantPresent  bool
	}{
		{name: "first attempt succeeds", failures: 0, wantAttempts: 1, wantPresent: false},
		{name: "succeeds after lingering references", failures: 3, wantAttempts: 4, wantPresent: false},
		{name: "gives up after ten attempts", failures: -1, wantAttempts: 10, wantPresent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.withBond(t, "bond0")
			if tt.failures != 0 {
				f.fs.failures["-bond0"] = tt.failures
			}

			start := time.Now()
			assert.NotPanics(t, func() {
				f.manager.RemoveBondMaster(context.Background(), "bond0")
			})

			assert.Len(t, f.fs.written(), tt.wantAttempts)
			assert.Equal(t, tt.wantPresent, f.manager.IsBondDevice("bond0"))
			assert.Less(t, time.Since(start), 5*time.Second)
		})
	}
}

func TestManager_RemoveBondMaster_NotABond(t *testing.T) {
	f := newFixture(t)
	f.withBond(t, "bond0")

	f.manager.RemoveBondMaster(context.Background(), "eth0")
	assert.Empty(t, f.fs.written())
}

func TestManager_SetBondSlaves(t *testing.T) {
	tests := []struct {
		name       string
		current    []string
		desired    []string
		wantWrites []string
		wantDown   [][]string
	}{
		{
			name:     "unchanged set does nothing",
			current:  []string{"eth0", "eth1"},
			desired:  []string{"eth1", "eth0"},
			wantDown: nil,
		},
		{
			name:       "removals precede additions",
			current:    []string{"eth0", "eth1"},
			desired:    []string{"eth1", "eth2"},
			wantWrites: []string{"slaves -eth0", "slaves +eth2"},
			wantDown:   [][]string{{"eth2", "eth0"}},
		},
		{
			name:       "from empty",
			current:    nil,
			desired:    []string{"eth0", "eth1"},
			wantWrites: []string{"slaves +eth0", "slaves +eth1"},
			wantDown:   [][]string{{"eth0", "eth1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.withBond(t, "bond0", tt.current...)

			require.NoError(t, f.manager.SetBondSlaves(context.Background(), "bond0", tt.desired))

			assert.Equal(t, tt.wantWrites, f.fs.written())
			assert.Equal(t, tt.wantDown, f.links.calls)
			assert.ElementsMatch(t, tt.desired, f.manager.GetBondSlaves("bond0"))
		})
	}
}

func TestManager_SetBondSlaves_OneFailureDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	f.withBond(t, "bond0")
	f.fs.failures["+eth1"] = -1

	require.NoError(t, f.manager.SetBondSlaves(context.Background(), "bond0", []string{"eth0", "eth1", "eth2"}))

	assert.Equal(t, []string{"slaves +eth0", "slaves +eth1", "slaves +eth2"}, f.fs.written())
	assert.ElementsMatch(t, []string{"eth0", "eth2"}, f.manager.GetBondSlaves("bond0"))
}

func TestManager_SetBondSlaves_NotABond(t *testing.T) {
	f := newFixture(t)

	err := f.manager.SetBondSlaves(context.Background(), "bond9", []string{"eth0"})
	assert.True(t, domainErrors.IsNotFoundError(err))
	assert.Empty(t, f.links.calls)
}

func TestManager_GetBondProperties(t *testing.T) {
	f := newFixture(t)
	f.withBond(t, "bond0")
	f.writeProp(t, "bond0", "mode", "active-backup 1")
	f.writeProp(t, "bond0", "miimon", "100")

	props := f.manager.GetBondProperties("bond0")
	assert.Equal(t, map[string]string{"mode": "active-backup", "miimon": "100"}, props)
	assert.Empty(t, f.manager.GetBondProperties("eth0"))
}

func TestManager_SetBondProperties(t *testing.T) {
	tests := []struct {
		name       string
		desired    map[string]string
		wantWrites []string
		wantDown   [][]string
		wantProps  map[string]string
	}{
		{
			name:      "same values are a no-op",
			desired:   map[string]string{"mode": "active-backup", "miimon": "100"},
			wantProps: map[string]string{"mode": "active-backup", "miimon": "100", "updelay": "0", "downdelay": "0", "use_carrier": "1"},
		},
		{
			name:      "unknown properties are ignored",
			desired:   map[string]string{"hashing-algorithm": "src_mac", "lacp-time": "fast"},
			wantProps: map[string]string{"mode": "active-backup", "miimon": "100", "updelay": "0", "downdelay": "0", "use_carrier": "1"},
		},
		{
			name:       "changed values cycle the slaves",
			desired:    map[string]string{"mode": "balance-rr", "miimon": "100", "updelay": "200"},
			wantWrites: []string{"slaves -eth0", "slaves -eth1", "slaves +eth0", "slaves +eth1"},
			wantDown:   [][]string{{"bond0"}},
			wantProps:  map[string]string{"mode": "balance-rr", "miimon": "100", "updelay": "200", "downdelay": "0", "use_carrier": "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.withBond(t, "bond0", "eth0", "eth1")
			f.writeProp(t, "bond0", "mode", "active-backup 1")
			f.writeProp(t, "bond0", "miimon", "100")
			f.writeProp(t, "bond0", "updelay", "0")
			f.writeProp(t, "bond0", "downdelay", "0")
			f.writeProp(t, "bond0", "use_carrier", "1")

			require.NoError(t, f.manager.SetBondProperties(context.Background(), "bond0", tt.desired))

			assert.Equal(t, tt.wantWrites, f.fs.written())
			assert.Equal(t, tt.wantDown, f.links.calls)
			assert.Equal(t, tt.wantProps, f.manager.GetBondProperties("bond0"))
			assert.ElementsMatch(t, []string{"eth0", "eth1"}, f.manager.GetBondSlaves("bond0"))
		})
	}
}

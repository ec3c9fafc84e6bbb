package sysfs

import (
	"bufio"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"netconfd/internal/domain/entities"
	domainErrors "netconfd/internal/domain/errors"
	"netconfd/internal/domain/interfaces"
	"netconfd/internal/infrastructure/adapters"
	"netconfd/internal/infrastructure/metrics"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// NIC feature bits for VLAN hardware acceleration
const (
	FlagHWVLANTx     uint64 = 1 << 7
	FlagHWVLANRx     uint64 = 1 << 8
	FlagHWVLANFilter uint64 = 1 << 9
)

// Duplex is the reported link duplex
type Duplex string

const (
	DuplexFull    Duplex = "full"
	DuplexHalf    Duplex = "half"
	DuplexUnknown Duplex = "unknown"
)

var errNoReadlink = errors.New("file system cannot read symlinks")

// driver symlinks under these path components belong to virtual backends
var defaultVirtualBackends = []string{"xen-backend", "virtual"}

// Store reads and writes per-device attribute files under the network device
// namespace (normally /sys/class/net). Derived queries are best-effort: they
// return a zero value instead of an error.
type Store struct {
	fs              afero.Fs
	files           interfaces.FileSystem
	root            string
	readlink        func(string) (string, error)
	virtualBackends []string
	logger          *logrus.Logger
}

// Option configures a Store
type Option func(*Store)

// WithReadlink replaces the symlink reader
func WithReadlink(fn func(string) (string, error)) Option {
	return func(s *Store) {
		s.readlink = fn
	}
}

// WithVirtualBackends replaces the list of virtual driver backends
func WithVirtualBackends(backends []string) Option {
	return func(s *Store) {
		s.virtualBackends = backends
	}
}

// NewStore creates a Store rooted at root
func NewStore(fs afero.Fs, root string, logger *logrus.Logger, opts ...Option) *Store {
	s := &Store{
		fs:              fs,
		files:           adapters.NewFileSystem(fs),
		root:            root,
		virtualBackends: defaultVirtualBackends,
		logger:          logger,
	}
	s.readlink = func(name string) (string, error) {
		if lr, ok := fs.(afero.LinkReader); ok {
			return lr.ReadlinkIfPossible(name)
		}
		return "", errNoReadlink
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the attribute file of a device
func (s *Store) Path(dev, attr string) string {
	return filepath.Join(s.root, dev, attr)
}

// List returns the names of all network devices
func (s *Store) List() ([]string, error) {
	names, err := s.files.ListDirs(s.root)
	if err != nil {
		return nil, &domainErrors.AttributeReadError{Device: "", Attribute: s.root, Cause: err}
	}
	return names, nil
}

// Exists reports whether a device is present
func (s *Store) Exists(dev string) bool {
	ok, err := afero.DirExists(s.fs, filepath.Join(s.root, dev))
	return err == nil && ok
}

// ReadOneLine reads the first line of a device attribute
func (s *Store) ReadOneLine(dev, attr string) (string, error) {
	line, err := ReadFileLine(s.fs, s.Path(dev, attr))
	if err != nil {
		return "", &domainErrors.AttributeReadError{Device: dev, Attribute: attr, Cause: err}
	}
	return line, nil
}

// WriteOneLine writes a single line to a device attribute
func (s *Store) WriteOneLine(dev, attr, value string) error {
	if err := WriteFileLine(s.fs, s.Path(dev, attr), value); err != nil {
		return &domainErrors.AttributeWriteError{Device: dev, Attribute: attr, Value: value, Cause: err}
	}
	return nil
}

// ReadFileLine reads the first line of an arbitrary control file
func ReadFileLine(fs afero.Fs, name string) (string, error) {
	f, err := fs.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		return strings.TrimRight(scanner.Text(), "\r\n"), nil
	}
	return "", scanner.Err()
}

// WriteFileLine writes a single line to an existing control file. The file
// is never created: a missing attribute is a write failure.
func WriteFileLine(fs afero.Fs, name, value string) error {
	f, err := fs.OpenFile(name, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(value + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *Store) link(dev, attr string) (string, error) {
	return s.readlink(s.Path(dev, attr))
}

// IsPhysical reports whether dev is backed by a real NIC driver
func (s *Store) IsPhysical(dev string) bool {
	target, err := s.link(dev, "device/driver")
	if err != nil {
		return false
	}
	for _, component := range strings.Split(target, "/") {
		for _, virtual := range s.virtualBackends {
			if component == virtual {
				return false
			}
		}
	}
	return true
}

// IsBridge reports whether dev is a kernel bridge
func (s *Store) IsBridge(dev string) bool {
	ok, err := afero.DirExists(s.fs, s.Path(dev, "bridge"))
	return err == nil && ok
}

// IsBond reports whether dev is a kernel bond master
func (s *Store) IsBond(dev string) bool {
	ok, err := afero.DirExists(s.fs, s.Path(dev, "bonding"))
	return err == nil && ok
}

// Classify returns the kind of a device
func (s *Store) Classify(dev string) entities.DeviceKind {
	switch {
	case s.IsBridge(dev):
		return entities.KindBridge
	case s.IsBond(dev):
		return entities.KindBondMaster
	case s.IsPhysical(dev):
		return entities.KindPhysical
	case strings.Contains(dev, "."):
		return entities.KindVLAN
	default:
		return entities.KindInternal
	}
}

// GetCarrier reports whether dev has carrier
func (s *Store) GetCarrier(dev string) bool {
	carrier, err := s.ReadOneLine(dev, "carrier")
	if err != nil {
		s.logger.WithError(err).Debug("carrier unavailable")
		return false
	}
	return strings.TrimSpace(carrier) == "1"
}

// GetPCIBusPath returns the PCI bus id of dev, or "" if it has none
func (s *Store) GetPCIBusPath(dev string) string {
	target, err := s.link(dev, "device")
	if err != nil {
		return ""
	}
	return path.Base(target)
}

// GetPCIIDs returns the vendor and device ids
func (s *Store) GetPCIIDs(dev string) (vendor, device string) {
	vendor, err := s.ReadOneLine(dev, "device/vendor")
	if err != nil {
		vendor = ""
	}
	device, err = s.ReadOneLine(dev, "device/device")
	if err != nil {
		device = ""
	}
	return vendor, device
}

// GetDriverName returns the name of the driver bound to dev
func (s *Store) GetDriverName(dev string) (string, bool) {
	target, err := s.link(dev, "device/driver")
	if err != nil {
		return "", false
	}
	return path.Base(target), true
}

// GetFeatures returns the NIC feature bitmask
func (s *Store) GetFeatures(dev string) uint64 {
	raw, err := s.ReadOneLine(dev, "features")
	if err != nil {
		return 0
	}
	features, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(raw), "0x"), 16, 64)
	if err != nil {
		return 0
	}
	return features
}

// HasVLANAccel reports whether dev offloads any VLAN handling
func (s *Store) HasVLANAccel(dev string) bool {
	return s.GetFeatures(dev)&(FlagHWVLANTx|FlagHWVLANRx|FlagHWVLANFilter) != 0
}

// BridgeToInterfaces lists the ports of a kernel bridge
func (s *Store) BridgeToInterfaces(bridge string) []string {
	entries, err := afero.ReadDir(s.fs, s.Path(bridge, "brif"))
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

// SetMulticastSnooping toggles IGMP snooping on a kernel bridge
func (s *Store) SetMulticastSnooping(bridge string, enable bool) {
	value := "0"
	if enable {
		value = "1"
	}
	if err := s.WriteOneLine(bridge, "bridge/multicast_snooping", value); err != nil {
		metrics.RecordAdvisoryFailure("set_multicast_snooping")
		s.logger.WithError(err).WithField("bridge", bridge).Warn("Failed to set multicast snooping")
	}
}

// GetSpeed returns the link speed in Mb/s, 0 when unknown
func (s *Store) GetSpeed(dev string) int {
	raw, err := s.ReadOneLine(dev, "speed")
	if err != nil {
		return 0
	}
	speed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || speed < 0 {
		return 0
	}
	return speed
}

// GetDuplex returns the link duplex
func (s *Store) GetDuplex(dev string) Duplex {
	raw, err := s.ReadOneLine(dev, "duplex")
	if err != nil {
		return DuplexUnknown
	}
	switch Duplex(strings.TrimSpace(raw)) {
	case DuplexFull:
		return DuplexFull
	case DuplexHalf:
		return DuplexHalf
	default:
		return DuplexUnknown
	}
}

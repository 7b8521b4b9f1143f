// Package storage persists the device configuration using LittleFS.
// It handles atomic writes, version checking, and cleanup of temporary files.
package storage

import (
	"errors"
	"os"
	"path"
	"strings"

	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/config"

	"tinygo.org/x/tinyfs"
	"tinygo.org/x/tinyfs/littlefs"
)

const (
	configDir  = "/config"
	deviceFile = "/config/device.bin"
	tempSuffix = ".tmp"
)

var (
	ErrConfigNotFound = errors.New("device config not found")
	ErrInvalidConfig  = errors.New("invalid device config data")
)

// Manager handles config persistence using LittleFS.
type Manager struct {
	fs       *littlefs.LFS
	blockDev tinyfs.BlockDevice
	mounted  bool
}

// Stats provides information about storage usage.
type Stats struct {
	TotalSpace int64
	UsedSpace  int64
	FreeSpace  int64
	HasConfig  bool
}

// New initializes the storage system with the given block device.
// It mounts the filesystem and performs boot-time cleanup.
// If format is true and mount fails, it will format the filesystem.
func New(blockDev tinyfs.BlockDevice, format bool) (*Manager, error) {
	lfs := littlefs.New(blockDev)

	// Conservative settings for RP2040 flash
	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 128,
	})

	err := lfs.Mount()
	if err != nil {
		if !format {
			return nil, err
		}
		if err := lfs.Format(); err != nil {
			return nil, err
		}
		if err := lfs.Mount(); err != nil {
			return nil, err
		}
	}

	m := &Manager{
		fs:       lfs,
		blockDev: blockDev,
		mounted:  true,
	}

	// A leftover temp file only means an interrupted write; the old config is intact.
	_ = m.bootCleanup()

	needsWipe, err := m.checkVersion()
	if err != nil {
		// Unreadable config is treated like a first boot
		needsWipe = false
	}

	if needsWipe {
		// Config written by other firmware; fall back to defaults until the
		// host writes a new one.
		if err := m.wipeDevice(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Close unmounts the filesystem.
func (m *Manager) Close() error {
	if m.mounted {
		m.mounted = false
		return m.fs.Unmount()
	}
	return nil
}

// bootCleanup removes temporary files left over from interrupted writes.
func (m *Manager) bootCleanup() error {
	entries, err := m.readDir(configDir)
	if err != nil {
		// Config dir might not exist yet
		if isNotFound(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, tempSuffix) {
			m.fs.Remove(path.Join(configDir, name))
		}
	}

	return nil
}

// readDir reads the directory entries at the given path.
func (m *Manager) readDir(dirPath string) ([]os.FileInfo, error) {
	f, err := m.fs.Open(dirPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !f.IsDir() {
		return nil, errors.New("not a directory")
	}

	return f.Readdir(-1)
}

// checkVersion reads device config and checks if version matches.
// Returns true if the config should be wiped (version mismatch).
func (m *Manager) checkVersion() (bool, error) {
	var deviceCfg config.DeviceConfig
	if err := m.LoadDevice(&deviceCfg); err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			// First boot
			return false, nil
		}
		return false, err
	}

	return deviceCfg.Version != config.CurrentVersion, nil
}

// wipeDevice removes the stored device record.
func (m *Manager) wipeDevice() error {
	if err := m.fs.Remove(deviceFile); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// ensureConfigDir creates the config directory if it doesn't exist.
func (m *Manager) ensureConfigDir() error {
	if err := m.fs.Mkdir(configDir, 0755); err != nil && !isExist(err) {
		return err
	}
	return nil
}

// isExist checks if an error is "already exists".
// LittleFS errors don't always match os.IsExist, so we check the message too.
func isExist(err error) bool {
	if err == nil {
		return false
	}
	if os.IsExist(err) {
		return true
	}
	return strings.Contains(err.Error(), "already exists")
}

// isNotFound is the missing-file counterpart of isExist.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if os.IsNotExist(err) {
		return true
	}
	return strings.Contains(err.Error(), "No directory entry")
}

// LoadDevice loads the device configuration.
func (m *Manager) LoadDevice(cfg *config.DeviceConfig) error {
	f, err := m.fs.Open(deviceFile)
	if err != nil {
		if isNotFound(err) {
			return ErrConfigNotFound
		}
		return err
	}
	defer f.Close()

	buf := make([]byte, config.Size)
	n, err := f.Read(buf)
	if err != nil {
		return err
	}
	if n != config.Size {
		return ErrInvalidConfig
	}

	return cfg.UnmarshalBinary(buf)
}

// HasDevice reports whether a device config is stored.
func (m *Manager) HasDevice() bool {
	f, err := m.fs.Open(deviceFile)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// SaveDevice saves the device configuration atomically.
func (m *Manager) SaveDevice(cfg *config.DeviceConfig) error {
	if err := m.ensureConfigDir(); err != nil {
		return err
	}

	cfg.Version = config.CurrentVersion

	data, err := cfg.MarshalBinary()
	if err != nil {
		return err
	}

	return m.atomicWrite(deviceFile, data)
}

// GetStats returns storage statistics.
func (m *Manager) GetStats() (*Stats, error) {
	// LittleFS has no free space call; estimate from what we store.
	// Device config: 12 bytes + ~32 bytes overhead, plus the directory entry.
	hasConfig := m.HasDevice()
	used := int64(100)
	if hasConfig {
		used += 44
	}

	total := m.blockDev.Size()

	return &Stats{
		TotalSpace: total,
		UsedSpace:  used,
		FreeSpace:  total - used,
		HasConfig:  hasConfig,
	}, nil
}

// atomicWrite writes data to a temporary file, syncs it, then renames.
// The original file is never in a partially written state.
func (m *Manager) atomicWrite(filepath string, data []byte) (err error) {
	tempPath := filepath + tempSuffix
	m.fs.Remove(tempPath)

	f, err := m.fs.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			m.fs.Remove(tempPath)
		}
	}()

	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err = syncer.Sync(); err != nil {
			f.Close()
			return err
		}
	}
	if err = f.Close(); err != nil {
		return err
	}

	// LittleFS rename doesn't replace
	m.fs.Remove(filepath)
	return m.fs.Rename(tempPath, filepath)
}

// ForceWipe erases the stored configuration (factory reset).
func (m *Manager) ForceWipe() error {
	return m.wipeDevice()
}

package drvstore

import (
	"io"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/nightlyone/lockfile"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/host"
	log "github.com/sirupsen/logrus"

	"github.com/cloudradar-monitoring/drvstore/pkg/common"
	"github.com/cloudradar-monitoring/drvstore/pkg/devinstall"
	"github.com/cloudradar-monitoring/drvstore/pkg/dism"
	"github.com/cloudradar-monitoring/drvstore/pkg/driverstore"
	wmiutil "github.com/cloudradar-monitoring/drvstore/pkg/wmi"
)

var ErrAnotherInstanceRunning = errors.New("another drvstore instance is working on the driver store")

type Drvstore struct {
	Config         *Config
	ConfigLocation string

	store driverstore.DriverStore
	lock  *lockfile.Lockfile

	version string
}

// New wires the driver store described by cfg.
func New(cfg *Config, cfgPath string, version string) (*Drvstore, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	return NewWithStore(cfg, cfgPath, version, store)
}

// NewWithStore uses the given store instead of the one described by cfg.
func NewWithStore(cfg *Config, cfgPath string, version string, store driverstore.DriverStore) (*Drvstore, error) {
	d := &Drvstore{
		Config:         cfg,
		ConfigLocation: cfgPath,
		store:          driverstore.Synchronized(store),
		version:        version,
	}

	if cfg.LockFile != "" {
		lock, err := lockfile.New(cfg.LockFile)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid lock file '%s'", cfg.LockFile)
		}
		d.lock = &lock
	}

	return d, nil
}

func newStore(cfg *Config) (*driverstore.Store, error) {
	level, err := dism.ParseLogLevel(cfg.DismLogLevel)
	if err != nil {
		return nil, err
	}

	imaging := dism.New(cfg.DismLogFile, cfg.DismScratchDir)

	installer := devinstall.New()
	if cfg.DeviceSource == DeviceSourceWMI {
		installer.Source = wmiutil.DeviceSource(secToDuration(cfg.WMITimeout))
	}

	opts := []driverstore.Option{driverstore.WithLogLevel(level)}

	switch cfg.Mode {
	case ModeOnline:
		return driverstore.NewOnline(imaging, installer, opts...), nil
	case ModeOffline:
		return driverstore.NewOffline(cfg.ImagePath, imaging, installer, opts...), nil
	default:
		return nil, errors.Wrapf(driverstore.ErrNotSupported, "mode '%s'", cfg.Mode)
	}
}

var hostInfo = host.Info

// LogHostInfo logs the platform of the running system at debug level. Offline
// images are not described by it, so nothing is logged in offline mode.
// Call it once the logger is configured.
func (d *Drvstore) LogHostInfo() {
	if d.Config.Mode != ModeOnline {
		return
	}

	info, err := hostInfo()
	if err != nil {
		log.WithError(err).Debug("Could not read host info")
		return
	}
	log.WithFields(log.Fields{
		"platform": info.Platform,
		"version":  info.PlatformVersion,
		"family":   info.PlatformFamily,
		"kernel":   info.KernelVersion,
	}).Debugf("Opening driver store of %s", info.Hostname)
}

func (d *Drvstore) Store() driverstore.DriverStore {
	return d.store
}

func (d *Drvstore) Version() string {
	if d.version == "" {
		return "{undefined}"
	}
	return d.version
}

func (d *Drvstore) withLock(fn func() error) error {
	if d.lock == nil {
		return fn()
	}

	if err := d.lock.TryLock(); err != nil {
		if err == lockfile.ErrBusy {
			return ErrAnotherInstanceRunning
		}
		return errors.Wrap(err, "could not get lock")
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			log.WithError(err).Warn("Could not release lock")
		}
	}()

	return fn()
}

// List enumerates the driver store.
func (d *Drvstore) List() ([]driverstore.Entry, error) {
	var entries []driverstore.Entry
	err := d.withLock(func() error {
		var err error
		entries, err = d.enumerate()
		return err
	})
	return entries, err
}

// ListOld returns the packages which have a newer version in the driver store.
func (d *Drvstore) ListOld() ([]driverstore.Entry, error) {
	entries, err := d.List()
	if err != nil {
		return nil, err
	}
	return driverstore.OldVersions(entries), nil
}

func (d *Drvstore) enumerate() ([]driverstore.Entry, error) {
	log.Debugf("Enumerating %v driver store", d.store.Target())

	entries, err := d.store.Enumerate()
	if err != nil {
		return nil, errors.Wrapf(err, "while enumerating %v driver store", d.store.Target())
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		for _, e := range entries {
			log.Debugf("Driver package: %s", spew.Sdump(e))
		}
	}
	log.Infof("Found %d driver packages", len(entries))

	return entries, nil
}

// Delete removes the packages with the given published names. It keeps going
// when one of them fails and reports all failures at the end.
func (d *Drvstore) Delete(publishedNames []string, force bool) error {
	return d.withLock(func() error {
		entries, err := d.enumerate()
		if err != nil {
			return err
		}

		errs := common.ErrorCollector{}
		for _, name := range publishedNames {
			entry, err := driverstore.Find(entries, strings.TrimSpace(name))
			if err != nil {
				errs.Add(err)
				continue
			}
			errs.Add(d.delete(entry, force))
		}
		return errs.Combine()
	})
}

// DeleteOld removes every package which has a newer version in the driver store
// and returns the removed entries.
func (d *Drvstore) DeleteOld(force bool) ([]driverstore.Entry, error) {
	var deleted []driverstore.Entry
	err := d.withLock(func() error {
		entries, err := d.enumerate()
		if err != nil {
			return err
		}

		var errs error
		deleted, errs = d.deleteEntries(driverstore.OldVersions(entries), force)
		return errs
	})
	return deleted, err
}

// DeleteEntries removes exactly the given packages, e.g. the ones a user confirmed
// from an earlier ListOld. Packages that are no longer in the driver store are
// reported and skipped. It returns the removed entries.
func (d *Drvstore) DeleteEntries(entries []driverstore.Entry, force bool) ([]driverstore.Entry, error) {
	var deleted []driverstore.Entry
	err := d.withLock(func() error {
		current, err := d.enumerate()
		if err != nil {
			return err
		}

		errs := common.ErrorCollector{}
		confirmed := make([]driverstore.Entry, 0, len(entries))
		for _, e := range entries {
			entry, err := driverstore.Find(current, e.DriverPublishedName)
			if err != nil {
				log.WithField("published_name", e.DriverPublishedName).Warn("Driver package is gone from the driver store, skipping it")
				errs.Add(err)
				continue
			}
			confirmed = append(confirmed, *entry)
		}

		var deleteErr error
		deleted, deleteErr = d.deleteEntries(confirmed, force)
		errs.Add(deleteErr)
		return errs.Combine()
	})
	return deleted, err
}

func (d *Drvstore) deleteEntries(entries []driverstore.Entry, force bool) ([]driverstore.Entry, error) {
	var deleted []driverstore.Entry
	errs := common.ErrorCollector{}
	for _, entry := range entries {
		entry := entry
		if err := d.delete(&entry, force); err != nil {
			errs.Add(err)
			continue
		}
		deleted = append(deleted, entry)
	}
	return deleted, errs.Combine()
}

func (d *Drvstore) delete(entry *driverstore.Entry, force bool) error {
	logger := log.WithFields(log.Fields{
		"published_name": entry.DriverPublishedName,
		"inf_name":       entry.DriverInfName,
		"force":          force,
	})

	ok, err := d.store.Delete(entry, force)
	if err != nil {
		logger.WithError(err).Error("Failed to delete driver package")
		return errors.Wrapf(err, "could not delete '%s'", entry.DriverPublishedName)
	}
	if !ok {
		logger.Error("Driver package was not deleted")
		return errors.Errorf("could not delete '%s'", entry.DriverPublishedName)
	}

	logger.Info("Driver package deleted")
	return nil
}

// Add puts a driver package into the driver store and, with install, onto matching devices.
func (d *Drvstore) Add(infPath string, install bool) error {
	return d.withLock(func() error {
		logger := log.WithFields(log.Fields{
			"inf":     infPath,
			"install": install,
		})

		ok, err := d.store.Add(infPath, install)
		if err != nil {
			logger.WithError(err).Error("Failed to add driver package")
			return errors.Wrapf(err, "could not add '%s'", infPath)
		}
		if !ok {
			logger.Error("Driver package was not added")
			return errors.Errorf("could not add '%s'", infPath)
		}

		logger.Info("Driver package added")
		return nil
	})
}

// Export writes entries in the configured output format.
func (d *Drvstore) Export(entries []driverstore.Entry, w io.Writer) error {
	exporter, err := NewExporter(d.Config.OutputFormat)
	if err != nil {
		return err
	}
	return exporter.Export(entries, w)
}

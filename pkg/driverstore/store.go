package driverstore

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/cloudradar-monitoring/drvstore/pkg/common"
	"github.com/cloudradar-monitoring/drvstore/pkg/devinstall"
	"github.com/cloudradar-monitoring/drvstore/pkg/dism"
)

// Imaging is the DISM side: a process wide logging context and sessions opened within it.
type Imaging interface {
	Initialize(level dism.LogLevel) error
	Shutdown() error
	OpenOnlineSession() (dism.Session, error)
	OpenOfflineSession(imagePath string) (dism.Session, error)
}

// DeviceInstaller is the device installer side. It only works on the running system.
type DeviceInstaller interface {
	DeviceDrivers() ([]devinstall.DeviceDriver, error)
	SignerName(infPath string) string
	AddDriver(infPath string, install bool) (bool, error)
	DeleteDriver(publishedName string, force bool) (bool, error)
}

// DriverStore is implemented by *Store and by the wrapper returned from Synchronized.
type DriverStore interface {
	Target() Target
	Enumerate() ([]Entry, error)
	Delete(entry *Entry, forceDelete bool) (bool, error)
	Add(infFullPath string, install bool) (bool, error)
}

// Store enumerates and changes one driver store.
//
// Every call opens and closes its own DISM session. The DISM logging context is
// process wide, so calls must not overlap: wrap the store with Synchronized when
// it is shared between goroutines.
type Store struct {
	target     Target
	imaging    Imaging
	installer  DeviceInstaller
	logLevel   dism.LogLevel
	folderSize func(dir string) int64
}

type Option func(*Store)

// WithLogLevel sets the level DISM is initialized with. The default is dism.LogErrors.
func WithLogLevel(level dism.LogLevel) Option {
	return func(s *Store) {
		s.logLevel = level
	}
}

// WithFolderSize replaces the function computing the size of a package folder.
func WithFolderSize(fn func(dir string) int64) Option {
	return func(s *Store) {
		s.folderSize = fn
	}
}

func New(target Target, imaging Imaging, installer DeviceInstaller, opts ...Option) *Store {
	s := &Store{
		target:     target,
		imaging:    imaging,
		installer:  installer,
		logLevel:   dism.LogErrors,
		folderSize: common.FolderSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewOnline returns a store bound to the running system.
func NewOnline(imaging Imaging, installer DeviceInstaller, opts ...Option) *Store {
	return New(Online{}, imaging, installer, opts...)
}

// NewOffline returns a store bound to the image mounted at imagePath. The path is
// not checked here; opening the DISM session fails if it is wrong.
func NewOffline(imagePath string, imaging Imaging, installer DeviceInstaller, opts ...Option) *Store {
	return New(Offline{ImagePath: imagePath}, imaging, installer, opts...)
}

func (s *Store) Target() Target {
	return s.target
}

// Enumerate lists the out-of-box driver packages of the store in DISM order.
// For online stores the device using each package is filled in as well.
func (s *Store) Enumerate() ([]Entry, error) {
	var entries []Entry

	err := s.withSession(func(session dism.Session) error {
		var devices []devinstall.DeviceDriver
		if _, online := s.target.(Online); online {
			var err error
			devices, err = s.installer.DeviceDrivers()
			if err != nil {
				return err
			}
		}

		packages, err := session.Drivers(false)
		if err != nil {
			return err
		}

		seen := make(map[string]struct{}, len(packages))
		entries = make([]Entry, 0, len(packages))
		for _, p := range packages {
			key := strings.ToLower(p.PublishedName)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			entries = append(entries, s.newEntry(p, devices))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Delete removes the entry's package. forceDelete removes it even while a device
// uses it; offline stores ignore the flag since DISM has no such option.
func (s *Store) Delete(entry *Entry, forceDelete bool) (bool, error) {
	if entry == nil {
		return false, errors.Wrap(ErrInvalidArgument, "nil entry")
	}

	switch s.target.(type) {
	case Online:
		return s.installer.DeleteDriver(entry.DriverPublishedName, forceDelete)
	case Offline:
		err := s.withSession(func(session dism.Session) error {
			return session.RemoveDriver(entry.DriverPublishedName)
		})
		if err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, errors.Wrapf(ErrNotSupported, "target %v", s.target)
	}
}

// Add puts the package described by infFullPath into the store. With install the
// driver is also installed on matching devices; offline stores ignore the flag
// and only stage the package.
func (s *Store) Add(infFullPath string, install bool) (bool, error) {
	switch s.target.(type) {
	case Online:
		return s.installer.AddDriver(infFullPath, install)
	case Offline:
		err := s.withSession(func(session dism.Session) error {
			return session.AddDriver(infFullPath, false)
		})
		if err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, errors.Wrapf(ErrNotSupported, "target %v", s.target)
	}
}

// withSession runs fn inside an initialized DISM context and an open session.
// Shutdown runs once Initialize succeeded and Close once the session opened,
// whatever fn returns. Release errors are only reported when fn succeeded.
func (s *Store) withSession(fn func(dism.Session) error) (err error) {
	if err := s.imaging.Initialize(s.logLevel); err != nil {
		return err
	}
	defer func() {
		if shutdownErr := s.imaging.Shutdown(); err == nil {
			err = shutdownErr
		}
	}()

	session, err := s.openSession()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := session.Close(); err == nil {
			err = closeErr
		}
	}()

	return fn(session)
}

func (s *Store) openSession() (dism.Session, error) {
	switch t := s.target.(type) {
	case Online:
		return s.imaging.OpenOnlineSession()
	case Offline:
		return s.imaging.OpenOfflineSession(t.ImagePath)
	default:
		return nil, errors.Wrapf(ErrNotSupported, "target %v", s.target)
	}
}

func (s *Store) newEntry(p dism.DriverPackage, devices []devinstall.DeviceDriver) Entry {
	folder := common.Dir(p.OriginalFileName)

	e := Entry{
		DriverClass:          p.ClassDescription,
		DriverInfName:        common.Base(p.OriginalFileName),
		DriverPublishedName:  p.PublishedName,
		DriverPkgProvider:    p.ProviderName,
		DriverDate:           p.Date,
		DriverVersion:        p.Version,
		DriverFolderLocation: folder,
		DriverSize:           s.folderSize(folder),
		BootCritical:         p.BootCritical,
		Inbox:                p.InBox,
	}

	if p.Signature == dism.Signed {
		e.DriverSignerName = s.installer.SignerName(p.OriginalFileName)
	}

	if d := matchDevice(devices, p.PublishedName); d != nil {
		name, present := d.DeviceName, d.Present
		e.DeviceName = &name
		e.DevicePresent = &present
	}

	return e
}

// matchDevice picks the device whose driver INF is publishedName, preferring
// present devices over ones only remembered by the system.
func matchDevice(devices []devinstall.DeviceDriver, publishedName string) *devinstall.DeviceDriver {
	var match *devinstall.DeviceDriver
	for i := range devices {
		if !strings.EqualFold(common.Base(devices[i].DriverInf), publishedName) {
			continue
		}
		if devices[i].Present {
			return &devices[i]
		}
		if match == nil {
			match = &devices[i]
		}
	}
	return match
}

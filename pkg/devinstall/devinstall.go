package devinstall

import "errors"

var ErrNotSupported = errors.New("devinstall: not supported on this platform")

// DeviceDriver associates a device node with the INF of its installed driver.
type DeviceDriver struct {
	DeviceName string
	InstanceID string
	// DriverInf is the INF of the installed driver, usually the published
	// name (oemNN.inf) or a full path to it.
	DriverInf string
	Present   bool
}

// DeviceSource lists device/driver associations.
type DeviceSource func() ([]DeviceDriver, error)

// Installer talks to the device installer API of the running system.
type Installer struct {
	// Source replaces the SetupAPI device enumeration when set.
	Source DeviceSource
}

func New() *Installer {
	return &Installer{}
}

// DeviceDrivers lists present and non-present devices which have a driver installed.
func (i *Installer) DeviceDrivers() ([]DeviceDriver, error) {
	if i.Source != nil {
		return i.Source()
	}
	return enumerateDeviceDrivers()
}

// +build !windows

package devinstall

func enumerateDeviceDrivers() ([]DeviceDriver, error) {
	return nil, ErrNotSupported
}

func (i *Installer) SignerName(infPath string) string {
	return ""
}

func (i *Installer) AddDriver(infPath string, install bool) (bool, error) {
	return false, ErrNotSupported
}

func (i *Installer) DeleteDriver(publishedName string, force bool) (bool, error) {
	return false, ErrNotSupported
}

// +build windows

package devinstall

import (
	"path/filepath"
	"unsafe"

	"github.com/gentlemanautomaton/windevice"
	"github.com/gentlemanautomaton/windevice/deviceclass"
	"github.com/gentlemanautomaton/windevice/deviceid"
	"github.com/gentlemanautomaton/windevice/deviceregistry"
	"github.com/gentlemanautomaton/windevice/hwprofile"
	"github.com/gentlemanautomaton/windevice/infpath"
	"github.com/gentlemanautomaton/windevice/setupapi"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

const (
	// SPOST_PATH
	sourceMediaTypePath = 1
	// SUOI_FORCEDELETE
	uninstallForceDelete = 0x00000001
)

var (
	setupapiDLL = windows.NewLazySystemDLL("setupapi.dll")
	newdevDLL   = windows.NewLazySystemDLL("newdev.dll")

	// https://docs.microsoft.com/en-us/windows/win32/api/setupapi/nf-setupapi-setupverifyinffilew
	procSetupVerifyInfFile = setupapiDLL.NewProc("SetupVerifyInfFileW")
	// https://docs.microsoft.com/en-us/windows/win32/api/setupapi/nf-setupapi-setupcopyoeminfw
	procSetupCopyOEMInf = setupapiDLL.NewProc("SetupCopyOEMInfW")
	// https://docs.microsoft.com/en-us/windows/win32/api/setupapi/nf-setupapi-setupuninstalloeminfw
	procSetupUninstallOEMInf = setupapiDLL.NewProc("SetupUninstallOEMInfW")
	// https://docs.microsoft.com/en-us/windows/win32/api/newdev/nf-newdev-diinstalldriverw
	procDiInstallDriver = newdevDLL.NewProc("DiInstallDriverW")
)

// SP_INF_SIGNER_INFO_V2_W
type infSignerInfo struct {
	Size                 uint32
	CatalogFile          [windows.MAX_PATH]uint16
	DigitalSigner        [windows.MAX_PATH]uint16
	DigitalSignerVersion [windows.MAX_PATH]uint16
	SignerScore          uint32
}

func enumerateDeviceDrivers() ([]DeviceDriver, error) {
	present := make(map[deviceid.DeviceInstance]bool)
	presentQuery := windevice.DeviceQuery{
		Flags: deviceclass.AllClasses | deviceclass.Present,
	}
	err := presentQuery.Each(func(device windevice.Device) {
		id, err := device.DeviceInstanceID()
		if err != nil {
			return
		}
		present[id] = true
	})
	if err != nil {
		return nil, errors.Wrap(err, "devinstall: present devices query failed")
	}

	allQuery := windevice.DeviceQuery{
		Flags: deviceclass.AllClasses,
	}
	result := make([]DeviceDriver, 0)
	err = allQuery.Each(func(device windevice.Device) {
		inf, err := driverInfPath(device)
		if err != nil || inf == "" {
			// no driver key: the device never had a driver installed
			return
		}

		id, err := device.DeviceInstanceID()
		if err != nil {
			log.Debugf("devinstall: could not get device instance id %s", err.Error())
		}

		name, _ := device.FriendlyName()
		if name == "" {
			name, _ = device.Description()
		}

		result = append(result, DeviceDriver{
			DeviceName: name,
			InstanceID: string(id),
			DriverInf:  inf,
			Present:    present[id],
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "devinstall: devices query failed")
	}

	return result, nil
}

// driverInfPath reads InfPath from the device's driver key.
func driverInfPath(device windevice.Device) (string, error) {
	devices, data := device.Sys()
	key, err := setupapi.OpenDevRegKey(devices, data, hwprofile.Global, 0, deviceregistry.Driver, deviceregistry.Read)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := key.Close(); err != nil {
			log.Warnf("devinstall: there was error closing driver key: %s", err)
		}
	}()

	inf, _, err := key.GetStringValue("InfPath")
	return inf, err
}

// SignerName returns the digital signer of the INF's catalog or "" if it can't be verified.
func (i *Installer) SignerName(infPath string) string {
	path, err := windows.UTF16PtrFromString(infPath)
	if err != nil {
		return ""
	}

	info := infSignerInfo{}
	info.Size = uint32(unsafe.Sizeof(info))

	r1, _, e := procSetupVerifyInfFile.Call(
		uintptr(unsafe.Pointer(path)),
		0, // AltPlatformInfo
		uintptr(unsafe.Pointer(&info)),
	)
	if r1 == 0 {
		log.WithError(e).Debugf("devinstall: SetupVerifyInfFile failed for '%s'", infPath)
		return ""
	}

	return windows.UTF16ToString(info.DigitalSigner[:])
}

// AddDriver stages the INF into the driver store. With install set the driver is
// also installed on matching devices.
func (i *Installer) AddDriver(infPath string, install bool) (bool, error) {
	path, err := infpath.Prepare(infPath)
	if err != nil {
		return false, errors.Wrap(err, "devinstall")
	}

	utf16Path, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false, errors.Wrapf(err, "devinstall: invalid inf path '%s'", path)
	}

	if install {
		var needReboot int32
		r1, _, e := procDiInstallDriver.Call(
			0, // hwndParent
			uintptr(unsafe.Pointer(utf16Path)),
			0,
			uintptr(unsafe.Pointer(&needReboot)),
		)
		if r1 == 0 {
			return false, errors.Wrapf(e, "devinstall: DiInstallDriver failed for '%s'", path)
		}
		if needReboot != 0 {
			log.Infof("devinstall: installing '%s' requires a reboot", path)
		}
		return true, nil
	}

	var destination [windows.MAX_PATH]uint16
	r1, _, e := procSetupCopyOEMInf.Call(
		uintptr(unsafe.Pointer(utf16Path)),
		0, // OEMSourceMediaLocation
		sourceMediaTypePath,
		0, // CopyStyle
		uintptr(unsafe.Pointer(&destination[0])),
		uintptr(len(destination)),
		0, // RequiredSize
		0, // DestinationInfFileNameComponent
	)
	if r1 == 0 {
		return false, errors.Wrapf(e, "devinstall: SetupCopyOEMInf failed for '%s'", path)
	}
	log.Debugf("devinstall: '%s' staged as '%s'", path, windows.UTF16ToString(destination[:]))

	return true, nil
}

// DeleteDriver removes a published package (oemNN.inf) from the driver store.
// Without force the call fails while a device still uses the package.
func (i *Installer) DeleteDriver(publishedName string, force bool) (bool, error) {
	name, err := windows.UTF16PtrFromString(filepath.Base(publishedName))
	if err != nil {
		return false, errors.Wrapf(err, "devinstall: invalid driver name '%s'", publishedName)
	}

	var flags uintptr
	if force {
		flags = uninstallForceDelete
	}

	r1, _, e := procSetupUninstallOEMInf.Call(uintptr(unsafe.Pointer(name)), flags, 0)
	if r1 == 0 {
		return false, errors.Wrapf(e, "devinstall: SetupUninstallOEMInf failed for '%s'", publishedName)
	}

	return true, nil
}

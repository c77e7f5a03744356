package wmiutil

import (
	"github.com/cloudradar-monitoring/drvstore/pkg/devinstall"
)

// https://docs.microsoft.com/en-us/previous-versions/windows/desktop/cimwin32a/win32-pnpsigneddriver
type win32_PnPSignedDriver struct {
	DeviceName *string
	DeviceID   *string
	InfName    *string
}

// toDeviceDrivers keeps the rows that name a driver INF. Win32_PnPSignedDriver only
// has rows for devices that are present.
func toDeviceDrivers(rows []win32_PnPSignedDriver) []devinstall.DeviceDriver {
	result := make([]devinstall.DeviceDriver, 0, len(rows))
	for _, row := range rows {
		if row.InfName == nil || *row.InfName == "" {
			continue
		}

		d := devinstall.DeviceDriver{
			DriverInf: *row.InfName,
			Present:   true,
		}
		if row.DeviceName != nil {
			d.DeviceName = *row.DeviceName
		}
		if row.DeviceID != nil {
			d.InstanceID = *row.DeviceID
		}
		result = append(result, d)
	}
	return result
}

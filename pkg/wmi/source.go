package wmiutil

import (
	"time"

	"github.com/cloudradar-monitoring/drvstore/pkg/devinstall"
)

// DeviceSource returns a devinstall.DeviceSource backed by WMI.
func DeviceSource(timeout time.Duration) devinstall.DeviceSource {
	return func() ([]devinstall.DeviceDriver, error) {
		return DeviceDrivers(timeout)
	}
}

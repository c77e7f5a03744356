// +build !windows

package wmiutil

import (
	"time"

	"github.com/cloudradar-monitoring/drvstore/pkg/devinstall"
)

func DeviceDrivers(timeout time.Duration) ([]devinstall.DeviceDriver, error) {
	return nil, devinstall.ErrNotSupported
}

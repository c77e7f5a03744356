// +build windows

package wmiutil

import (
	"context"
	"time"

	"github.com/StackExchange/wmi"
	"github.com/pkg/errors"

	"github.com/cloudradar-monitoring/drvstore/pkg/devinstall"
)

// QueryWithTimeout runs a WMI query and gives up after timeout. The query itself
// keeps running in the background until WMI returns.
func QueryWithTimeout(timeout time.Duration, query string, dst interface{}, connectServerArgs ...interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- wmi.Query(query, dst, connectServerArgs...)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// DeviceDrivers lists present devices with the INF of their installed driver.
func DeviceDrivers(timeout time.Duration) ([]devinstall.DeviceDriver, error) {
	var rows []win32_PnPSignedDriver
	query := wmi.CreateQuery(&rows, "WHERE InfName IS NOT NULL")
	if err := QueryWithTimeout(timeout, query, &rows); err != nil {
		return nil, errors.Wrap(err, "wmiutil: Win32_PnPSignedDriver query failed")
	}

	return toDeviceDrivers(rows), nil
}

// +build !windows

package drvstore

import (
	"os"
	"path/filepath"
)

func init() {
	DefaultCfgPath = "/etc/drvstore/drvstore.conf"
	defaultLogPath = "/var/log/drvstore/drvstore.log"
	defaultLockPath = filepath.Join(os.TempDir(), "drvstore.lock")
}

// +build windows

package drvstore

import (
	"os"
	"path/filepath"
)

func init() {
	ex, err := os.Executable()
	if err != nil {
		panic(err)
	}

	exPath := filepath.Dir(ex)

	DefaultCfgPath = filepath.Join(exPath, "./drvstore.conf")
	defaultLogPath = filepath.Join(exPath, "./drvstore.log")
	defaultLockPath = filepath.Join(exPath, "./drvstore.lock")
}

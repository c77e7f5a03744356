package driverstore

import (
	"github.com/cloudradar-monitoring/drvstore/pkg/devinstall"
	"github.com/cloudradar-monitoring/drvstore/pkg/dism"
)

type fakeSession struct {
	packages   []dism.DriverPackage
	driversErr error
	removeErr  error
	addErr     error
	closeErr   error

	driversCalls []bool
	removed      []string
	added        []addCall
	closeCount   int
}

type addCall struct {
	path string
	flag bool
}

func (s *fakeSession) Drivers(all bool) ([]dism.DriverPackage, error) {
	s.driversCalls = append(s.driversCalls, all)
	if s.driversErr != nil {
		return nil, s.driversErr
	}
	return s.packages, nil
}

func (s *fakeSession) RemoveDriver(publishedName string) error {
	s.removed = append(s.removed, publishedName)
	return s.removeErr
}

func (s *fakeSession) AddDriver(infPath string, forceUnsigned bool) error {
	s.added = append(s.added, addCall{infPath, forceUnsigned})
	return s.addErr
}

func (s *fakeSession) Close() error {
	s.closeCount++
	return s.closeErr
}

type fakeImaging struct {
	session     *fakeSession
	initErr     error
	openErr     error
	shutdownErr error

	initLevels    []dism.LogLevel
	shutdownCount int
	onlineOpens   int
	offlineOpens  []string
}

func (i *fakeImaging) Initialize(level dism.LogLevel) error {
	i.initLevels = append(i.initLevels, level)
	return i.initErr
}

func (i *fakeImaging) Shutdown() error {
	i.shutdownCount++
	return i.shutdownErr
}

func (i *fakeImaging) OpenOnlineSession() (dism.Session, error) {
	i.onlineOpens++
	if i.openErr != nil {
		return nil, i.openErr
	}
	return i.session, nil
}

func (i *fakeImaging) OpenOfflineSession(imagePath string) (dism.Session, error) {
	i.offlineOpens = append(i.offlineOpens, imagePath)
	if i.openErr != nil {
		return nil, i.openErr
	}
	return i.session, nil
}

func (i *fakeImaging) calls() int {
	return len(i.initLevels) + i.shutdownCount + i.onlineOpens + len(i.offlineOpens)
}

type fakeInstaller struct {
	devices    []devinstall.DeviceDriver
	devicesErr error
	signers    map[string]string
	addResult  bool
	addErr     error
	delResult  bool
	delErr     error

	deviceCalls int
	signerCalls []string
	adds        []addCall
	deletes     []deleteCall
}

type deleteCall struct {
	name  string
	force bool
}

func (i *fakeInstaller) DeviceDrivers() ([]devinstall.DeviceDriver, error) {
	i.deviceCalls++
	return i.devices, i.devicesErr
}

func (i *fakeInstaller) SignerName(infPath string) string {
	i.signerCalls = append(i.signerCalls, infPath)
	return i.signers[infPath]
}

func (i *fakeInstaller) AddDriver(infPath string, install bool) (bool, error) {
	i.adds = append(i.adds, addCall{infPath, install})
	return i.addResult, i.addErr
}

func (i *fakeInstaller) DeleteDriver(publishedName string, force bool) (bool, error) {
	i.deletes = append(i.deletes, deleteCall{publishedName, force})
	return i.delResult, i.delErr
}

func (i *fakeInstaller) calls() int {
	return i.deviceCalls + len(i.signerCalls) + len(i.adds) + len(i.deletes)
}

// unknownTarget stands for a target the store doesn't know how to serve.
type unknownTarget struct{}

func (unknownTarget) isTarget()      {}
func (unknownTarget) String() string { return "unknown" }

func noFolderSize(string) int64 {
	return 0
}

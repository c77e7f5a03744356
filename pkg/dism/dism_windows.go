// +build windows

package dism

import (
	"unicode/utf16"
	"unsafe"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

// onlineImage is DISM_ONLINE_IMAGE from dismapi.h
const onlineImage = "DISM_{53BFAE52-B167-4E2F-A258-0A37B57FF845}"

var (
	dismDLL        = windows.NewLazySystemDLL("dismapi.dll")
	dismDLLLoadErr = dismDLL.Load() // attempt to load the system dll and store the err for reference

	// https://docs.microsoft.com/en-us/windows-hardware/manufacture/desktop/dism/dism-api-functions
	procDismInitialize          = dismDLL.NewProc("DismInitialize")
	procDismShutdown            = dismDLL.NewProc("DismShutdown")
	procDismOpenSession         = dismDLL.NewProc("DismOpenSession")
	procDismCloseSession        = dismDLL.NewProc("DismCloseSession")
	procDismGetDrivers          = dismDLL.NewProc("DismGetDrivers")
	procDismAddDriver           = dismDLL.NewProc("DismAddDriver")
	procDismRemoveDriver        = dismDLL.NewProc("DismRemoveDriver")
	procDismDelete              = dismDLL.NewProc("DismDelete")
	procDismGetLastErrorMessage = dismDLL.NewProc("DismGetLastErrorMessage")
)

// API calls into dismapi.dll.
//
// DismInitialize/DismShutdown are process wide: an API value must not be
// initialized from two goroutines at the same time.
type API struct {
	// LogFile is passed to DismInitialize; empty means the DISM default (%windir%\Logs\DISM\dism.log).
	LogFile string
	// ScratchDir is passed to DismInitialize; empty means the DISM default.
	ScratchDir string
}

func New(logFile, scratchDir string) *API {
	return &API{LogFile: logFile, ScratchDir: scratchDir}
}

func (a *API) Initialize(level LogLevel) error {
	if dismDLLLoadErr != nil {
		return errors.Wrap(dismDLLLoadErr, "dism: can't load dll dismapi.dll")
	}

	logFile, err := utf16PtrOrNil(a.LogFile)
	if err != nil {
		return errors.Wrap(err, "dism: invalid log file path")
	}
	scratchDir, err := utf16PtrOrNil(a.ScratchDir)
	if err != nil {
		return errors.Wrap(err, "dism: invalid scratch dir")
	}

	hr, _, _ := procDismInitialize.Call(
		uintptr(level),
		uintptr(unsafe.Pointer(logFile)),
		uintptr(unsafe.Pointer(scratchDir)),
	)
	return checkHResult("DismInitialize", hr)
}

func (a *API) Shutdown() error {
	hr, _, _ := procDismShutdown.Call()
	return checkHResult("DismShutdown", hr)
}

func (a *API) OpenOnlineSession() (Session, error) {
	return openSession(onlineImage)
}

func (a *API) OpenOfflineSession(imagePath string) (Session, error) {
	if imagePath == "" {
		return nil, errors.New("dism: empty image path")
	}
	return openSession(imagePath)
}

func openSession(imagePath string) (Session, error) {
	path, err := windows.UTF16PtrFromString(imagePath)
	if err != nil {
		return nil, errors.Wrapf(err, "dism: invalid image path '%s'", imagePath)
	}

	var handle uint32
	hr, _, _ := procDismOpenSession.Call(
		uintptr(unsafe.Pointer(path)),
		0, // WindowsDirectory: default
		0, // SystemDrive: default
		uintptr(unsafe.Pointer(&handle)),
	)
	if err := checkHResult("DismOpenSession", hr); err != nil {
		return nil, errors.Wrapf(err, "while opening session for '%s'", imagePath)
	}

	return &session{handle: handle, imagePath: imagePath}, nil
}

type session struct {
	handle    uint32
	imagePath string
	closed    bool
}

func (s *session) Drivers(all bool) ([]DriverPackage, error) {
	var (
		array uintptr
		count uint32
	)
	hr, _, _ := procDismGetDrivers.Call(
		uintptr(s.handle),
		boolToUintptr(all),
		uintptr(unsafe.Pointer(&array)),
		uintptr(unsafe.Pointer(&count)),
	)
	if err := checkHResult("DismGetDrivers", hr); err != nil {
		return nil, err
	}

	bytesAt := func(p uintptr, size int) []byte {
		return (*[1 << 30]byte)(unsafe.Pointer(p))[:size:size]
	}
	ptrSize := int(unsafe.Sizeof(uintptr(0)))

	return decodeDriverArray(array, int(count), ptrSize, bytesAt, dismDelete, func(p uint64) string {
		return utf16PtrToString(uintptr(p))
	})
}

func (s *session) RemoveDriver(publishedName string) error {
	name, err := windows.UTF16PtrFromString(publishedName)
	if err != nil {
		return errors.Wrapf(err, "dism: invalid driver name '%s'", publishedName)
	}

	hr, _, _ := procDismRemoveDriver.Call(uintptr(s.handle), uintptr(unsafe.Pointer(name)))
	if err := checkHResult("DismRemoveDriver", hr); err != nil {
		return errors.Wrapf(err, "while removing '%s' from '%s'", publishedName, s.imagePath)
	}
	return nil
}

func (s *session) AddDriver(infPath string, forceUnsigned bool) error {
	path, err := windows.UTF16PtrFromString(infPath)
	if err != nil {
		return errors.Wrapf(err, "dism: invalid driver path '%s'", infPath)
	}

	hr, _, _ := procDismAddDriver.Call(uintptr(s.handle), uintptr(unsafe.Pointer(path)), boolToUintptr(forceUnsigned))
	if err := checkHResult("DismAddDriver", hr); err != nil {
		return errors.Wrapf(err, "while adding '%s' to '%s'", infPath, s.imagePath)
	}
	return nil
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	hr, _, _ := procDismCloseSession.Call(uintptr(s.handle))
	return checkHResult("DismCloseSession", hr)
}

func checkHResult(fn string, hr uintptr) error {
	if int32(hr) >= 0 {
		return nil
	}

	msg := lastErrorMessage()
	if msg == "" {
		return errors.Errorf("dism: %s failed with HRESULT 0x%08X", fn, uint32(hr))
	}
	return errors.Errorf("dism: %s failed with HRESULT 0x%08X: %s", fn, uint32(hr), msg)
}

func lastErrorMessage() string {
	// DismString is a packed struct holding a single PCWSTR
	var dismString uintptr
	hr, _, _ := procDismGetLastErrorMessage.Call(uintptr(unsafe.Pointer(&dismString)))
	if int32(hr) < 0 || dismString == 0 {
		return ""
	}
	defer dismDelete(dismString)

	return utf16PtrToString(*(*uintptr)(unsafe.Pointer(dismString)))
}

func dismDelete(p uintptr) {
	hr, _, _ := procDismDelete.Call(p)
	if int32(hr) < 0 {
		log.Warnf("dism: there was error releasing DISM memory: HRESULT 0x%08X", uint32(hr))
	}
}

func boolToUintptr(b bool) uintptr {
	if b {
		return 1
	}
	return 0
}

func utf16PtrOrNil(s string) (*uint16, error) {
	if s == "" {
		return nil, nil
	}
	return windows.UTF16PtrFromString(s)
}

func utf16PtrToString(p uintptr) string {
	if p == 0 {
		return ""
	}

	n := 0
	for ptr := unsafe.Pointer(p); *(*uint16)(ptr) != 0; n++ {
		ptr = unsafe.Pointer(uintptr(ptr) + 2)
	}

	buf := (*[1 << 29]uint16)(unsafe.Pointer(p))[:n:n]
	return string(utf16.Decode(buf))
}

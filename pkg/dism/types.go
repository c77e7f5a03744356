package dism

import (
	"fmt"
	"time"

	"github.com/gentlemanautomaton/windevice/driverversion"
	"github.com/pkg/errors"
)

var ErrNotSupported = errors.New("dism: not supported on this platform")

// LogLevel mirrors DismLogLevel.
type LogLevel uint32

const (
	LogErrors LogLevel = iota
	LogErrorsWarnings
	LogErrorsWarningsInfo
)

func (lvl LogLevel) String() string {
	switch lvl {
	case LogErrors:
		return "errors"
	case LogErrorsWarnings:
		return "warnings"
	case LogErrorsWarningsInfo:
		return "info"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(lvl))
	}
}

// ParseLogLevel accepts the names returned by LogLevel.String.
func ParseLogLevel(s string) (LogLevel, error) {
	switch s {
	case "", "errors":
		return LogErrors, nil
	case "warnings":
		return LogErrorsWarnings, nil
	case "info":
		return LogErrorsWarningsInfo, nil
	default:
		return LogErrors, errors.Errorf("dism: unknown log level '%s'", s)
	}
}

// Signature mirrors DismDriverSignature.
type Signature uint32

const (
	SignatureUnknown Signature = iota
	Unsigned
	Signed
)

func (s Signature) String() string {
	switch s {
	case Unsigned:
		return "unsigned"
	case Signed:
		return "signed"
	default:
		return "unknown"
	}
}

// DriverPackage is one driver package reported by DismGetDrivers.
type DriverPackage struct {
	PublishedName    string
	OriginalFileName string
	InBox            bool
	CatalogFile      string
	ClassName        string
	ClassGUID        string
	ClassDescription string
	BootCritical     bool
	Signature        Signature
	ProviderName     string
	Date             time.Time
	Version          driverversion.Value
}

// Session is an open DISM session bound to the running system or to a mounted image.
type Session interface {
	// Drivers lists the driver packages of the image. When all is false only
	// out-of-box packages are returned, same as DismGetDrivers.
	Drivers(all bool) ([]DriverPackage, error)
	RemoveDriver(publishedName string) error
	// AddDriver stages the INF into the image. forceUnsigned allows unsigned
	// packages on images that would otherwise reject them.
	AddDriver(infPath string, forceUnsigned bool) error
	Close() error
}

// PackVersion builds a driverversion.Value out of the four DISM version parts.
func PackVersion(major, minor, build, revision uint32) driverversion.Value {
	return driverversion.Value(uint64(uint16(major))<<48 |
		uint64(uint16(minor))<<32 |
		uint64(uint16(build))<<16 |
		uint64(uint16(revision)))
}

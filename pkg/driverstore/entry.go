package driverstore

import (
	"strings"
	"time"

	"github.com/gentlemanautomaton/windevice/driverversion"
	"github.com/pkg/errors"
)

// Entry describes one driver package of a driver store.
type Entry struct {
	DriverClass          string
	DriverInfName        string
	DriverPublishedName  string
	DriverPkgProvider    string
	DriverSignerName     string
	DriverDate           time.Time
	DriverVersion        driverversion.Value
	DriverFolderLocation string
	DriverSize           int64
	BootCritical         bool
	Inbox                bool

	// Only set for online stores when a device uses the package.
	DeviceName    *string
	DevicePresent *bool
}

// Find returns the entry with the given published name.
func Find(entries []Entry, publishedName string) (*Entry, error) {
	for i := range entries {
		if strings.EqualFold(entries[i].DriverPublishedName, publishedName) {
			e := entries[i]
			return &e, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "'%s'", publishedName)
}

// OldVersions returns the entries superseded by another package with the same INF
// name, provider and class. A package is older when its version is lower, or the
// versions are equal and its date is earlier. Input order is kept.
func OldVersions(entries []Entry) []Entry {
	newest := make(map[string]Entry)
	for _, e := range entries {
		key := familyKey(e)
		if n, ok := newest[key]; !ok || isNewer(e, n) {
			newest[key] = e
		}
	}

	old := make([]Entry, 0)
	for _, e := range entries {
		if isNewer(newest[familyKey(e)], e) {
			old = append(old, e)
		}
	}
	return old
}

func familyKey(e Entry) string {
	return strings.ToLower(e.DriverInfName) + "|" + strings.ToLower(e.DriverPkgProvider) + "|" + strings.ToLower(e.DriverClass)
}

func isNewer(a, b Entry) bool {
	if a.DriverVersion != b.DriverVersion {
		return a.DriverVersion > b.DriverVersion
	}
	return a.DriverDate.After(b.DriverDate)
}

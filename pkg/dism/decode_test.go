package dism

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type packedWriter struct {
	b       []byte
	ptrSize int
}

func (w *packedWriter) ptr(v uint64) {
	if w.ptrSize == 4 {
		w.u32(uint32(v))
		return
	}
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	w.b = append(w.b, b...)
}

func (w *packedWriter) u32(v uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	w.b = append(w.b, b...)
}

func (w *packedWriter) u16(v uint16) {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	w.b = append(w.b, b...)
}

var testStrings = map[uint64]string{
	0x10: "oem12.inf",
	0x20: `C:\Windows\System32\DriverStore\FileRepository\netfoo.inf_amd64_1a2b\netfoo.inf`,
	0x30: "netfoo.cat",
	0x40: "Net",
	0x50: "{4d36e972-e325-11ce-bfc1-08002be10318}",
	0x60: "Network adapters",
	0x70: "Foo Networks",
}

func lookupString(p uint64) string {
	return testStrings[p]
}

func writeTestPackage(w *packedWriter, signature Signature) {
	w.ptr(0x10)
	w.ptr(0x20)
	w.u32(0) // InBox
	w.ptr(0x30)
	w.ptr(0x40)
	w.ptr(0x50)
	w.ptr(0x60)
	w.u32(1) // BootCritical
	w.u32(uint32(signature))
	w.ptr(0x70)
	// SYSTEMTIME 2019-06-21 (Friday) 00:00:00.000
	for _, v := range []uint16{2019, 6, 5, 21, 0, 0, 0, 0} {
		w.u16(v)
	}
	w.u32(10)
	w.u32(2)
	w.u32(1234)
	w.u32(5)
}

func TestDecodeDriverPackage(t *testing.T) {
	for _, ptrSize := range []int{4, 8} {
		w := &packedWriter{ptrSize: ptrSize}
		writeTestPackage(w, Signed)
		require.Len(t, w.b, driverPackageSize(ptrSize))

		p, err := decodeDriverPackage(w.b, ptrSize, lookupString)
		require.NoError(t, err)

		assert.Equal(t, "oem12.inf", p.PublishedName)
		assert.Equal(t, testStrings[0x20], p.OriginalFileName)
		assert.False(t, p.InBox)
		assert.Equal(t, "netfoo.cat", p.CatalogFile)
		assert.Equal(t, "Net", p.ClassName)
		assert.Equal(t, testStrings[0x50], p.ClassGUID)
		assert.Equal(t, "Network adapters", p.ClassDescription)
		assert.True(t, p.BootCritical)
		assert.Equal(t, Signed, p.Signature)
		assert.Equal(t, "Foo Networks", p.ProviderName)
		assert.Equal(t, time.Date(2019, time.June, 21, 0, 0, 0, 0, time.UTC), p.Date)
		assert.Equal(t, "10.2.1234.5", p.Version.String())
	}
}

func TestDecodeDriverPackageSize(t *testing.T) {
	assert.Equal(t, 100, driverPackageSize(8))
	assert.Equal(t, 72, driverPackageSize(4))

	_, err := decodeDriverPackage(make([]byte, 99), 8, lookupString)
	assert.Error(t, err)

	_, err = decodeDriverPackage(make([]byte, 100), 2, lookupString)
	assert.Error(t, err)
}

func TestDecodeDriverPackages(t *testing.T) {
	w := &packedWriter{ptrSize: 8}
	writeTestPackage(w, Signed)
	writeTestPackage(w, Unsigned)

	packages, err := decodeDriverPackages(w.b, 2, 8, lookupString)
	require.NoError(t, err)
	require.Len(t, packages, 2)
	assert.Equal(t, Signed, packages[0].Signature)
	assert.Equal(t, Unsigned, packages[1].Signature)

	_, err = decodeDriverPackages(w.b, 3, 8, lookupString)
	assert.Error(t, err)
}

func TestDecodeDriverArrayReleases(t *testing.T) {
	w := &packedWriter{ptrSize: 8}
	writeTestPackage(w, Signed)

	const array = uintptr(0x1000)
	bytesAt := func(p uintptr, size int) []byte {
		assert.Equal(t, array, p)
		return w.b[:size]
	}

	tests := []struct {
		name     string
		array    uintptr
		count    int
		packages int
		released []uintptr
		wantErr  bool
	}{
		{"no-array", 0, 0, 0, nil, false},
		{"empty-array", array, 0, 0, []uintptr{array}, false},
		{"one-package", array, 1, 1, []uintptr{array}, false},
		{"short-array", array, 2, 0, []uintptr{array}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var released []uintptr
			release := func(p uintptr) { released = append(released, p) }

			short := func(p uintptr, size int) []byte {
				if size > len(w.b) {
					return w.b
				}
				return bytesAt(p, size)
			}

			packages, err := decodeDriverArray(tt.array, tt.count, 8, short, release, lookupString)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, packages, tt.packages)
			assert.Equal(t, tt.released, released)
		})
	}
}

func TestZeroSystemTime(t *testing.T) {
	r := &packedReader{b: make([]byte, systemTimeSize), ptrSize: 8}
	assert.True(t, r.systemTime().IsZero())
}

func TestLogLevel(t *testing.T) {
	for _, lvl := range []LogLevel{LogErrors, LogErrorsWarnings, LogErrorsWarningsInfo} {
		parsed, err := ParseLogLevel(lvl.String())
		assert.NoError(t, err)
		assert.Equal(t, lvl, parsed)
	}

	lvl, err := ParseLogLevel("")
	assert.NoError(t, err)
	assert.Equal(t, LogErrors, lvl)

	_, err = ParseLogLevel("verbose")
	require.Error(t, err)
	_, hasStack := err.(interface{ StackTrace() errors.StackTrace })
	assert.True(t, hasStack)
}

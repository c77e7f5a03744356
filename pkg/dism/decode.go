package dism

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// dismapi.h declares its structures under #pragma pack(push, 1), so they can't be
// mapped onto Go structs and are walked field by field instead.

const systemTimeSize = 16

// driverPackageSize returns sizeof(DismDriverPackage) for the given pointer size.
func driverPackageSize(ptrSize int) int {
	// 7 strings, 3 BOOL/enum fields, SYSTEMTIME, 4 UINT version parts
	return 7*ptrSize + 3*4 + systemTimeSize + 4*4
}

type packedReader struct {
	b       []byte
	off     int
	ptrSize int
}

func (r *packedReader) ptr() uint64 {
	defer func() { r.off += r.ptrSize }()
	if r.ptrSize == 4 {
		return uint64(binary.LittleEndian.Uint32(r.b[r.off:]))
	}
	return binary.LittleEndian.Uint64(r.b[r.off:])
}

func (r *packedReader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v
}

func (r *packedReader) u16() uint16 {
	v := binary.LittleEndian.Uint16(r.b[r.off:])
	r.off += 2
	return v
}

func (r *packedReader) systemTime() time.Time {
	year := r.u16()
	month := r.u16()
	_ = r.u16() // wDayOfWeek
	day := r.u16()
	hour := r.u16()
	minute := r.u16()
	second := r.u16()
	ms := r.u16()

	if year == 0 {
		return time.Time{}
	}
	return time.Date(int(year), time.Month(month), int(day), int(hour), int(minute), int(second), int(ms)*int(time.Millisecond), time.UTC)
}

// decodeDriverPackage reads one packed DismDriverPackage. str resolves a PCWSTR
// field to a Go string; a zero pointer must resolve to "".
func decodeDriverPackage(b []byte, ptrSize int, str func(ptr uint64) string) (DriverPackage, error) {
	if ptrSize != 4 && ptrSize != 8 {
		return DriverPackage{}, errors.Errorf("dism: unsupported pointer size %d", ptrSize)
	}
	if len(b) < driverPackageSize(ptrSize) {
		return DriverPackage{}, errors.Errorf("dism: driver package record is %d bytes, want %d", len(b), driverPackageSize(ptrSize))
	}

	r := &packedReader{b: b, ptrSize: ptrSize}
	var p DriverPackage
	p.PublishedName = str(r.ptr())
	p.OriginalFileName = str(r.ptr())
	p.InBox = r.u32() != 0
	p.CatalogFile = str(r.ptr())
	p.ClassName = str(r.ptr())
	p.ClassGUID = str(r.ptr())
	p.ClassDescription = str(r.ptr())
	p.BootCritical = r.u32() != 0
	p.Signature = Signature(r.u32())
	p.ProviderName = str(r.ptr())
	p.Date = r.systemTime()
	major, minor, build, revision := r.u32(), r.u32(), r.u32(), r.u32()
	p.Version = PackVersion(major, minor, build, revision)

	return p, nil
}

// decodeDriverPackages splits a DismDriverPackage array into records.
func decodeDriverPackages(b []byte, count int, ptrSize int, str func(ptr uint64) string) ([]DriverPackage, error) {
	size := driverPackageSize(ptrSize)
	if len(b) < count*size {
		return nil, errors.Errorf("dism: driver package array is %d bytes, want %d", len(b), count*size)
	}

	packages := make([]DriverPackage, 0, count)
	for i := 0; i < count; i++ {
		p, err := decodeDriverPackage(b[i*size:(i+1)*size], ptrSize, str)
		if err != nil {
			return nil, err
		}
		packages = append(packages, p)
	}
	return packages, nil
}

// decodeDriverArray decodes the array returned by DismGetDrivers. A non-zero array
// is handed to release exactly once, even when count is zero or decoding fails.
func decodeDriverArray(array uintptr, count int, ptrSize int, bytesAt func(p uintptr, size int) []byte, release func(p uintptr), str func(ptr uint64) string) ([]DriverPackage, error) {
	if array == 0 {
		return nil, nil
	}
	defer release(array)

	if count == 0 {
		return nil, nil
	}

	return decodeDriverPackages(bytesAt(array, count*driverPackageSize(ptrSize)), count, ptrSize, str)
}

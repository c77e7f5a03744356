package driverstore

import "errors"

var (
	ErrInvalidArgument = errors.New("driverstore: invalid argument")
	ErrNotSupported    = errors.New("driverstore: not supported")
	ErrNotFound        = errors.New("driverstore: driver package not found")
)

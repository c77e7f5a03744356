package driverstore

import "fmt"

// Target selects the driver store a Store works on. It is implemented only by
// Online and Offline.
type Target interface {
	fmt.Stringer
	isTarget()
}

// Online is the driver store of the running system.
type Online struct{}

// Offline is the driver store of a Windows image mounted at ImagePath.
type Offline struct {
	ImagePath string
}

func (Online) isTarget()  {}
func (Offline) isTarget() {}

func (Online) String() string {
	return "online"
}

func (t Offline) String() string {
	return "offline(" + t.ImagePath + ")"
}

package driverstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cloudradar-monitoring/drvstore/pkg/dism"
)

// countingImaging fails the test when two sessions overlap.
type countingImaging struct {
	fakeImaging
	mu     sync.Mutex
	active int
	t      *testing.T
}

func (i *countingImaging) Initialize(level dism.LogLevel) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.active++
	if i.active > 1 {
		i.t.Errorf("DISM initialized %d times at once", i.active)
	}
	return nil
}

func (i *countingImaging) Shutdown() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.active--
	return nil
}

func (i *countingImaging) OpenOfflineSession(imagePath string) (dism.Session, error) {
	return &fakeSession{}, nil
}

func TestSynchronized(t *testing.T) {
	imaging := &countingImaging{t: t}
	store := Synchronized(NewOffline(`C:\mount\img`, imaging, &fakeInstaller{}))
	assert.Equal(t, store, Synchronized(store))
	assert.Equal(t, Offline{ImagePath: `C:\mount\img`}, store.Target())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Enumerate()
			assert.NoError(t, err)
			_, err = store.Add(`C:\drivers\foo.inf`, false)
			assert.NoError(t, err)
			_, err = store.Delete(&Entry{DriverPublishedName: "oem1.inf"}, false)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

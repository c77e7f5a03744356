package driverstore

import "sync"

type syncStore struct {
	mu    sync.Mutex
	store DriverStore
}

// Synchronized serializes the calls made to store.
func Synchronized(store DriverStore) DriverStore {
	if s, ok := store.(*syncStore); ok {
		return s
	}
	return &syncStore{store: store}
}

func (s *syncStore) Target() Target {
	return s.store.Target()
}

func (s *syncStore) Enumerate() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.Enumerate()
}

func (s *syncStore) Delete(entry *Entry, forceDelete bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.Delete(entry, forceDelete)
}

func (s *syncStore) Add(infFullPath string, install bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.Add(infFullPath, install)
}

// +build !windows

package dism

// API is a stub; DISM only exists on Windows.
type API struct {
	LogFile    string
	ScratchDir string
}

func New(logFile, scratchDir string) *API {
	return &API{LogFile: logFile, ScratchDir: scratchDir}
}

func (a *API) Initialize(level LogLevel) error {
	return ErrNotSupported
}

func (a *API) Shutdown() error {
	return ErrNotSupported
}

func (a *API) OpenOnlineSession() (Session, error) {
	return nil, ErrNotSupported
}

func (a *API) OpenOfflineSession(imagePath string) (Session, error) {
	return nil, ErrNotSupported
}

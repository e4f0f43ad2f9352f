package settings

import "errors"

var (
	// ErrCorruptConfig is returned by LoadFromConfig when a persisted path
	// list cannot be read. The affected list starts empty.
	ErrCorruptConfig = errors.New("corrupt path configuration")

	// ErrInvalidDataDir is returned by ChangeDataDir for directories that are
	// not a simulator data directory.
	ErrInvalidDataDir = errors.New("not a simulator data directory")

	// ErrNoInstaller is returned by InstallScenery when the controller was
	// built without an installer.
	ErrNoInstaller = errors.New("no installer configured")
)

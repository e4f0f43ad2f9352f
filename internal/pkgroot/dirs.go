package pkgroot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/skyhangar/hangar/internal/branding"
)

// PackagesDir is the catalog tree below the download directory.
const PackagesDir = "Packages"

// DefaultDownloadDir returns the platform default download directory
// ($XDG_DATA_HOME/hangar/Downloads on Linux).
func DefaultDownloadDir() string {
	return filepath.Join(xdg.DataHome, branding.CLIName(), "Downloads")
}

// CheckWritable creates dir if needed and proves a file can be written in it.
func CheckWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return fmt.Errorf("writing in %s: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

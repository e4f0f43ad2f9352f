package doctor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/skyhangar/hangar/internal/branding"
	"github.com/skyhangar/hangar/internal/pathlist"
	"github.com/skyhangar/hangar/internal/pkgroot"
	"github.com/skyhangar/hangar/internal/settings"
)

// Settings is the controller state the checks read.
type Settings interface {
	SceneryPaths() []string
	AircraftPaths() []string
	DataDir() string
}

// Root is the package root state the checks read.
type Root interface {
	DownloadDir() string
	Catalogs() []pkgroot.Catalog
	CatalogDir(id string) string
}

// Options selects what Run checks.
type Options struct {
	Settings Settings
	Root     Root

	// LoadErr is the error LoadFromConfig returned, if any.
	LoadErr error

	// Fix repairs missing directories and leftover partial downloads.
	Fix bool
}

// Summary counts findings.
type Summary struct {
	Problems int
	Fixed    int
}

type checker struct {
	w   io.Writer
	fix bool
	sum Summary
}

func (c *checker) ok(format string, args ...any) {
	fmt.Fprintf(c.w, "  [ OK ] "+format+"\n", args...)
}

func (c *checker) info(format string, args ...any) {
	fmt.Fprintf(c.w, "  [INFO] "+format+"\n", args...)
}

func (c *checker) warn(format string, args ...any) {
	c.sum.Problems++
	fmt.Fprintf(c.w, "  [WARN] "+format+"\n", args...)
}

func (c *checker) miss(format string, args ...any) {
	c.sum.Problems++
	fmt.Fprintf(c.w, "  [MISS] "+format+"\n", args...)
}

func (c *checker) fail(format string, args ...any) {
	c.sum.Problems++
	fmt.Fprintf(c.w, "  [FAIL] "+format+"\n", args...)
}

func (c *checker) fixed(format string, args ...any) {
	c.sum.Fixed++
	fmt.Fprintf(c.w, "  [FIX ] "+format+"\n", args...)
}

// Run performs every check and writes the results to w.
func Run(w io.Writer, opts Options) Summary {
	c := &checker{w: w, fix: opts.Fix}

	c.checkConfig(opts.LoadErr)
	c.checkPaths("Scenery paths", opts.Settings.SceneryPaths(), true)
	c.checkPaths("Aircraft paths", opts.Settings.AircraftPaths(), false)
	c.checkDataDir(opts.Settings.DataDir())
	c.checkDownloadDir(opts.Root.DownloadDir())
	c.checkCatalogs(opts.Root)

	return c.sum
}

func (c *checker) checkConfig(loadErr error) {
	fmt.Fprintln(c.w, "Config check:")
	if loadErr != nil {
		for _, line := range strings.Split(strings.TrimSpace(loadErr.Error()), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				c.fail("%s", line)
			}
		}
		return
	}
	c.ok("path lists readable")
}

func (c *checker) checkPaths(title string, paths []string, scenery bool) {
	fmt.Fprintf(c.w, "%s check:\n", title)
	if len(paths) == 0 {
		c.info("none configured")
		return
	}
	for _, p := range paths {
		if !pathlist.IsDir(p) {
			c.miss("%s does not exist", p)
			continue
		}
		if scenery && !hasSceneryLayout(p) {
			c.warn("%s has no Terrain, Objects or Airports directory", p)
			continue
		}
		c.ok("%s", p)
	}
}

func hasSceneryLayout(dir string) bool {
	for _, sub := range []string{"Terrain", "Objects", "Airports"} {
		if pathlist.IsDir(filepath.Join(dir, sub)) {
			return true
		}
	}
	return false
}

func (c *checker) checkDataDir(dir string) {
	fmt.Fprintln(c.w, "Data directory check:")
	if dir == "" {
		c.info("not set (run '%s data-dir set <path>')", branding.CLIName())
		return
	}

	v, err := settings.ReadDataVersion(dir)
	if err != nil {
		c.fail("%v", err)
		return
	}
	sim, err := semver.NewVersion(branding.SimulatorVersion())
	if err == nil && (v.Major() != sim.Major() || v.Minor() != sim.Minor()) {
		c.warn("%s is version %s, expected %d.%d.x", dir, v, sim.Major(), sim.Minor())
		return
	}
	c.ok("%s (version %s)", dir, v)
}

func (c *checker) checkDownloadDir(dir string) {
	fmt.Fprintln(c.w, "Download directory check:")

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		c.miss("%s does not exist", dir)
		if !c.fix {
			fmt.Fprintln(c.w, "         Run with --fix to create it")
			return
		}
		if err := pkgroot.CheckWritable(dir); err != nil {
			c.fail("Could not create %s: %v", dir, err)
			return
		}
		c.fixed("Created %s", dir)
		return
	}

	if err := pkgroot.CheckWritable(dir); err != nil {
		c.fail("%s is not writable: %v", dir, err)
		return
	}
	c.ok("%s is writable", dir)
}

func (c *checker) checkCatalogs(root Root) {
	fmt.Fprintln(c.w, "Catalog check:")

	cats := root.Catalogs()
	if len(cats) == 0 {
		c.info("no catalogs installed (run '%s catalog add-default')", branding.CLIName())
		return
	}

	for _, cat := range cats {
		switch cat.Status {
		case pkgroot.StatusInstalled:
			c.ok("%s: %d packages", cat.Name(), len(cat.Metadata.Packages))
		case pkgroot.StatusNeedsUpdate:
			age := time.Since(cat.UpdatedAt).Truncate(time.Hour)
			c.warn("%s: metadata is %s old (run '%s catalog refresh %s')", cat.Name(), age, branding.CLIName(), cat.ID)
		case pkgroot.StatusInstalling:
			c.info("%s: fetch in progress", cat.Name())
		default:
			c.fail("%s: %v (run '%s catalog refresh %s')", cat.Name(), cat.Err, branding.CLIName(), cat.ID)
		}
		c.checkLeftovers(root.CatalogDir(cat.ID))
	}
}

// checkLeftovers reports partial extractions and downloads an interrupted
// install left behind.
func (c *checker) checkLeftovers(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".tmp") && !strings.HasPrefix(name, ".download-") {
			continue
		}
		path := filepath.Join(dir, name)
		c.warn("leftover from an interrupted install: %s", path)
		if c.fix {
			if err := os.RemoveAll(path); err != nil {
				c.fail("Could not remove %s: %v", path, err)
				continue
			}
			c.fixed("Removed %s", path)
		}
	}
}

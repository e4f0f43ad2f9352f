package doctor

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/skyhangar/hangar/internal/pkgroot"
)

type fakeSettings struct {
	scenery, aircraft []string
	dataDir           string
}

func (f fakeSettings) SceneryPaths() []string  { return f.scenery }
func (f fakeSettings) AircraftPaths() []string { return f.aircraft }
func (f fakeSettings) DataDir() string         { return f.dataDir }

type fakeRoot struct {
	downloadDir string
	catalogs    []pkgroot.Catalog
}

func (f fakeRoot) DownloadDir() string         { return f.downloadDir }
func (f fakeRoot) Catalogs() []pkgroot.Catalog { return f.catalogs }
func (f fakeRoot) CatalogDir(id string) string { return filepath.Join(f.downloadDir, pkgroot.PackagesDir, id) }

func TestRun_Healthy(t *testing.T) {
	scenery := t.TempDir()
	if err := os.MkdirAll(filepath.Join(scenery, "Terrain"), 0o755); err != nil {
		t.Fatal(err)
	}
	fgdata := t.TempDir()
	if err := os.WriteFile(filepath.Join(fgdata, "version"), []byte("2024.1.1"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	sum := Run(&buf, Options{
		Settings: fakeSettings{scenery: []string{scenery}, aircraft: []string{t.TempDir()}, dataDir: fgdata},
		Root: fakeRoot{
			downloadDir: t.TempDir(),
			catalogs: []pkgroot.Catalog{{
				ID:       "c1",
				Status:   pkgroot.StatusInstalled,
				Metadata: &pkgroot.Metadata{Name: "Official", Packages: []pkgroot.Package{{ID: "p"}}},
			}},
		},
	})

	if sum.Problems != 0 {
		t.Errorf("Problems = %d, want 0\n%s", sum.Problems, buf.String())
	}
	out := buf.String()
	for _, want := range []string{"[ OK ] path lists readable", "(version 2024.1.1)", "is writable", "Official: 1 packages"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_ReportsProblems(t *testing.T) {
	badScenery := t.TempDir()
	download := filepath.Join(t.TempDir(), "downloads")

	var buf bytes.Buffer
	sum := Run(&buf, Options{
		Settings: fakeSettings{
			scenery:  []string{"/does/not/exist", badScenery},
			aircraft: nil,
			dataDir:  t.TempDir(),
		},
		Root: fakeRoot{
			downloadDir: download,
			catalogs: []pkgroot.Catalog{
				{ID: "c1", URL: "http://example.org/a.yaml", Status: pkgroot.StatusError, Err: errors.New("network error: timeout")},
				{ID: "c2", URL: "http://example.org/b.yaml", Status: pkgroot.StatusNeedsUpdate, UpdatedAt: time.Now().Add(-10 * 24 * time.Hour)},
			},
		},
		LoadErr: errors.New("corrupt path configuration: scenery_paths"),
	})

	out := buf.String()
	for _, want := range []string{
		"[FAIL] corrupt path configuration",
		"[MISS] /does/not/exist does not exist",
		"has no Terrain, Objects or Airports directory",
		"[INFO] none configured",
		"not a simulator data directory",
		"[MISS] " + download + " does not exist",
		"Run with --fix",
		"[FAIL] http://example.org/a.yaml: network error: timeout",
		"[WARN] http://example.org/b.yaml: metadata is",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if sum.Problems != 7 {
		t.Errorf("Problems = %d, want 7\n%s", sum.Problems, out)
	}
	if _, err := os.Stat(download); !os.IsNotExist(err) {
		t.Error("download dir created without --fix")
	}
}

func TestRun_Fix(t *testing.T) {
	download := filepath.Join(t.TempDir(), "downloads")
	root := fakeRoot{
		downloadDir: download,
		catalogs:    []pkgroot.Catalog{{ID: "c1", Status: pkgroot.StatusInstalled, Metadata: &pkgroot.Metadata{Name: "Official"}}},
	}
	catDir := root.CatalogDir("c1")
	leftover := filepath.Join(catDir, "tile.tmp")
	partial := filepath.Join(catDir, ".download-tile-123")

	var buf bytes.Buffer
	sum := Run(&buf, Options{Settings: fakeSettings{}, Root: root, Fix: true})

	if _, err := os.Stat(download); err != nil {
		t.Errorf("download dir not created: %v", err)
	}
	if sum.Fixed != 1 {
		t.Errorf("Fixed = %d, want 1\n%s", sum.Fixed, buf.String())
	}

	if err := os.MkdirAll(leftover, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(partial, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	sum = Run(&buf, Options{Settings: fakeSettings{}, Root: root, Fix: true})
	if sum.Fixed != 2 {
		t.Errorf("Fixed = %d, want 2\n%s", sum.Fixed, buf.String())
	}
	for _, p := range []string{leftover, partial} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s not removed", p)
		}
	}
}

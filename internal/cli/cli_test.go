package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// setupHome points the config and package root at temp directories.
func setupHome(t *testing.T) (downloadDir string) {
	t.Helper()
	configDir := t.TempDir()
	downloadDir = t.TempDir()
	t.Setenv("HANGAR_CONFIG_DIR", configDir)
	t.Setenv("HANGAR_CATALOG_URL", "")

	state := "download_dir: " + downloadDir + "\n"
	if err := os.WriteFile(filepath.Join(configDir, "root.yaml"), []byte(state), 0o644); err != nil {
		t.Fatal(err)
	}
	return downloadDir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(t, rootCmd)
	logLevel = "error"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags restores every flag to its default; cobra keeps parsed values
// between Execute calls in one process.
func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		if err := f.Value.Set(f.DefValue); err != nil {
			t.Fatalf("resetting --%s: %v", f.Name, err)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(t, sub)
	}
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func TestPathsCommands(t *testing.T) {
	setupHome(t)
	a, b, c := t.TempDir(), t.TempDir(), t.TempDir()

	out := mustRun(t, "paths", "scenery", "add", a, b)
	if !strings.Contains(out, " 1  "+a) || !strings.Contains(out, " 2  "+b) {
		t.Errorf("add output:\n%s", out)
	}

	mustRun(t, "paths", "scenery", "add", "--first", c)
	out = mustRun(t, "paths", "scenery", "list")
	want := " 1  " + c + "\n 2  " + a + "\n 3  " + b + "\n"
	if out != want {
		t.Errorf("list =\n%s\nwant\n%s", out, want)
	}

	d := t.TempDir()
	mustRun(t, "paths", "scenery", "add", d)
	out = mustRun(t, "paths", "scenery", "list")
	if !strings.HasSuffix(out, " 4  "+d+"\n") {
		t.Errorf("add without --first did not append:\n%s", out)
	}

	if out := mustRun(t, "paths", "scenery", "has", a+"/"); strings.TrimSpace(out) != "yes" {
		t.Errorf("has = %q, want yes", out)
	}

	if _, err := run(t, "paths", "scenery", "remove", "/not/listed", a); err == nil {
		t.Error("expected error for path not in list")
	}
	out = mustRun(t, "paths", "scenery", "list")
	if strings.Contains(out, a) {
		t.Errorf("%s still listed:\n%s", a, out)
	}

	out = mustRun(t, "paths", "aircraft", "list")
	if !strings.Contains(out, "No paths configured.") {
		t.Errorf("aircraft list:\n%s", out)
	}
}

func TestDataDirCommands(t *testing.T) {
	setupHome(t)
	fgdata := t.TempDir()
	if err := os.WriteFile(filepath.Join(fgdata, "version"), []byte("2024.1.1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "data-dir", "set", t.TempDir()); err == nil {
		t.Error("expected error for directory without a version file")
	}
	mustRun(t, "data-dir", "set", fgdata)
	if out := mustRun(t, "data-dir", "show"); !strings.Contains(out, "version 2024.1.1") {
		t.Errorf("show:\n%s", out)
	}
	mustRun(t, "data-dir", "clear")
	if out := mustRun(t, "data-dir", "show"); !strings.Contains(out, "Not set.") {
		t.Errorf("show after clear:\n%s", out)
	}
}

func TestCatalogCommands(t *testing.T) {
	downloadDir := setupHome(t)

	doc := "id: org.example.test\nname: Example Catalog\nversion: 1.0.0\npackages: []\n"
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	url := "file://" + filepath.ToSlash(path)

	out := mustRun(t, "catalog", "add", url)
	if !strings.Contains(out, "Catalog added: Example Catalog") {
		t.Errorf("add:\n%s", out)
	}

	if _, err := run(t, "catalog", "add", url); err == nil {
		t.Error("expected error adding the same source twice")
	}

	out = mustRun(t, "catalog", "list")
	if !strings.Contains(out, "Example Catalog") || !strings.Contains(out, "installed") {
		t.Errorf("list:\n%s", out)
	}

	out = mustRun(t, "catalog", "status", "org.example.test")
	if !strings.Contains(out, filepath.Join(downloadDir, "Packages")) {
		t.Errorf("status:\n%s", out)
	}

	mustRun(t, "catalog", "refresh", "org.example.test")
	out = mustRun(t, "catalog", "remove", "org.example.test")
	if !strings.Contains(out, "Catalog removed") {
		t.Errorf("remove:\n%s", out)
	}
	if out := mustRun(t, "catalog", "list"); !strings.Contains(out, "No catalogs installed") {
		t.Errorf("list after remove:\n%s", out)
	}
}

func TestDownloadDirCommands(t *testing.T) {
	setupHome(t)
	next := filepath.Join(t.TempDir(), "downloads")

	out := mustRun(t, "download-dir", "set", next)
	if !strings.Contains(out, next) {
		t.Errorf("set:\n%s", out)
	}
	if out := mustRun(t, "download-dir", "show"); strings.TrimSpace(out) != next {
		t.Errorf("show = %q, want %q", out, next)
	}
}

func TestDoctorCommand(t *testing.T) {
	setupHome(t)
	mustRun(t, "paths", "scenery", "add", "/does/not/exist")

	out := mustRun(t, "doctor")
	for _, want := range []string{"Config check:", "[MISS] /does/not/exist does not exist", "problems found"} {
		if !strings.Contains(out, want) {
			t.Errorf("doctor output missing %q:\n%s", want, out)
		}
	}
}

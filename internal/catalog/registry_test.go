package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/skyhangar/hangar/internal/branding"
	"github.com/skyhangar/hangar/internal/config"
	"github.com/skyhangar/hangar/internal/logging"
	"github.com/skyhangar/hangar/internal/pkgroot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, id string) string {
	t.Helper()

	doc := fmt.Sprintf("id: %s\nname: %s hangar\nversion: 1.0.0\npackages: []\n", id, id)
	path := filepath.Join(t.TempDir(), id+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return "file://" + filepath.ToSlash(path)
}

func openRoot(t *testing.T) *pkgroot.Root {
	t.Helper()

	r, err := pkgroot.Open(
		pkgroot.WithStateDir(t.TempDir()),
		pkgroot.WithDefaultDownloadDir(t.TempDir()),
		pkgroot.WithLogger(logging.Discard()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestAddByURL_ThenRemove(t *testing.T) {
	t.Parallel()

	root := openRoot(t)
	reg := New(root, WithLogger(logging.Discard()))

	id, err := reg.AddByURL(writeCatalog(t, "local"))
	require.NoError(t, err)

	c, err := reg.Wait(waitCtx(t), id)
	require.NoError(t, err)
	assert.Equal(t, pkgroot.StatusInstalled, c.Status)
	assert.Equal(t, "local hangar", c.Name())
	require.Len(t, reg.List(), 1)

	require.NoError(t, reg.Remove(id))
	assert.Empty(t, reg.List())
	assert.NoDirExists(t, root.CatalogDir(id))

	err = reg.Remove(id)
	require.ErrorIs(t, err, pkgroot.ErrNotFound)
}

func TestAddDefault_SilentOnlyChangesReporting(t *testing.T) {
	t.Parallel()

	defaultURL := writeCatalog(t, "default")

	type outcome struct {
		urls   []string
		status []pkgroot.Status
		ids    []string
		output string
	}
	run := func(silent bool) outcome {
		reg := New(openRoot(t), WithDefaultURL(func() string { return defaultURL }))
		var out, errOut bytes.Buffer
		rp := Reporter{Out: &out, Err: &errOut, Silent: silent}

		id, err := reg.AddDefault()
		c, _ := reg.Get(id)
		rp.Report("add", c, err)
		require.NoError(t, err)
		_, err = reg.Wait(waitCtx(t), id)
		require.NoError(t, err)

		_, dupErr := reg.AddDefault()
		require.ErrorIs(t, dupErr, pkgroot.ErrAlreadyInstalled)
		rp.Report("add", pkgroot.Catalog{}, dupErr)

		var o outcome
		for _, c := range reg.List() {
			o.urls = append(o.urls, c.URL)
			o.status = append(o.status, c.Status)
			o.ids = append(o.ids, c.Metadata.ID)
		}
		o.output = out.String() + errOut.String()
		return o
	}

	loud := run(false)
	quiet := run(true)

	assert.Equal(t, loud.urls, quiet.urls)
	assert.Equal(t, loud.status, quiet.status)
	assert.Equal(t, loud.ids, quiet.ids)
	assert.Equal(t, []string{"default"}, quiet.ids)

	assert.Contains(t, loud.output, "Catalog added")
	assert.Contains(t, loud.output, "already installed")
	assert.Empty(t, quiet.output)
}

func TestAddDefault_NoURL(t *testing.T) {
	t.Parallel()

	reg := New(openRoot(t), WithDefaultURL(func() string { return "" }))
	_, err := reg.AddDefault()
	require.ErrorIs(t, err, pkgroot.ErrInvalidURL)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	reg := New(openRoot(t))
	u := writeCatalog(t, "fgaddon")
	id, err := reg.AddByURL(u)
	require.NoError(t, err)
	_, err = reg.Wait(waitCtx(t), id)
	require.NoError(t, err)

	for _, ref := range []string{id, "fgaddon", u} {
		c, err := reg.Resolve(ref)
		require.NoError(t, err, ref)
		assert.Equal(t, id, c.ID)
	}

	_, err = reg.Resolve("nope")
	require.ErrorIs(t, err, pkgroot.ErrNotFound)
}

func TestDefaultURL_ResolutionOrder(t *testing.T) {
	// Uses process environment and the config package's default store.
	dir := t.TempDir()
	t.Setenv("HANGAR_CONFIG_DIR", dir)

	t.Setenv("HANGAR_CATALOG_URL", "https://env.example.org/catalog.yaml")
	assert.Equal(t, "https://env.example.org/catalog.yaml", DefaultURL())

	t.Setenv("HANGAR_CATALOG_URL", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("catalog_url: https://config.example.org/catalog.yaml\n"), 0o644))
	_, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://config.example.org/catalog.yaml", DefaultURL())

	require.NoError(t, os.Remove(filepath.Join(dir, "config.yaml")))
	_, err = config.Load()
	require.NoError(t, err)
	assert.Equal(t, branding.DefaultCatalogURL(), DefaultURL())
}

func TestIsStale(t *testing.T) {
	t.Parallel()

	assert.True(t, IsStale(pkgroot.Catalog{}, time.Hour))
	assert.False(t, IsStale(pkgroot.Catalog{UpdatedAt: time.Now()}, time.Hour))
	assert.True(t, IsStale(pkgroot.Catalog{UpdatedAt: time.Now().Add(-2 * time.Hour)}, time.Hour))
}

func TestExplain(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err  error
		want string
	}{
		"busy":      {err: &pkgroot.CatalogError{Op: "remove", ID: "x", Err: pkgroot.ErrBusy}, want: "in progress"},
		"not found": {err: &pkgroot.CatalogError{Op: "remove", ID: "x", Err: pkgroot.ErrNotFound}, want: "no such catalog"},
		"duplicate": {err: pkgroot.ErrAlreadyInstalled, want: "already installed"},
		"network":   {err: fmt.Errorf("%w: timeout", pkgroot.ErrNetwork), want: "could not be downloaded"},
		"other":     {err: errors.New("disk on fire"), want: "disk on fire"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Contains(t, Explain(tc.err), tc.want)
		})
	}
}

package pkgroot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultParallel is the default number of concurrent package downloads.
	DefaultParallel = 4

	tmpSuffix = ".tmp"
)

// InstallOptions selects what an install task does.
type InstallOptions struct {
	// Packages limits the install to these package ids. Empty means every
	// package of the requested type.
	Packages []string

	// Parallel overrides the installer's download parallelism when > 0.
	Parallel int
}

// Task is a running package install.
type Task struct {
	ID        string
	CatalogID string
	Packages  []string

	done chan struct{}
	err  error
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's error. It is nil until Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Installer downloads and extracts catalog packages into the package root.
type Installer struct {
	root       *Root
	downloader Downloader
	parallel   int
	logger     *slog.Logger
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithDownloader sets the archive downloader (useful for testing).
func WithDownloader(d Downloader) InstallerOption {
	return func(in *Installer) {
		in.downloader = d
	}
}

// WithParallel sets how many packages download at once.
func WithParallel(n int) InstallerOption {
	return func(in *Installer) {
		in.parallel = n
	}
}

// WithInstallerLogger sets the logger.
func WithInstallerLogger(l *slog.Logger) InstallerOption {
	return func(in *Installer) {
		in.logger = l
	}
}

// NewInstaller creates an Installer over root.
func NewInstaller(root *Root, opts ...InstallerOption) *Installer {
	in := &Installer{
		root:     root,
		parallel: DefaultParallel,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.downloader == nil {
		in.downloader = NewHTTPFetcher()
	}
	in.logger = in.logger.With(slog.String("component", "installer"))
	return in
}

// InstallScenery starts installing scenery packages from a catalog. The
// catalog stays busy until the returned task is done.
func (in *Installer) InstallScenery(ctx context.Context, catalogID string, opts InstallOptions) (*Task, error) {
	return in.install(ctx, catalogID, PackageScenery, opts)
}

func (in *Installer) install(ctx context.Context, catalogID string, typ PackageType, opts InstallOptions) (*Task, error) {
	release, err := in.root.BeginInstall(catalogID)
	if err != nil {
		return nil, err
	}

	c, err := in.root.Catalog(catalogID)
	if err != nil {
		release()
		return nil, err
	}
	pkgs, err := selectPackages(c.Metadata, typ, opts.Packages)
	if err != nil {
		release()
		return nil, &CatalogError{Op: "install", ID: catalogID, URL: c.URL, Err: err}
	}

	id, err := uuid.NewV7()
	if err != nil {
		release()
		return nil, fmt.Errorf("generating task id: %w", err)
	}
	task := &Task{
		ID:        id.String(),
		CatalogID: catalogID,
		done:      make(chan struct{}),
	}
	for _, p := range pkgs {
		task.Packages = append(task.Packages, p.ID)
	}

	parallel := in.parallel
	if opts.Parallel > 0 {
		parallel = opts.Parallel
	}
	dir := in.root.CatalogDir(catalogID)
	logger := in.logger.With(slog.String("task", task.ID), slog.String("catalog", catalogID))

	// The task outlives the call but not the root.
	runCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(in.root.ctx, cancel)

	go func() {
		defer close(task.done)
		defer release()
		defer cancel()
		defer stop()

		logger.Info("install started", slog.Int("packages", len(pkgs)))
		task.err = in.run(runCtx, dir, pkgs, parallel, logger)
		if task.err != nil {
			logger.Error("install failed", slog.Any("err", task.err))
			return
		}
		logger.Info("install finished")
	}()
	return task, nil
}

func selectPackages(md *Metadata, typ PackageType, ids []string) ([]Package, error) {
	if md == nil {
		return nil, ErrNotInstalled
	}
	if len(ids) == 0 {
		pkgs := md.PackagesOfType(typ)
		if len(pkgs) == 0 {
			return nil, fmt.Errorf("%w: no %s packages", ErrPackageNotFound, typ)
		}
		return pkgs, nil
	}

	pkgs := make([]Package, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		p, ok := md.Package(id)
		if !ok || p.Type != typ {
			return nil, fmt.Errorf("%w: %s package %q", ErrPackageNotFound, typ, id)
		}
		pkgs = append(pkgs, p)
	}
	return pkgs, nil
}

func (in *Installer) run(ctx context.Context, dir string, pkgs []Package, parallel int, logger *slog.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))
	for _, p := range pkgs {
		g.Go(func() error {
			if err := in.installPackage(gctx, dir, p, logger); err != nil {
				return fmt.Errorf("package %s: %w", p.ID, err)
			}
			logger.Info("package installed", slog.String("package", p.ID))
			return nil
		})
	}
	return g.Wait()
}

// installPackage tries each mirror URL in turn. The package is extracted
// next to its final location and renamed into place only once complete.
func (in *Installer) installPackage(ctx context.Context, dir string, p Package, logger *slog.Logger) error {
	if !filepath.IsLocal(p.ID) || strings.ContainsAny(p.ID, `/\`) {
		return fmt.Errorf("invalid package id %q", p.ID)
	}

	dest := filepath.Join(dir, p.ID)
	tmpDir := dest + tmpSuffix
	_ = os.RemoveAll(tmpDir)

	var lastErr error
	for _, u := range p.URLs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.MkdirAll(tmpDir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", tmpDir, err)
		}
		lastErr = in.fetchAndExtract(ctx, dir, tmpDir, u, p)
		if lastErr == nil {
			break
		}
		logger.Warn("mirror failed", slog.String("package", p.ID), slog.String("url", u), slog.Any("err", lastErr))
		_ = os.RemoveAll(tmpDir)
	}
	if lastErr != nil {
		return lastErr
	}

	if err := os.RemoveAll(dest); err != nil {
		_ = os.RemoveAll(tmpDir)
		return fmt.Errorf("removing previous install: %w", err)
	}
	if err := os.Rename(tmpDir, dest); err != nil {
		_ = os.RemoveAll(tmpDir)
		return fmt.Errorf("finalizing install: %w", err)
	}
	return nil
}

func (in *Installer) fetchAndExtract(ctx context.Context, dir, tmpDir, rawURL string, p Package) error {
	archive, err := in.download(ctx, dir, rawURL, p)
	if err != nil {
		return err
	}
	defer os.Remove(archive)

	return extractArchive(archive, archiveName(rawURL), tmpDir)
}

// download saves rawURL to a temporary file in dir, verifying size and
// checksum when the catalog declares them.
func (in *Installer) download(ctx context.Context, dir, rawURL string, p Package) (string, error) {
	rc, err := in.downloader.Open(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer rc.Close()

	f, err := os.CreateTemp(dir, ".download-"+p.ID+"-*")
	if err != nil {
		return "", fmt.Errorf("creating download file: %w", err)
	}
	name := f.Name()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), rc)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(name)
		return "", fmt.Errorf("%w: reading download stream: %w", ErrNetwork, err)
	}

	if p.Size > 0 && n != p.Size {
		os.Remove(name)
		return "", fmt.Errorf("size mismatch: expected %d, got %d", p.Size, n)
	}
	if p.SHA256 != "" {
		actual := hex.EncodeToString(h.Sum(nil))
		if actual != p.SHA256 {
			os.Remove(name)
			return "", fmt.Errorf("checksum mismatch: expected %s, got %s", p.SHA256, actual)
		}
	}
	return name, nil
}

func archiveName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}

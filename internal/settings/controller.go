package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-multierror"
	"github.com/skyhangar/hangar/internal/catalog"
	"github.com/skyhangar/hangar/internal/config"
	"github.com/skyhangar/hangar/internal/pathlist"
	"github.com/skyhangar/hangar/internal/pkgroot"
)

// Store is the persisted configuration the controller reads at start and
// writes after every accepted change.
type Store interface {
	Strings(key string) ([]string, error)
	SetStrings(key string, values []string) error
	String(key string) string
	Set(key, value string) error
}

// PackageRoot is the package root handle. The controller never owns it: the
// caller opens it, passes it in, and closes it after the controller.
type PackageRoot interface {
	catalog.Root
	InstallStatus(id string) (pkgroot.Status, error)
	DownloadDir() string
	DefaultDownloadDir() string
	IsDefaultDownloadDir() bool
	SetDownloadDir(path string) error
	ClearDownloadDir() error
	Subscribe(fn func(pkgroot.Catalog)) (cancel func())
}

// Installer starts package installs.
type Installer interface {
	InstallScenery(ctx context.Context, catalogID string, opts pkgroot.InstallOptions) (*pkgroot.Task, error)
}

// sceneryHints are directory names found inside a scenery path; adding one
// of them instead of its parent is a common mistake.
var sceneryHints = []string{"Terrain", "Objects", "Airports", "Buildings"}

// Controller applies user intents to the path lists and the package root.
// Intents are serialized; it is safe to call from several goroutines.
type Controller struct {
	store     Store
	root      PackageRoot
	installer Installer
	catalogs  *catalog.Registry
	logger    *slog.Logger
	catOpts   []catalog.Option

	mu       sync.Mutex
	scenery  *pathlist.PathList
	aircraft *pathlist.PathList
	dataDir  string

	listenMu     sync.Mutex
	listeners    map[int]Listener
	order        []int
	nextListener int

	queueMu sync.Mutex
	queue   []Event
	emitMu  sync.Mutex

	unsubscribe func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithInstaller sets the installer used by InstallScenery.
func WithInstaller(in Installer) Option {
	return func(c *Controller) {
		c.installer = in
	}
}

// WithCatalogOptions passes options to the catalog registry.
func WithCatalogOptions(opts ...catalog.Option) Option {
	return func(c *Controller) {
		c.catOpts = append(c.catOpts, opts...)
	}
}

// New creates a controller with empty path lists. Call LoadFromConfig to
// read the persisted ones.
func New(store Store, root PackageRoot, opts ...Option) *Controller {
	c := &Controller{
		store:     store,
		root:      root,
		logger:    slog.Default(),
		scenery:   &pathlist.PathList{},
		aircraft:  &pathlist.PathList{},
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "settings"))
	c.catalogs = catalog.New(root, append([]catalog.Option{
		catalog.WithLogger(c.logger),
		catalog.WithDefaultURL(func() string { return catalog.DefaultURLFrom(store.String) }),
	}, c.catOpts...)...)

	c.unsubscribe = root.Subscribe(func(pkgroot.Catalog) {
		c.enqueue(CatalogsChanged)
		c.dispatch()
	})
	return c
}

// Close stops forwarding package root events.
func (c *Controller) Close() {
	c.unsubscribe()
}

// LoadFromConfig reads both path lists and the data directory. A list whose
// stored value is unreadable starts empty and is reported in the returned
// error; entries that are invalid or duplicated are dropped with a warning.
// The package root is not touched.
func (c *Controller) LoadFromConfig() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result *multierror.Error
	var err error
	if c.scenery, err = c.loadList(config.KeySceneryPaths); err != nil {
		result = multierror.Append(result, err)
	}
	if c.aircraft, err = c.loadList(config.KeyAircraftPaths); err != nil {
		result = multierror.Append(result, err)
	}
	c.dataDir = c.store.String(config.KeyDataDir)

	c.logger.Debug("settings loaded",
		slog.Int("scenery_paths", c.scenery.Len()),
		slog.Int("aircraft_paths", c.aircraft.Len()),
		slog.String("data_dir", c.dataDir),
	)
	return result.ErrorOrNil()
}

func (c *Controller) loadList(key string) (*pathlist.PathList, error) {
	raw, err := c.store.Strings(key)
	if err != nil {
		c.logger.Error("ignoring unreadable path list", slog.String("key", key), slog.Any("err", err))
		return &pathlist.PathList{}, fmt.Errorf("%w: %s: %w", ErrCorruptConfig, key, err)
	}

	l, err := pathlist.New(raw...)
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			c.logger.Warn("dropping stored path", slog.String("key", key), slog.Any("err", e))
		}
	}
	return l, nil
}

type listKind int

const (
	sceneryList listKind = iota
	aircraftList
)

func (c *Controller) listFor(kind listKind) (l *pathlist.PathList, key string, ev Event) {
	if kind == sceneryList {
		return c.scenery, config.KeySceneryPaths, SceneryPathsChanged
	}
	return c.aircraft, config.KeyAircraftPaths, AircraftPathsChanged
}

func (c *Controller) setList(kind listKind, l *pathlist.PathList) {
	if kind == sceneryList {
		c.scenery = l
		return
	}
	c.aircraft = l
}

// AddSceneryPath appends a scenery path at the lowest precedence.
func (c *Controller) AddSceneryPath(path string) error {
	return c.addPath(sceneryList, -1, path)
}

// InsertSceneryPath adds a scenery path at a precedence slot; 0 is searched
// first.
func (c *Controller) InsertSceneryPath(index int, path string) error {
	return c.addPath(sceneryList, index, path)
}

// AddAircraftPath appends an aircraft path at the lowest precedence.
func (c *Controller) AddAircraftPath(path string) error {
	return c.addPath(aircraftList, -1, path)
}

// InsertAircraftPath adds an aircraft path at a precedence slot.
func (c *Controller) InsertAircraftPath(index int, path string) error {
	return c.addPath(aircraftList, index, path)
}

// RemoveSceneryPath removes a scenery path. A path that is not present
// returns pathlist.ErrNotFound and emits nothing.
func (c *Controller) RemoveSceneryPath(path string) error {
	return c.removePath(sceneryList, path)
}

// RemoveAircraftPath removes an aircraft path.
func (c *Controller) RemoveAircraftPath(path string) error {
	return c.removePath(aircraftList, path)
}

func (c *Controller) addPath(kind listKind, index int, path string) error {
	c.mu.Lock()
	cur, key, ev := c.listFor(kind)
	next := cur.Clone()
	var err error
	if index < 0 {
		err = next.Add(path)
	} else {
		err = next.Insert(index, path)
	}
	if err == nil {
		err = c.commit(kind, key, ev, next)
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.dispatch()

	cleaned, _ := pathlist.Validate(path)
	c.logger.Info("path added", slog.String("list", key), slog.String("path", cleaned))
	if !pathlist.IsDir(cleaned) {
		c.logger.Warn("path is not an existing directory", slog.String("path", cleaned))
	}
	if kind == sceneryList {
		for _, hint := range sceneryHints {
			if strings.EqualFold(filepath.Base(cleaned), hint) {
				c.logger.Warn("path looks like a scenery subdirectory; the scenery path is usually its parent",
					slog.String("path", cleaned),
					slog.String("parent", filepath.Dir(cleaned)),
				)
				break
			}
		}
	}
	return nil
}

func (c *Controller) removePath(kind listKind, path string) error {
	c.mu.Lock()
	cur, key, ev := c.listFor(kind)
	next := cur.Clone()
	err := next.Remove(path)
	if err == nil {
		err = c.commit(kind, key, ev, next)
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.dispatch()

	c.logger.Info("path removed", slog.String("list", key), slog.String("path", path))
	return nil
}

// commit persists next and makes it current. On a persistence failure the
// current list is kept. Callers hold c.mu.
func (c *Controller) commit(kind listKind, key string, ev Event, next *pathlist.PathList) error {
	if err := c.store.SetStrings(key, next.Paths()); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	c.setList(kind, next)
	c.enqueue(ev)
	return nil
}

// SceneryPaths returns the scenery paths in search order.
func (c *Controller) SceneryPaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scenery.Paths()
}

// AircraftPaths returns the aircraft paths in search order.
func (c *Controller) AircraftPaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aircraft.Paths()
}

// HaveSceneryPath reports whether an equivalent scenery path is configured.
func (c *Controller) HaveSceneryPath(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scenery.Contains(path)
}

// DownloadDir returns the package root's download directory.
func (c *Controller) DownloadDir() string {
	return c.root.DownloadDir()
}

// IsDefaultDownloadDir reports whether the download directory is the
// platform default.
func (c *Controller) IsDefaultDownloadDir() bool {
	return c.root.IsDefaultDownloadDir()
}

// ChangeDownloadDir moves the package root to path. On any error, including
// pkgroot.ErrBusy, the previous directory stays in effect and nothing is
// emitted.
func (c *Controller) ChangeDownloadDir(path string) error {
	return c.switchDownloadDir(func() error { return c.root.SetDownloadDir(path) })
}

// ClearDownloadDir reverts to the default download directory.
func (c *Controller) ClearDownloadDir() error {
	return c.switchDownloadDir(c.root.ClearDownloadDir)
}

func (c *Controller) switchDownloadDir(apply func() error) error {
	c.mu.Lock()
	if err := apply(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.enqueue(DownloadDirChanged)
	c.enqueue(CatalogsChanged)
	c.mu.Unlock()

	c.dispatch()
	return nil
}

// DataDir returns the simulator data directory, or "" if unset.
func (c *Controller) DataDir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dataDir
}

// ChangeDataDir sets the simulator data directory. An empty path clears it.
// Otherwise path must be a directory holding a version file.
func (c *Controller) ChangeDataDir(path string) error {
	cleaned := ""
	if path != "" {
		var err error
		if cleaned, err = pathlist.Validate(path); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDataDir, err)
		}
		if _, err := ReadDataVersion(cleaned); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if pathlist.Same(cleaned, c.dataDir) {
		c.mu.Unlock()
		return nil
	}
	if err := c.store.Set(config.KeyDataDir, cleaned); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("saving %s: %w", config.KeyDataDir, err)
	}
	c.dataDir = cleaned
	c.enqueue(DataDirChanged)
	c.mu.Unlock()

	c.dispatch()
	c.logger.Info("data dir changed", slog.String("path", cleaned))
	return nil
}

// ReadDataVersion reads the version file of a simulator data directory.
func ReadDataVersion(dir string) (*semver.Version, error) {
	data, err := os.ReadFile(filepath.Join(dir, "version"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDataDir, dir, err)
	}
	v, err := semver.NewVersion(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: version file: %w", ErrInvalidDataDir, dir, err)
	}
	return v, nil
}

// Catalogs returns the catalog registry.
func (c *Controller) Catalogs() *catalog.Registry {
	return c.catalogs
}

// AddCatalog registers a catalog by URL. CatalogsChanged follows when it is
// registered and again when its metadata fetch completes.
func (c *Controller) AddCatalog(rawURL string) (string, error) {
	return c.catalogs.AddByURL(rawURL)
}

// AddDefaultCatalog registers the default catalog.
func (c *Controller) AddDefaultCatalog() (string, error) {
	return c.catalogs.AddDefault()
}

// RemoveCatalog deletes a catalog and its packages.
func (c *Controller) RemoveCatalog(id string) error {
	return c.catalogs.Remove(id)
}

// RefreshCatalog re-fetches a catalog's metadata.
func (c *Controller) RefreshCatalog(id string) error {
	_, err := c.catalogs.Refresh(id)
	return err
}

// InstallScenery checks that the download directory is writable and the
// catalog is installed, then hands the request to the installer. The
// returned task reports progress and completion.
func (c *Controller) InstallScenery(ctx context.Context, catalogID string, opts pkgroot.InstallOptions) (*pkgroot.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.installer == nil {
		return nil, ErrNoInstaller
	}

	dir := c.root.DownloadDir()
	if err := pkgroot.CheckWritable(dir); err != nil {
		return nil, &pkgroot.DirError{Op: "install", Path: dir, Err: fmt.Errorf("%w: %w", pkgroot.ErrNotWritable, err)}
	}

	status, err := c.root.InstallStatus(catalogID)
	if err != nil {
		return nil, err
	}
	if !status.IsUsable() {
		return nil, &pkgroot.CatalogError{Op: "install", ID: catalogID, Err: fmt.Errorf("%w: catalog is %s", pkgroot.ErrNotInstalled, status)}
	}

	task, err := c.installer.InstallScenery(ctx, catalogID, opts)
	if err != nil {
		return nil, err
	}
	c.logger.Info("scenery install started",
		slog.String("task", task.ID),
		slog.String("catalog", catalogID),
		slog.Any("packages", task.Packages),
	)
	return task, nil
}

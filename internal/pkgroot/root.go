package pkgroot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/adrg/xdg"
	"github.com/google/uuid"
	"github.com/skyhangar/hangar/internal/branding"
)

const (
	// DefaultMaxAge is the default staleness threshold (7 days).
	DefaultMaxAge = 7 * 24 * time.Hour

	// DefaultFetchTimeout bounds a single catalog metadata fetch.
	DefaultFetchTimeout = 2 * time.Minute
)

// Catalog is a point-in-time view of one catalog.
type Catalog struct {
	ID        string
	URL       string
	Status    Status
	Metadata  *Metadata
	Err       error
	AddedAt   time.Time
	UpdatedAt time.Time
}

// Name returns the catalog's display name, falling back to its URL.
func (c Catalog) Name() string {
	if c.Metadata != nil && c.Metadata.Name != "" {
		return c.Metadata.Name
	}
	return c.URL
}

type entry struct {
	rec      record
	key      string
	status   Status
	err      error
	installs int
	done     chan struct{}
}

// Root owns the catalog set and the download directory. It is safe for
// concurrent use; share one *Root rather than opening a second one over the
// same state directory.
type Root struct {
	stateDir     string
	defaultDir   string
	fetcher      Fetcher
	sim          *semver.Version
	maxAge       time.Duration
	fetchTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu          sync.Mutex
	downloadDir string
	custom      bool
	catalogs    map[string]*entry
	fetching    int
	installs    int
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	listenMu  sync.Mutex
	listeners map[int]func(Catalog)
	nextID    int
}

// Option configures a Root.
type Option func(*Root)

// WithStateDir sets where root.yaml is kept.
func WithStateDir(dir string) Option {
	return func(r *Root) {
		r.stateDir = dir
	}
}

// WithDefaultDownloadDir overrides the platform default download directory.
func WithDefaultDownloadDir(dir string) Option {
	return func(r *Root) {
		r.defaultDir = dir
	}
}

// WithFetcher sets the metadata fetcher (useful for testing).
func WithFetcher(f Fetcher) Option {
	return func(r *Root) {
		r.fetcher = f
	}
}

// WithSimulatorVersion sets the version catalogs are checked against. A nil
// version disables the check.
func WithSimulatorVersion(v *semver.Version) Option {
	return func(r *Root) {
		r.sim = v
	}
}

// WithMaxAge sets how old metadata may get before a catalog reports
// StatusNeedsUpdate. Zero disables staleness.
func WithMaxAge(d time.Duration) Option {
	return func(r *Root) {
		r.maxAge = d
	}
}

// WithFetchTimeout bounds each metadata fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Root) {
		r.fetchTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Root) {
		r.logger = l
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Root) {
		r.now = now
	}
}

// Open loads the package root from its state directory and the catalogs
// found under the download directory.
func Open(opts ...Option) (*Root, error) {
	sim, _ := semver.NewVersion(branding.SimulatorVersion())
	r := &Root{
		stateDir:     filepath.Join(xdg.StateHome, branding.CLIName()),
		defaultDir:   DefaultDownloadDir(),
		sim:          sim,
		maxAge:       DefaultMaxAge,
		fetchTimeout: DefaultFetchTimeout,
		logger:       slog.Default(),
		now:          time.Now,
		listeners:    make(map[int]func(Catalog)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fetcher == nil {
		r.fetcher = NewHTTPFetcher()
	}
	r.logger = r.logger.With(slog.String("component", "pkgroot"))

	st, err := loadState(r.stateDir)
	if err != nil {
		return nil, err
	}
	r.downloadDir = r.defaultDir
	if st.DownloadDir != "" {
		r.downloadDir = st.DownloadDir
		r.custom = true
	}

	recs, err := loadRecords(r.downloadDir, r.logger)
	if err != nil {
		return nil, err
	}
	r.catalogs = r.entriesFrom(recs)
	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.logger.Debug("package root opened",
		slog.String("download_dir", r.downloadDir),
		slog.Int("catalogs", len(r.catalogs)),
	)
	return r, nil
}

func (r *Root) entriesFrom(recs []record) map[string]*entry {
	out := make(map[string]*entry, len(recs))
	for _, rec := range recs {
		e := &entry{rec: rec, done: closedChan()}
		if _, key, err := parseSource(rec.URL); err == nil {
			e.key = key
		} else {
			e.key = rec.URL
		}

		switch {
		case rec.Error != "":
			e.status = StatusError
			e.err = restoreError(rec)
		case rec.Metadata == nil:
			e.status = StatusError
			e.err = &storedError{msg: "fetch interrupted", kind: ErrNetwork}
		default:
			e.status = StatusInstalled
		}
		out[rec.ID] = e
	}
	return out
}

// Close cancels background fetches and installs and waits for them to
// finish.
func (r *Root) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	return nil
}

// DownloadDir returns the current download directory.
func (r *Root) DownloadDir() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.downloadDir
}

// DefaultDownloadDir returns the directory ClearDownloadDir reverts to.
func (r *Root) DefaultDownloadDir() string {
	return r.defaultDir
}

// IsDefaultDownloadDir reports whether no custom download directory is set.
func (r *Root) IsDefaultDownloadDir() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.custom
}

// CatalogDir returns the on-disk directory of a catalog.
func (r *Root) CatalogDir(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.catalogDir(id)
}

func (r *Root) catalogDir(id string) string {
	return filepath.Join(r.downloadDir, PackagesDir, id)
}

// MaxAge returns the staleness threshold.
func (r *Root) MaxAge() time.Duration {
	return r.maxAge
}

// Pending reports whether any fetch or install is in flight.
func (r *Root) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending()
}

func (r *Root) pending() bool {
	return r.fetching > 0 || r.installs > 0
}

// Catalogs returns all catalogs ordered by when they were added.
func (r *Root) Catalogs() []Catalog {
	r.mu.Lock()
	out := make([]Catalog, 0, len(r.catalogs))
	for _, e := range r.catalogs {
		out = append(out, r.snapshot(e))
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out
}

// Catalog returns one catalog.
func (r *Root) Catalog(id string) (Catalog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.catalogs[id]
	if !ok {
		return Catalog{}, &CatalogError{Op: "get", ID: id, Err: ErrNotFound}
	}
	return r.snapshot(e), nil
}

// InstallStatus returns the status of one catalog.
func (r *Root) InstallStatus(id string) (Status, error) {
	c, err := r.Catalog(id)
	if err != nil {
		return "", err
	}
	return c.Status, nil
}

func (r *Root) snapshot(e *entry) Catalog {
	status := e.status
	if status == StatusInstalled && r.maxAge > 0 && r.now().Sub(e.rec.UpdatedAt) > r.maxAge {
		status = StatusNeedsUpdate
	}
	return Catalog{
		ID:        e.rec.ID,
		URL:       e.rec.URL,
		Status:    status,
		Metadata:  e.rec.Metadata,
		Err:       e.err,
		AddedAt:   e.rec.AddedAt,
		UpdatedAt: e.rec.UpdatedAt,
	}
}

// AddCatalog registers a catalog by URL and starts fetching its metadata in
// the background. The returned catalog is StatusInstalling; use Wait or
// Subscribe to observe the outcome.
func (r *Root) AddCatalog(rawURL string) (Catalog, error) {
	canonical, key, err := parseSource(rawURL)
	if err != nil {
		return Catalog{}, &CatalogError{Op: "add", URL: rawURL, Err: err}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Catalog{}, &CatalogError{Op: "add", URL: canonical, Err: fmt.Errorf("generating id: %w", err)}
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Catalog{}, &CatalogError{Op: "add", URL: canonical, Err: errors.New("package root closed")}
	}
	for _, e := range r.catalogs {
		if e.key == key {
			r.mu.Unlock()
			return Catalog{}, &CatalogError{Op: "add", ID: e.rec.ID, URL: canonical, Err: ErrAlreadyInstalled}
		}
	}

	now := r.now()
	e := &entry{
		rec:    record{ID: id.String(), URL: canonical, AddedAt: now},
		key:    key,
		status: StatusInstalling,
	}
	// The record is written before the fetch so an interrupted fetch is
	// visible after a restart.
	if err := writeRecord(r.catalogDir(e.rec.ID), e.rec); err != nil {
		r.mu.Unlock()
		return Catalog{}, &CatalogError{Op: "add", URL: canonical, Err: err}
	}
	r.catalogs[e.rec.ID] = e
	done := r.prepareFetch(e)
	snap := r.snapshot(e)
	r.mu.Unlock()

	r.logger.Info("catalog added", slog.String("id", snap.ID), slog.String("url", snap.URL))
	r.notify(snap)
	go r.fetch(snap.ID, snap.URL, done)
	return snap, nil
}

// RefreshCatalog re-fetches a catalog's metadata. It is also how a catalog
// in StatusError is retried.
func (r *Root) RefreshCatalog(id string) (Catalog, error) {
	r.mu.Lock()
	e, ok := r.catalogs[id]
	if !ok {
		r.mu.Unlock()
		return Catalog{}, &CatalogError{Op: "refresh", ID: id, Err: ErrNotFound}
	}
	if r.closed {
		r.mu.Unlock()
		return Catalog{}, &CatalogError{Op: "refresh", ID: id, Err: errors.New("package root closed")}
	}
	if e.status.IsActive() || e.installs > 0 {
		r.mu.Unlock()
		return Catalog{}, &CatalogError{Op: "refresh", ID: id, URL: e.rec.URL, Err: ErrBusy}
	}
	e.status = StatusInstalling
	e.err = nil
	done := r.prepareFetch(e)
	snap := r.snapshot(e)
	r.mu.Unlock()

	r.notify(snap)
	go r.fetch(snap.ID, snap.URL, done)
	return snap, nil
}

// prepareFetch counts a fetch as pending. It must be called with r.mu held;
// the caller starts r.fetch after announcing the installing state so
// listeners never see the outcome first.
func (r *Root) prepareFetch(e *entry) chan struct{} {
	e.done = make(chan struct{})
	r.fetching++
	r.wg.Add(1)
	return e.done
}

func (r *Root) fetch(id, rawURL string, done chan struct{}) {
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(r.ctx, r.fetchTimeout)
	defer cancel()

	var md *Metadata
	data, err := r.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrNetwork, err)
	} else {
		md, err = DecodeMetadata(data, r.sim)
	}

	r.mu.Lock()
	r.fetching--
	close(done)
	e, ok := r.catalogs[id]
	if !ok || e.done != done {
		r.mu.Unlock()
		return
	}

	if err == nil {
		for otherID, other := range r.catalogs {
			if otherID != id && other.rec.Metadata != nil && other.rec.Metadata.ID == md.ID {
				err = fmt.Errorf("%w: catalog %q is already provided by %s", ErrAlreadyInstalled, md.ID, otherID)
				break
			}
		}
	}

	if err != nil {
		e.status = StatusError
		e.err = err
		e.rec.Error = err.Error()
		e.rec.ErrorKind = kindOf(err)
	} else {
		e.status = StatusInstalled
		e.err = nil
		e.rec.Error = ""
		e.rec.ErrorKind = ""
		e.rec.Metadata = md
		e.rec.UpdatedAt = r.now()
	}
	writeErr := writeRecord(r.catalogDir(id), e.rec)
	snap := r.snapshot(e)
	r.mu.Unlock()

	if writeErr != nil {
		r.logger.Warn("saving catalog record", slog.String("id", id), slog.Any("err", writeErr))
	}
	if err != nil {
		r.logger.Warn("catalog fetch failed", slog.String("id", id), slog.String("url", rawURL), slog.Any("err", err))
	} else {
		r.logger.Info("catalog installed",
			slog.String("id", id),
			slog.String("name", md.Name),
			slog.Int("packages", len(md.Packages)),
		)
	}
	r.notify(snap)
}

// Wait blocks until the catalog's metadata fetch finishes. A catalog that
// ends in StatusError is returned together with its fetch error.
func (r *Root) Wait(ctx context.Context, id string) (Catalog, error) {
	r.mu.Lock()
	e, ok := r.catalogs[id]
	if !ok {
		r.mu.Unlock()
		return Catalog{}, &CatalogError{Op: "wait", ID: id, Err: ErrNotFound}
	}
	done := e.done
	r.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return Catalog{}, ctx.Err()
	}

	c, err := r.Catalog(id)
	if err != nil {
		return Catalog{}, err
	}
	if c.Status == StatusError {
		return c, &CatalogError{Op: "fetch", ID: id, URL: c.URL, Err: c.Err}
	}
	return c, nil
}

// RemoveCatalog deletes a catalog and its packages. A catalog whose fetch
// or install is in flight is not touched and ErrBusy is returned.
func (r *Root) RemoveCatalog(id string) error {
	r.mu.Lock()
	e, ok := r.catalogs[id]
	if !ok {
		r.mu.Unlock()
		return &CatalogError{Op: "remove", ID: id, Err: ErrNotFound}
	}
	if e.status.IsActive() || e.installs > 0 {
		r.mu.Unlock()
		return &CatalogError{Op: "remove", ID: id, URL: e.rec.URL, Err: ErrBusy}
	}
	if err := os.RemoveAll(r.catalogDir(id)); err != nil {
		r.mu.Unlock()
		return &CatalogError{Op: "remove", ID: id, URL: e.rec.URL, Err: err}
	}
	delete(r.catalogs, id)
	snap := r.snapshot(e)
	snap.Status = StatusRemoved
	r.mu.Unlock()

	r.logger.Info("catalog removed", slog.String("id", id), slog.String("url", snap.URL))
	r.notify(snap)
	return nil
}

// BeginInstall marks an install in flight against a usable catalog. The
// returned release func must be called when the install ends; Close waits
// for it.
func (r *Root) BeginInstall(id string) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, &CatalogError{Op: "install", ID: id, Err: errors.New("package root closed")}
	}
	e, ok := r.catalogs[id]
	if !ok {
		return nil, &CatalogError{Op: "install", ID: id, Err: ErrNotFound}
	}
	if e.status.IsActive() {
		return nil, &CatalogError{Op: "install", ID: id, URL: e.rec.URL, Err: ErrBusy}
	}
	if !r.snapshot(e).Status.IsUsable() {
		return nil, &CatalogError{Op: "install", ID: id, URL: e.rec.URL, Err: ErrNotInstalled}
	}

	e.installs++
	r.installs++
	r.wg.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			e.installs--
			r.installs--
			r.mu.Unlock()
			r.wg.Done()
		})
	}, nil
}

// SetDownloadDir moves the root to a new download directory and reloads the
// catalog set from it. Nothing changes if a fetch or install is pending or
// the directory is not writable.
func (r *Root) SetDownloadDir(path string) error {
	if path == "" || !filepath.IsAbs(path) {
		return &DirError{Op: "set", Path: path, Err: fmt.Errorf("%w: path must be absolute", ErrNotWritable)}
	}
	return r.switchDir("set", filepath.Clean(path), true)
}

// ClearDownloadDir reverts to the default download directory.
func (r *Root) ClearDownloadDir() error {
	return r.switchDir("clear", r.defaultDir, false)
}

func (r *Root) switchDir(op, dir string, custom bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending() {
		return &DirError{Op: op, Path: dir, Err: ErrBusy}
	}
	if err := CheckWritable(dir); err != nil {
		return &DirError{Op: op, Path: dir, Err: fmt.Errorf("%w: %w", ErrNotWritable, err)}
	}

	recs, err := loadRecords(dir, r.logger)
	if err != nil {
		return &DirError{Op: op, Path: dir, Err: err}
	}

	st := rootState{}
	if custom {
		st.DownloadDir = dir
	}
	if err := saveState(r.stateDir, st); err != nil {
		return &DirError{Op: op, Path: dir, Err: err}
	}

	prev := r.downloadDir
	r.downloadDir = dir
	r.custom = custom
	r.catalogs = r.entriesFrom(recs)

	r.logger.Info("download dir changed",
		slog.String("from", prev),
		slog.String("to", dir),
		slog.Int("catalogs", len(r.catalogs)),
	)
	return nil
}

// Subscribe registers fn for catalog state changes. fn runs on the goroutine
// that made the change and must not block.
func (r *Root) Subscribe(fn func(Catalog)) (cancel func()) {
	r.listenMu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.listenMu.Unlock()

	return func() {
		r.listenMu.Lock()
		delete(r.listeners, id)
		r.listenMu.Unlock()
	}
}

func (r *Root) notify(c Catalog) {
	r.listenMu.Lock()
	fns := make([]func(Catalog), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.listenMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/skyhangar/hangar/internal/branding"
	"github.com/skyhangar/hangar/internal/config"
	"github.com/skyhangar/hangar/internal/pkgroot"
)

// Root is the part of the package root the registry drives.
type Root interface {
	AddCatalog(rawURL string) (pkgroot.Catalog, error)
	RefreshCatalog(id string) (pkgroot.Catalog, error)
	RemoveCatalog(id string) error
	Catalogs() []pkgroot.Catalog
	Catalog(id string) (pkgroot.Catalog, error)
	Wait(ctx context.Context, id string) (pkgroot.Catalog, error)
}

// DefaultURL returns the default catalog URL, checking (in order):
// 1. <PREFIX>_CATALOG_URL env var
// 2. config key "catalog_url"
// 3. branding.DefaultCatalogURL() (from branding.yaml)
func DefaultURL() string {
	return DefaultURLFrom(config.Get)
}

// DefaultURLFrom resolves the default catalog URL like DefaultURL, reading
// the config key through lookup.
func DefaultURLFrom(lookup func(key string) string) string {
	if v := os.Getenv(branding.EnvVar("CATALOG_URL")); v != "" {
		return v
	}
	if v := lookup(config.KeyCatalogURL); v != "" {
		return v
	}
	return branding.DefaultCatalogURL()
}

// Registry applies catalog intents to a package root.
type Registry struct {
	root       Root
	defaultURL func() string
	logger     *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithDefaultURL overrides how AddDefault resolves its URL.
func WithDefaultURL(fn func() string) Option {
	return func(r *Registry) {
		r.defaultURL = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// New creates a Registry over root.
func New(root Root, opts ...Option) *Registry {
	r := &Registry{
		root:       root,
		defaultURL: DefaultURL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(slog.String("component", "catalog"))
	return r
}

// AddByURL registers a catalog and returns its id. The metadata fetch runs
// in the background; the catalog is installing until it completes.
func (r *Registry) AddByURL(rawURL string) (string, error) {
	c, err := r.root.AddCatalog(rawURL)
	if err != nil {
		return "", err
	}
	r.logger.Debug("catalog registered", slog.String("id", c.ID), slog.String("url", c.URL))
	return c.ID, nil
}

// AddDefault registers the default catalog. It behaves exactly like
// AddByURL; how the result is shown is up to the caller (see Reporter).
func (r *Registry) AddDefault() (string, error) {
	u := r.defaultURL()
	if u == "" {
		return "", &pkgroot.CatalogError{Op: "add", Err: fmt.Errorf("%w: no default catalog configured", pkgroot.ErrInvalidURL)}
	}
	return r.AddByURL(u)
}

// Remove deletes a catalog and its packages.
func (r *Registry) Remove(id string) error {
	return r.root.RemoveCatalog(id)
}

// Refresh re-fetches a catalog's metadata, retrying one in error.
func (r *Registry) Refresh(id string) (pkgroot.Catalog, error) {
	return r.root.RefreshCatalog(id)
}

// List returns all catalogs.
func (r *Registry) List() []pkgroot.Catalog {
	return r.root.Catalogs()
}

// Get returns one catalog.
func (r *Registry) Get(id string) (pkgroot.Catalog, error) {
	return r.root.Catalog(id)
}

// Wait blocks until a catalog's metadata fetch finishes.
func (r *Registry) Wait(ctx context.Context, id string) (pkgroot.Catalog, error) {
	return r.root.Wait(ctx, id)
}

// Resolve finds a catalog by id, metadata id, or source URL, so users can
// name catalogs the way they see them listed.
func (r *Registry) Resolve(ref string) (pkgroot.Catalog, error) {
	if c, err := r.root.Catalog(ref); err == nil {
		return c, nil
	} else if !errors.Is(err, pkgroot.ErrNotFound) {
		return pkgroot.Catalog{}, err
	}

	for _, c := range r.root.Catalogs() {
		if c.URL == ref || (c.Metadata != nil && c.Metadata.ID == ref) {
			return c, nil
		}
	}
	return pkgroot.Catalog{}, &pkgroot.CatalogError{Op: "get", ID: ref, Err: pkgroot.ErrNotFound}
}

// IsStale returns true if the catalog was last updated more than maxAge ago.
// Returns true if it has never been fetched.
func IsStale(c pkgroot.Catalog, maxAge time.Duration) bool {
	if c.UpdatedAt.IsZero() {
		return true
	}
	return time.Since(c.UpdatedAt) > maxAge
}

package pkgroot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skyhangar/hangar/internal/logging"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves catalog documents from memory. A gated URL blocks until
// its gate is opened.
type fakeFetcher struct {
	mu    sync.Mutex
	docs  map[string]string
	errs  map[string]error
	gates map[string]chan struct{}
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		docs:  make(map[string]string),
		errs:  make(map[string]error),
		gates: make(map[string]chan struct{}),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) serve(url, doc string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[url] = doc
	delete(f.errs, url)
}

func (f *fakeFetcher) fail(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[url] = err
}

// gate makes fetches of url block until the returned func is called.
func (f *fakeFetcher) gate(url string) (open func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[url] = ch
	f.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls[url]++
	gate := f.gates[url]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	doc, ok := f.docs[url]
	if !ok {
		return nil, fmt.Errorf("%s: 404 not found", url)
	}
	return []byte(doc), nil
}

type testPackage struct {
	id   string
	typ  string
	urls []string
	sha  string
}

func catalogDoc(id string, pkgs ...testPackage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %s\nname: %s catalog\nversion: 1.0.0\nsimulator_version: \">= 2020.3\"\npackages:\n", id, id)
	if len(pkgs) == 0 {
		b.WriteString("  []\n")
	}
	for _, p := range pkgs {
		quoted := make([]string, len(p.urls))
		for i, u := range p.urls {
			quoted[i] = fmt.Sprintf("%q", u)
		}
		fmt.Fprintf(&b, "  - id: %s\n    name: %s\n    type: %s\n    urls: [%s]\n", p.id, p.id, p.typ, strings.Join(quoted, ", "))
		if p.sha != "" {
			fmt.Fprintf(&b, "    sha256: %s\n", p.sha)
		}
	}
	return b.String()
}

func discardLogger() *slog.Logger {
	return logging.Discard()
}

type testRoot struct {
	*Root
	stateDir   string
	defaultDir string
	fetcher    *fakeFetcher
}

func openTestRoot(t *testing.T, opts ...Option) *testRoot {
	t.Helper()

	tr := &testRoot{
		stateDir:   t.TempDir(),
		defaultDir: t.TempDir(),
		fetcher:    newFakeFetcher(),
	}
	tr.Root = tr.reopen(t, opts...)
	return tr
}

func (tr *testRoot) reopen(t *testing.T, opts ...Option) *Root {
	t.Helper()

	base := []Option{
		WithStateDir(tr.stateDir),
		WithDefaultDownloadDir(tr.defaultDir),
		WithFetcher(tr.fetcher),
		WithLogger(discardLogger()),
		WithFetchTimeout(10 * time.Second),
	}
	r, err := Open(append(base, opts...)...)
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

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

package pkgroot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"
)

const (
	stateFile  = "root.yaml"
	recordFile = "catalog.yaml"
)

// rootState is persisted in the state directory. An empty DownloadDir means
// the platform default.
type rootState struct {
	DownloadDir string `yaml:"download_dir,omitempty"`
}

func loadState(stateDir string) (rootState, error) {
	var st rootState
	if stateDir == "" {
		return st, nil
	}
	path := filepath.Join(stateDir, stateFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("reading package root state: %w", err)
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parsing package root state %s: %w", path, err)
	}
	return st, nil
}

func saveState(stateDir string, st rootState) error {
	if stateDir == "" {
		return nil
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshaling package root state: %w", err)
	}
	return writeFileAtomic(filepath.Join(stateDir, stateFile), data)
}

// record is the persisted form of a catalog.
type record struct {
	ID        string    `yaml:"id"`
	URL       string    `yaml:"url"`
	AddedAt   time.Time `yaml:"added_at"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
	Error     string    `yaml:"error,omitempty"`
	ErrorKind string    `yaml:"error_kind,omitempty"`
	Metadata  *Metadata `yaml:"metadata,omitempty"`
}

var errorKinds = map[string]error{
	"network":           ErrNetwork,
	"invalid-metadata":  ErrInvalidMetadata,
	"incompatible":      ErrIncompatible,
	"already-installed": ErrAlreadyInstalled,
}

// kindOf names the error kind of err for persistence.
func kindOf(err error) string {
	for name, kind := range errorKinds {
		if errors.Is(err, kind) {
			return name
		}
	}
	return ""
}

// storedError is a fetch error read back from a catalog record.
type storedError struct {
	msg  string
	kind error
}

func (e *storedError) Error() string { return e.msg }

func (e *storedError) Unwrap() error { return e.kind }

func restoreError(rec record) error {
	return &storedError{msg: rec.Error, kind: errorKinds[rec.ErrorKind]}
}

func readRecord(path string) (record, error) {
	var rec record
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parsing %s: %w", path, err)
	}
	return rec, nil
}

func writeRecord(catalogDir string, rec record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling catalog record: %w", err)
	}
	return writeFileAtomic(filepath.Join(catalogDir, recordFile), data)
}

// loadRecords reads every catalog record below downloadDir. Unreadable
// records are logged and skipped.
func loadRecords(downloadDir string, logger *slog.Logger) ([]record, error) {
	base := filepath.Join(downloadDir, PackagesDir)
	entries, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", base, err)
	}

	var recs []record
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(base, entry.Name(), recordFile)
		rec, err := readRecord(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			logger.Warn("skipping unreadable catalog record", slog.String("path", path), slog.Any("err", err))
			continue
		}
		rec.ID = entry.Name()
		recs = append(recs, rec)
	}
	return recs, nil
}

// writeFileAtomic writes to a temp file beside path, then renames it.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("finalizing %s: %w", path, err)
	}
	return nil
}

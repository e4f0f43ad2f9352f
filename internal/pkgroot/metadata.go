package pkgroot

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.yaml.in/yaml/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/catalog.schema.json
var schemaBytes []byte

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
	printer        = message.NewPrinter(language.English)
)

// PackageType distinguishes aircraft from scenery packages.
type PackageType string

const (
	PackageAircraft PackageType = "aircraft"
	PackageScenery  PackageType = "scenery"
)

// Package is one installable entry of a catalog.
type Package struct {
	ID      string      `yaml:"id" json:"id"`
	Name    string      `yaml:"name" json:"name"`
	Type    PackageType `yaml:"type" json:"type"`
	Version string      `yaml:"version,omitempty" json:"version,omitempty"`
	URLs    []string    `yaml:"urls" json:"urls"`
	SHA256  string      `yaml:"sha256,omitempty" json:"sha256,omitempty"`
	Size    int64       `yaml:"size,omitempty" json:"size,omitempty"`
}

// Metadata is the decoded catalog document served at a catalog URL.
type Metadata struct {
	ID               string    `yaml:"id" json:"id"`
	Name             string    `yaml:"name" json:"name"`
	Description      string    `yaml:"description,omitempty" json:"description,omitempty"`
	Version          string    `yaml:"version" json:"version"`
	SimulatorVersion string    `yaml:"simulator_version,omitempty" json:"simulator_version,omitempty"`
	URL              string    `yaml:"url,omitempty" json:"url,omitempty"`
	Packages         []Package `yaml:"packages" json:"packages"`
}

// Package returns the package with the given id.
func (m *Metadata) Package(id string) (Package, bool) {
	for _, p := range m.Packages {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}

// PackagesOfType returns packages of one type in catalog order.
func (m *Metadata) PackagesOfType(t PackageType) []Package {
	var out []Package
	for _, p := range m.Packages {
		if p.Type == t {
			out = append(out, p)
		}
	}
	return out
}

// getSchema compiles the embedded JSON schema once and returns it.
func getSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
		if err != nil {
			compileErr = fmt.Errorf("unmarshaling schema JSON: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource("catalog.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("catalog.schema.json")
		if compileErr != nil {
			compileErr = fmt.Errorf("compiling schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// DecodeMetadata parses a YAML or JSON catalog document, validates it
// against the catalog schema, and checks its simulator_version constraint
// against sim. A nil sim skips the compatibility check.
func DecodeMetadata(data []byte, sim *semver.Version) (*Metadata, error) {
	issues, err := validate(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}
	if len(issues) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMetadata, strings.Join(issues, "; "))
	}

	var md Metadata
	if err := yaml.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}

	if _, err := semver.NewVersion(md.Version); err != nil {
		return nil, fmt.Errorf("%w: version %q: %w", ErrInvalidMetadata, md.Version, err)
	}

	seen := make(map[string]bool, len(md.Packages))
	for _, p := range md.Packages {
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: duplicate package id %q", ErrInvalidMetadata, p.ID)
		}
		seen[p.ID] = true
	}

	if md.SimulatorVersion != "" && sim != nil {
		c, err := semver.NewConstraint(md.SimulatorVersion)
		if err != nil {
			return nil, fmt.Errorf("%w: simulator_version %q: %w", ErrInvalidMetadata, md.SimulatorVersion, err)
		}
		if !c.Check(sim) {
			return nil, fmt.Errorf("%w: requires %s, running %s", ErrIncompatible, md.SimulatorVersion, sim)
		}
	}

	return &md, nil
}

// validate returns human-readable schema violations. The error return is for
// documents that are not YAML at all or a broken embedded schema.
func validate(data []byte) ([]string, error) {
	schema, err := getSchema()
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	if raw == nil {
		return nil, errors.New("empty document")
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("converting to JSON: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("preparing JSON for validation: %w", err)
	}

	err = schema.Validate(inst)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("unexpected validation error type: %w", err)
	}

	var issues []string
	collectIssues(ve, &issues)
	if len(issues) == 0 {
		issues = append(issues, ve.Error())
	}
	return issues, nil
}

// collectIssues walks the error tree and records leaf errors.
func collectIssues(ve *jsonschema.ValidationError, issues *[]string) {
	if len(ve.Causes) > 0 {
		for _, cause := range ve.Causes {
			collectIssues(cause, issues)
		}
		return
	}
	if ve.ErrorKind == nil {
		return
	}

	msg := ve.ErrorKind.LocalizedString(printer)
	if len(ve.InstanceLocation) > 0 {
		msg = "/" + strings.Join(ve.InstanceLocation, "/") + ": " + msg
	}
	for _, existing := range *issues {
		if existing == msg {
			return
		}
	}
	*issues = append(*issues, msg)
}

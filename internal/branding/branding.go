// Package branding provides compile-time identity values for the CLI.
//
// Packagers edit branding.yaml in this directory before building. Go's
// //go:embed bakes it into the binary, so distributions can point the
// default catalog at their own mirror without patching code.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName           string `yaml:"cli_name"`
	DisplayName       string `yaml:"display_name"`
	Description       string `yaml:"description"`
	HomeDir           string `yaml:"home_dir"`
	EnvPrefix         string `yaml:"env_prefix"`
	DefaultCatalogURL string `yaml:"default_catalog_url"`
	SimulatorVersion  string `yaml:"simulator_version"`
}

func load() {
	once.Do(func() {
		// Hard defaults in case the embedded file is missing or empty.
		defaults = brand{
			CLIName:           "hangar",
			DisplayName:       "Hangar",
			Description:       "Scenery, aircraft and package catalog settings for the flight simulator",
			HomeDir:           ".hangar",
			EnvPrefix:         "HANGAR",
			DefaultCatalogURL: "https://mirrors.ibiblio.org/flightgear/ftp/Aircraft-2024/catalog.yaml",
			SimulatorVersion:  "2024.1.1",
		}
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "hangar").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name (e.g., "Hangar").
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".hangar").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "HANGAR").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// DefaultCatalogURL returns the catalog added by "catalog add-default".
func DefaultCatalogURL() string { load(); return defaults.DefaultCatalogURL }

// SimulatorVersion returns the simulator release catalogs are checked against.
func SimulatorVersion() string { load(); return defaults.SimulatorVersion }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("home") → "HANGAR_HOME".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}

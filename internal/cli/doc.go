// Package cli defines the Cobra command tree for the hangar CLI. Each file
// registers one top-level command (paths, catalog, install, doctor, etc.)
// with the root command. Commands open a session over the user's config and
// package root, delegate to the settings controller, and only handle flag
// parsing and output formatting.
package cli

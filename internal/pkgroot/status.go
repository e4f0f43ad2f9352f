package pkgroot

// Status is the lifecycle state of a catalog.
type Status string

const (
	// StatusInstalling means catalog metadata is being fetched.
	StatusInstalling Status = "installing"

	// StatusInstalled means metadata was fetched and validated.
	StatusInstalled Status = "installed"

	// StatusNeedsUpdate means the catalog is installed but its metadata is
	// older than the root's maximum age.
	StatusNeedsUpdate Status = "needs-update"

	// StatusError means the last fetch failed. A refresh retries it.
	StatusError Status = "error"

	// StatusRemoved is terminal; the catalog and its packages are gone.
	StatusRemoved Status = "removed"
)

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// IsActive returns true while a metadata fetch is in flight.
func (s Status) IsActive() bool {
	return s == StatusInstalling
}

// IsUsable returns true if packages can be installed from the catalog.
func (s Status) IsUsable() bool {
	return s == StatusInstalled || s == StatusNeedsUpdate
}

// Package pkgroot is the package root: it owns the set of installed package
// catalogs and the download directory they live under. Catalog metadata is
// fetched in the background; package installs run as tasks that hold the
// catalog busy until they finish.
//
// On-disk layout under the download directory:
//
//	Packages/<catalog-id>/catalog.yaml     catalog record and metadata
//	Packages/<catalog-id>/<package-id>/    extracted package
//
// While any fetch or install is pending, the download directory cannot be
// changed and a busy catalog cannot be removed; both return ErrBusy.
package pkgroot

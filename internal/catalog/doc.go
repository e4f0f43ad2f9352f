// Package catalog is the catalog registry: add-by-URL, add-default, remove
// and refresh intents applied to the package root's catalog set. The default
// catalog URL is resolved from the environment, then the user config, then
// the built-in branding value.
package catalog

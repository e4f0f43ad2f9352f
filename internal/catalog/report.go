package catalog

import (
	"errors"
	"fmt"
	"io"

	"github.com/skyhangar/hangar/internal/pkgroot"
)

// Reporter turns catalog results into user-facing lines. Silent suppresses
// all output; it never changes what was done.
type Reporter struct {
	Out    io.Writer
	Err    io.Writer
	Silent bool
}

// Report writes a confirmation for a successful action or an explanation
// for a failed one.
func (rp Reporter) Report(action string, c pkgroot.Catalog, err error) {
	if rp.Silent {
		return
	}
	if err != nil {
		fmt.Fprintf(rp.Err, "Could not %s catalog: %s\n", action, Explain(err))
		return
	}
	fmt.Fprintf(rp.Out, "Catalog %s: %s (%s) [%s]\n", pastTense(action), c.Name(), c.ID, c.Status)
}

// Explain returns a short, user-oriented description of a catalog error.
func Explain(err error) string {
	switch {
	case errors.Is(err, pkgroot.ErrInvalidURL):
		return "the URL is not a valid http, https or file URL (" + err.Error() + ")"
	case errors.Is(err, pkgroot.ErrAlreadyInstalled):
		return "it is already installed"
	case errors.Is(err, pkgroot.ErrNotFound):
		return "no such catalog"
	case errors.Is(err, pkgroot.ErrBusy):
		return "a download or install is in progress; try again when it finishes"
	case errors.Is(err, pkgroot.ErrNetwork):
		return "it could not be downloaded (" + err.Error() + ")"
	case errors.Is(err, pkgroot.ErrIncompatible):
		return "it does not support this simulator version (" + err.Error() + ")"
	case errors.Is(err, pkgroot.ErrInvalidMetadata):
		return "its metadata is invalid (" + err.Error() + ")"
	default:
		return err.Error()
	}
}

func pastTense(action string) string {
	switch action {
	case "add":
		return "added"
	case "remove":
		return "removed"
	case "refresh":
		return "refreshed"
	default:
		return action
	}
}

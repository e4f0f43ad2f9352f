package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/skyhangar/hangar/internal/branding"
	"github.com/skyhangar/hangar/internal/catalog"
	"github.com/skyhangar/hangar/internal/pkgroot"
	"github.com/spf13/cobra"
)

func init() {
	catalogAddDefaultCmd.Flags().Bool("silent", false, "Do not report the result")
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogAddCmd)
	catalogCmd.AddCommand(catalogAddDefaultCmd)
	catalogCmd.AddCommand(catalogRemoveCmd)
	catalogCmd.AddCommand(catalogRefreshCmd)
	catalogCmd.AddCommand(catalogStatusCmd)
	rootCmd.AddCommand(catalogCmd)
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage package catalogs",
	Long: `Manage the package catalogs scenery and aircraft are installed from.

Catalogs live under <download-dir>/Packages/. Each one is identified by its
source URL; the metadata is re-fetched with 'catalog refresh'. Commands that
take a catalog accept its id, its metadata id or its URL.`,
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed catalogs",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		cats := s.ctl.Catalogs().List()
		if len(cats) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No catalogs installed. Run '%s catalog add-default'.\n", branding.CLIName())
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPACKAGES\tURL")
		for _, c := range cats {
			pkgs := "-"
			if c.Metadata != nil {
				pkgs = fmt.Sprint(len(c.Metadata.Packages))
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name(), c.Status, pkgs, c.URL)
		}
		return w.Flush()
	},
}

var catalogAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a catalog by URL and fetch its metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		id, err := s.ctl.AddCatalog(args[0])
		return reportFetch(cmd, s, "add", id, err, false)
	},
}

var catalogAddDefaultCmd = &cobra.Command{
	Use:   "add-default",
	Short: "Add the default catalog",
	Long: fmt.Sprintf(`Add the default catalog. The URL comes from $%s, then the
%s config key, then the built-in default.`, branding.EnvVar("CATALOG_URL"), "catalog_url"),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		silent, _ := cmd.Flags().GetBool("silent")
		id, err := s.ctl.AddDefaultCatalog()
		return reportFetch(cmd, s, "add", id, err, silent)
	},
}

var catalogRemoveCmd = &cobra.Command{
	Use:   "remove <catalog>",
	Short: "Remove a catalog and its installed packages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		rp := reporter(cmd, false)
		c, err := s.ctl.Catalogs().Resolve(args[0])
		if err == nil {
			err = s.ctl.RemoveCatalog(c.ID)
		}
		if err == nil {
			c.Status = pkgroot.StatusRemoved
		}
		rp.Report("remove", c, err)
		return reported(err)
	},
}

var catalogRefreshCmd = &cobra.Command{
	Use:   "refresh <catalog>",
	Short: "Re-fetch a catalog's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		c, err := s.ctl.Catalogs().Resolve(args[0])
		if err == nil {
			err = s.ctl.RefreshCatalog(c.ID)
		}
		return reportFetch(cmd, s, "refresh", c.ID, err, false)
	},
}

var catalogStatusCmd = &cobra.Command{
	Use:   "status <catalog>",
	Short: "Show a catalog's status and location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		c, err := s.ctl.Catalogs().Resolve(args[0])
		if err != nil {
			return errors.New(catalog.Explain(err))
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Name:         %s\n", c.Name())
		fmt.Fprintf(out, "ID:           %s\n", c.ID)
		fmt.Fprintf(out, "URL:          %s\n", c.URL)
		fmt.Fprintf(out, "Location:     %s\n", s.root.CatalogDir(c.ID))
		if c.Metadata != nil {
			fmt.Fprintf(out, "Version:      %s\n", c.Metadata.Version)
			fmt.Fprintf(out, "Scenery:      %d packages\n", len(c.Metadata.PackagesOfType(pkgroot.PackageScenery)))
			fmt.Fprintf(out, "Aircraft:     %d packages\n", len(c.Metadata.PackagesOfType(pkgroot.PackageAircraft)))
		}
		if c.UpdatedAt.IsZero() {
			fmt.Fprintln(out, "Last updated: never")
		} else {
			age := time.Since(c.UpdatedAt).Truncate(time.Minute)
			fmt.Fprintf(out, "Last updated: %s (%s ago)\n", c.UpdatedAt.Format(time.RFC3339), age)
		}

		switch {
		case c.Status == pkgroot.StatusError:
			fmt.Fprintf(out, "Status:       error: %s\n", catalog.Explain(c.Err))
		case catalog.IsStale(c, s.root.MaxAge()):
			fmt.Fprintf(out, "Status:       stale (run '%s catalog refresh %s')\n", branding.CLIName(), c.ID)
		default:
			fmt.Fprintf(out, "Status:       %s\n", c.Status)
		}
		return nil
	},
}

func reporter(cmd *cobra.Command, silent bool) catalog.Reporter {
	return catalog.Reporter{Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr(), Silent: silent}
}

// reportFetch waits for the metadata fetch an add or refresh started, then
// reports how it ended. The fetch would be cancelled when the session
// closes, so the command always waits.
func reportFetch(cmd *cobra.Command, s *session, action, id string, err error, silent bool) error {
	rp := reporter(cmd, silent)
	if err != nil {
		rp.Report(action, pkgroot.Catalog{ID: id}, err)
		return reported(err)
	}
	c, err := s.ctl.Catalogs().Wait(cmd.Context(), id)
	rp.Report(action, c, err)
	return reported(err)
}

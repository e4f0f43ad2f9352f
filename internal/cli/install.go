package cli

import (
	"fmt"

	"github.com/skyhangar/hangar/internal/pkgroot"
	"github.com/spf13/cobra"
)

func init() {
	installSceneryCmd.Flags().IntP("parallel", "j", pkgroot.DefaultParallel, "Packages to download at once")
	installCmd.AddCommand(installSceneryCmd)
	rootCmd.AddCommand(installCmd)
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install packages from a catalog",
}

var installSceneryCmd = &cobra.Command{
	Use:   "scenery <catalog> [package...]",
	Short: "Install scenery packages",
	Long: `Download and extract scenery packages from an installed catalog into
<download-dir>/Packages/<catalog>/. With no package ids, every scenery package
in the catalog is installed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parallel, _ := cmd.Flags().GetInt("parallel")
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		c, err := s.ctl.Catalogs().Resolve(args[0])
		if err != nil {
			return err
		}

		task, err := s.ctl.InstallScenery(cmd.Context(), c.ID, pkgroot.InstallOptions{
			Packages: args[1:],
			Parallel: parallel,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Installing %d packages from %s...\n", len(task.Packages), c.Name())
		if err := task.Wait(cmd.Context()); err != nil {
			return fmt.Errorf("installing scenery: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Installed into %s\n", s.root.CatalogDir(c.ID))
		return nil
	},
}

package cli

import (
	"fmt"

	"github.com/skyhangar/hangar/internal/settings"
	"github.com/spf13/cobra"
)

func init() {
	downloadDirCmd.AddCommand(downloadDirShowCmd, downloadDirSetCmd, downloadDirClearCmd)
	dataDirCmd.AddCommand(dataDirShowCmd, dataDirSetCmd, dataDirClearCmd)
	rootCmd.AddCommand(downloadDirCmd)
	rootCmd.AddCommand(dataDirCmd)
}

var downloadDirCmd = &cobra.Command{
	Use:   "download-dir",
	Short: "Manage the directory packages are downloaded to",
	Long: `Manage the download directory. Catalogs and their packages live in its
Packages/ subdirectory, so changing it switches to that directory's catalogs.
The change is refused while a catalog fetch or install is in progress.`,
}

var downloadDirShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the download directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		dir := s.ctl.DownloadDir()
		if s.ctl.IsDefaultDownloadDir() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (default)\n", dir)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), dir)
		return nil
	},
}

var downloadDirSetCmd = &cobra.Command{
	Use:   "set <path>",
	Short: "Use a custom download directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return switchDownloadDir(cmd, func(ctl *settings.Controller) error {
			return ctl.ChangeDownloadDir(args[0])
		})
	},
}

var downloadDirClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Revert to the default download directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return switchDownloadDir(cmd, (*settings.Controller).ClearDownloadDir)
	},
}

func switchDownloadDir(cmd *cobra.Command, apply func(*settings.Controller) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := apply(s.ctl); err != nil {
		return fmt.Errorf("changing download directory: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Download directory: %s\n", s.ctl.DownloadDir())
	fmt.Fprintf(cmd.OutOrStdout(), "Catalogs:           %d\n", len(s.ctl.Catalogs().List()))
	return nil
}

var dataDirCmd = &cobra.Command{
	Use:   "data-dir",
	Short: "Manage the simulator data directory",
}

var dataDirShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the simulator data directory and its version",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		dir := s.ctl.DataDir()
		if dir == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "Not set.")
			return nil
		}
		v, err := settings.ReadDataVersion(dir)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%v)\n", dir, err)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (version %s)\n", dir, v)
		return nil
	},
}

var dataDirSetCmd = &cobra.Command{
	Use:   "set <path>",
	Short: "Set the simulator data directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.ctl.ChangeDataDir(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Data directory: %s\n", s.ctl.DataDir())
		return nil
	},
}

var dataDirClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Unset the simulator data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.ctl.ChangeDataDir(""); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Data directory cleared.")
		return nil
	},
}

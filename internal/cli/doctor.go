package cli

import (
	"fmt"

	"github.com/skyhangar/hangar/internal/branding"
	"github.com/skyhangar/hangar/internal/doctor"
	"github.com/spf13/cobra"
)

func init() {
	doctorCmd.Flags().Bool("fix", false, "Create a missing download directory and remove leftover partial downloads")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check paths, directories and catalogs",
	Long: `Run diagnostic checks on the configured search paths, the simulator data
directory, the download directory and the installed catalogs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fix, _ := cmd.Flags().GetBool("fix")
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		sum := doctor.Run(cmd.OutOrStdout(), doctor.Options{
			Settings: s.ctl,
			Root:     s.root,
			LoadErr:  s.loadErr,
			Fix:      fix,
		})

		fmt.Fprintln(cmd.OutOrStdout())
		switch {
		case sum.Problems == 0:
			fmt.Fprintln(cmd.OutOrStdout(), "No problems found.")
		case sum.Fixed > 0:
			fmt.Fprintf(cmd.OutOrStdout(), "%d problems found, %d fixed.\n", sum.Problems, sum.Fixed)
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "%d problems found. See '%s doctor --help'.\n", sum.Problems, branding.CLIName())
		}
		return nil
	},
}

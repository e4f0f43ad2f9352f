package cli

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/skyhangar/hangar/internal/settings"
	"github.com/spf13/cobra"
)

// pathKind binds a path subcommand tree to one of the controller's lists.
type pathKind struct {
	name   string
	event  settings.Event
	list   func(*settings.Controller) []string
	add    func(*settings.Controller, string) error
	insert func(*settings.Controller, int, string) error
	remove func(*settings.Controller, string) error
}

var sceneryKind = pathKind{
	name:   "scenery",
	event:  settings.SceneryPathsChanged,
	list:   (*settings.Controller).SceneryPaths,
	add:    (*settings.Controller).AddSceneryPath,
	insert: (*settings.Controller).InsertSceneryPath,
	remove: (*settings.Controller).RemoveSceneryPath,
}

var aircraftKind = pathKind{
	name:   "aircraft",
	event:  settings.AircraftPathsChanged,
	list:   (*settings.Controller).AircraftPaths,
	add:    (*settings.Controller).AddAircraftPath,
	insert: (*settings.Controller).InsertAircraftPath,
	remove: (*settings.Controller).RemoveAircraftPath,
}

func init() {
	sceneryCmd := newPathCmd(sceneryKind)
	sceneryCmd.AddCommand(&cobra.Command{
		Use:   "has <path>",
		Short: "Report whether a path is in the scenery list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()
			s.warnLoad(cmd)

			if s.ctl.HaveSceneryPath(args[0]) {
				fmt.Fprintln(cmd.OutOrStdout(), "yes")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "no")
			return nil
		},
	})

	pathsCmd.AddCommand(sceneryCmd)
	pathsCmd.AddCommand(newPathCmd(aircraftKind))
	rootCmd.AddCommand(pathsCmd)
}

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Manage scenery and aircraft search paths",
	Long: `Manage the ordered scenery and aircraft search paths. Earlier entries
take precedence over later ones.`,
}

func newPathCmd(k pathKind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   k.name,
		Short: "Manage the " + k.name + " path list",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the " + k.name + " paths in precedence order",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()
			s.warnLoad(cmd)

			printPaths(cmd.OutOrStdout(), k.list(s.ctl))
			return nil
		},
	})

	addCmd := &cobra.Command{
		Use:   "add <path>...",
		Short: "Append paths to the " + k.name + " list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			first, err := cmd.Flags().GetBool("first")
			if err != nil {
				return err
			}
			return editPaths(cmd, k, args, func(ctl *settings.Controller, i int, p string) error {
				if first {
					return k.insert(ctl, i, p)
				}
				return k.add(ctl, p)
			})
		},
	}
	addCmd.Flags().Bool("first", false, "Insert at the highest precedence instead of appending")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <path>...",
		Short: "Remove paths from the " + k.name + " list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editPaths(cmd, k, args, func(ctl *settings.Controller, _ int, p string) error {
				return k.remove(ctl, p)
			})
		},
	})

	return cmd
}

// editPaths applies op to every argument, keeps going past failures, and
// prints the list once if anything changed.
func editPaths(cmd *cobra.Command, k pathKind, args []string, op func(*settings.Controller, int, string) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	s.warnLoad(cmd)

	var changed atomic.Bool
	cancel := s.ctl.Subscribe(func(ev settings.Event) {
		if ev == k.event {
			changed.Store(true)
		}
	})
	defer cancel()

	var result *multierror.Error
	accepted := 0
	for _, p := range args {
		if err := op(s.ctl, accepted, p); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		accepted++
	}

	if changed.Load() {
		printPaths(cmd.OutOrStdout(), k.list(s.ctl))
	}
	return result.ErrorOrNil()
}

func printPaths(w io.Writer, paths []string) {
	if len(paths) == 0 {
		fmt.Fprintln(w, "No paths configured.")
		return
	}
	for i, p := range paths {
		fmt.Fprintf(w, "%2d  %s\n", i+1, p)
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/Masterminds/semver/v3"
	"github.com/skyhangar/hangar/internal/branding"
	"github.com/skyhangar/hangar/internal/config"
	"github.com/skyhangar/hangar/internal/logging"
	"github.com/skyhangar/hangar/internal/pkgroot"
	"github.com/skyhangar/hangar/internal/settings"
	"github.com/spf13/cobra"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var (
	logLevel  string
	logFormat string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (text, logfmt, json)")
}

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` manages the scenery and aircraft search paths, the simulator data
directory, and the package catalogs scenery and aircraft are installed from.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		level := firstNonEmpty(logLevel, config.Get(config.KeyLogLevel), "warn")
		format := firstNonEmpty(logFormat, config.Get(config.KeyLogFormat), logging.FormatText)
		logger, err := logging.New(os.Stderr, level, format)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	var re *reportedError
	if err != nil && !errors.As(err, &re) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// reportedError marks a failure the command already explained to the user.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// session is one command's view of the user's settings: the config store,
// the package root under the download directory, and the controller on top.
type session struct {
	store   *config.Store
	root    *pkgroot.Root
	ctl     *settings.Controller
	loadErr error
}

func openSession() (*session, error) {
	store, err := config.Load()
	if err != nil {
		return nil, err
	}

	simVersion := firstNonEmpty(store.String(config.KeySimulatorVersion), branding.SimulatorVersion())
	sim, err := semver.NewVersion(simVersion)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", config.KeySimulatorVersion, simVersion, err)
	}

	logger := slog.Default()
	root, err := pkgroot.Open(
		pkgroot.WithStateDir(config.Dir()),
		pkgroot.WithSimulatorVersion(sim),
		pkgroot.WithFetcher(pkgroot.NewHTTPFetcher(
			pkgroot.WithUserAgent(branding.CLIName()+"/"+buildVersion),
		)),
		pkgroot.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("opening package root: %w", err)
	}

	installer := pkgroot.NewInstaller(root, pkgroot.WithInstallerLogger(logger))
	ctl := settings.New(store, root,
		settings.WithLogger(logger),
		settings.WithInstaller(installer),
	)

	s := &session{store: store, root: root, ctl: ctl}
	s.loadErr = ctl.LoadFromConfig()
	return s, nil
}

// warnLoad prints a LoadFromConfig failure. Commands keep going with the
// affected list empty.
func (s *session) warnLoad(cmd *cobra.Command) {
	if s.loadErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", s.loadErr)
	}
}

func (s *session) Close() {
	s.ctl.Close()
	if err := s.root.Close(); err != nil {
		slog.Warn("closing package root", slog.Any("error", err))
	}
}

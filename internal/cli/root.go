package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rhythmerc/gentro-library/services/config"
	"github.com/rhythmerc/gentro-library/services/games"
	"github.com/rhythmerc/gentro-library/services/games/apppaths"
	"github.com/rhythmerc/gentro-library/services/logging"
)

// lockFile sits next to the database
const lockFile = "gentro.lock"

// mutates marks commands that write to the library and need the lock
var mutates = map[string]string{"mutates": "true"}

type app struct {
	flagConfig  string
	flagNoColor bool
	flagVerbose bool

	settings  config.Config
	svc       *games.GamesService
	lock      *games.Lock
	logCloser io.Closer

	out    io.Writer
	errOut io.Writer
}

// Execute is the entry point called from main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		stop()
		os.Exit(1)
	}
}

// execute runs one command line. Resources opened by the command are
// released even when it fails, since cobra skips post-run hooks on error.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.teardown())
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "gentro",
		Short: "Keep a local game library enriched with Steam store metadata",
		Long: `gentro keeps a local catalogue of Steam, Epic and manually added games.

Games are stored in a SQLite database. Descriptions, genres, scores and art
come from the Steam store; playtime comes from your Steam account.
Set STEAM_API_KEY and STEAM_ID (or put them in a .env file) to enable the
account features.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.flagConfig, "config", "", "Config file path (default: "+apppaths.ConfigPath+")")
	root.PersistentFlags().BoolVar(&a.flagNoColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVarP(&a.flagVerbose, "verbose", "v", false, "Log debug output to stderr")

	root.PersistentPreRunE = a.setup
	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return a.teardown()
	}

	root.AddCommand(
		a.newScanCmd(),
		a.newListCmd(),
		a.newShowCmd(),
		a.newAddCmd(),
		a.newRemoveCmd(),
		a.newFetchOwnedCmd(),
		a.newFetchMetadataCmd(),
		a.newUpdatePlaytimeCmd(),
		a.newResetMetadataCmd(),
		a.newClearMetadataCmd(),
		a.newPostersCmd(),
		a.newTestCredentialsCmd(),
		a.newStatusCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	a.out = cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()
	if a.flagNoColor {
		color.NoColor = true
	}

	path := a.flagConfig
	if path == "" {
		path = config.DefaultConfigPath()
	}
	manager, err := config.NewManager(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.settings = manager.Get()

	logCfg := a.settings.Log
	if a.flagVerbose {
		logCfg.Level = "debug"
		logCfg.File = ""
	}
	logger, closer := logging.Setup(logCfg)
	a.logCloser = closer

	creds, err := config.LoadCredentials(apppaths.EnvFiles()...)
	if err != nil {
		logger.Warn("failed to load credentials file", "error", err)
	}

	if cmd.Annotations["mutates"] == "true" {
		lock, err := games.AcquireLock(filepath.Join(filepath.Dir(a.settings.Database.Path), lockFile))
		if err != nil {
			return err
		}
		a.lock = lock
	}

	a.svc, err = games.NewGamesService(games.GamesServiceConfig{
		DatabasePath: a.settings.Database.Path,
		Settings:     a.settings,
		Credentials:  creds,
		Logger:       logger,
	})
	if err != nil {
		a.lock.Release()
		a.lock = nil
		return err
	}
	return nil
}

func (a *app) teardown() error {
	var errs []error
	if a.svc != nil {
		errs = append(errs, a.svc.Close())
		a.svc = nil
	}
	if a.lock != nil {
		errs = append(errs, a.lock.Release())
		a.lock = nil
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
		a.logCloser = nil
	}
	return errors.Join(errs...)
}

// ok prints a green success line.
func (a *app) ok(format string, args ...any) {
	fmt.Fprintln(a.out, color.GreenString("✓"), fmt.Sprintf(format, args...))
}

// warn prints a yellow warning line.
func (a *app) warn(format string, args ...any) {
	fmt.Fprintln(a.errOut, color.YellowString("!"), fmt.Sprintf(format, args...))
}

// fail prints a red error line.
func (a *app) fail(format string, args ...any) {
	fmt.Fprintln(a.errOut, color.RedString("✗"), fmt.Sprintf(format, args...))
}

// header prints a cyan section heading.
func (a *app) header(format string, args ...any) {
	fmt.Fprintln(a.out, color.CyanString(fmt.Sprintf(format, args...)))
}

func (a *app) printField(label, value string) {
	fmt.Fprintf(a.out, "  %-14s %s\n", color.CyanString(label+":"), value)
}

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tasklist-cli/internal/config"
	"tasklist-cli/internal/controller"
	"tasklist-cli/internal/format"
	"tasklist-cli/internal/logging"
	"tasklist-cli/internal/remote"
	"tasklist-cli/internal/remote/dial"
	"tasklist-cli/internal/tui"
)

type App struct {
	Store        string
	Format       string
	PrettyJSON   bool
	Selection    string
	RedisPrefix  string
	PollInterval time.Duration

	LogLevel  string
	LogFormat string
	LogFile   string

	// Timeout bounds one-shot commands; watch and serve ignore it.
	Timeout time.Duration

	logger    *slog.Logger
	logCloser io.Closer
}

// startTUI is swapped out by tests.
var startTUI = runTUI

// NewRootCmd builds the command tree. Flag defaults come from the environment
// (and .env) through config.Load.
func NewRootCmd() *cobra.Command {
	cfg, err := config.Load()
	if err != nil {
		// Fall back to built-in defaults; the bad variable is reported when a
		// command runs.
		cfg = &config.Config{Addr: ":7777", Format: "json", Selection: "reselect", RedisPrefix: "tasklist:", PollInterval: 500 * time.Millisecond, LogLevel: "info", LogFormat: "text"}
	}
	return newRootCmd(cfg, err)
}

func newRootCmd(cfg *config.Config, cfgErr error) *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "tasklist",
		Short:        "Projects and their ordered tasks, synced through a shared store",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  tasklist

  # Scriptable commands
  tasklist projects list
  tasklist tasks add "Buy milk" --project Home

  # Share a store over websockets
  tasklist serve --addr :7777
  tasklist --store ws://localhost:7777/ws
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				st, err := app.openStore(cmd.Context())
				if err != nil {
					return writeErr(cmd, err)
				}
				defer st.Close()
				return startTUI(cmd.Context(), app, st)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cfgErr != nil {
			return writeErr(cmd, cfgErr)
		}
		if !format.Valid(app.Format) {
			return writeErr(cmd, fmt.Errorf("unknown format: %s", app.Format))
		}
		if _, err := controller.ParseSelectionPolicy(app.Selection); err != nil {
			return writeErr(cmd, err)
		}
		logFile := app.LogFile
		if logFile == "" && cmd == cmd.Root() {
			// The TUI owns the terminal.
			dir, err := config.DataDir()
			if err != nil {
				return writeErr(cmd, err)
			}
			logFile = filepath.Join(dir, "tasklist.log")
		}
		logger, closer, err := logging.Init(logging.Options{
			Level:  app.LogLevel,
			Format: app.LogFormat,
			File:   logFile,
			Out:    cmd.ErrOrStderr(),
		})
		if err != nil {
			return writeErr(cmd, err)
		}
		app.logger, app.logCloser = logger, closer
		return nil
	}

	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if app.logCloser != nil {
			return app.logCloser.Close()
		}
		return nil
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&app.Store, "store", cfg.Store, "Store URL (memory:, sqlite:///path.db, file:///dir, redis://host:6379/0, ws://host:7777/ws); default: sqlite under the user config dir")
	pf.StringVar(&app.Format, "format", cfg.Format, "Output format (json|edn|text)")
	pf.BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON/EDN output")
	pf.StringVar(&app.Selection, "selection", cfg.Selection, "What to do when the selected project is deleted (reselect|clear|keep)")
	pf.StringVar(&app.RedisPrefix, "redis-prefix", cfg.RedisPrefix, "Key prefix for redis:// stores")
	pf.DurationVar(&app.PollInterval, "poll-interval", cfg.PollInterval, "How often sqlite:// stores check for other writers (negative disables)")
	pf.StringVar(&app.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	pf.StringVar(&app.LogFormat, "log-format", cfg.LogFormat, "Log format (text|json)")
	pf.StringVar(&app.LogFile, "log-file", cfg.LogFile, "Write logs to this file (rotated); the TUI always logs to a file")
	pf.DurationVar(&app.Timeout, "timeout", 15*time.Second, "Timeout for one-shot commands")

	cmd.AddCommand(newProjectsCmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newGetCmd(app))
	cmd.AddCommand(newSetCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newServeCmd(app, cfg.Addr))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

func runTUI(ctx context.Context, app *App, st remote.Store) error {
	policy, _ := controller.ParseSelectionPolicy(app.Selection)
	return tui.Run(ctx, st, tui.Options{Logger: app.log(), Selection: policy})
}

func (app *App) openStore(ctx context.Context) (remote.Store, error) {
	url := app.Store
	if url == "" {
		u, err := config.DefaultStoreURL()
		if err != nil {
			return nil, err
		}
		url = u
	}
	return dial.Open(ctx, url, dial.Options{
		Logger:       app.log(),
		RedisPrefix:  app.RedisPrefix,
		PollInterval: app.PollInterval,
	})
}

func (app *App) log() *slog.Logger {
	if app.logger == nil {
		return slog.Default()
	}
	return app.logger
}

// commandContext bounds a one-shot command by --timeout.
func (app *App) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if app.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, app.Timeout)
}

// writeOut wraps v in a {"data": ...} envelope for json/edn; text renders v as is.
func writeOut(cmd *cobra.Command, app *App, v any) error {
	if app.Format != "text" {
		v = map[string]any{"data": v}
	}
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

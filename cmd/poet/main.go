package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"poet/config"
	"poet/misc"
	"poet/state"
	"poet/tocedit"
)

// initializeAppContext prepares application context before command execution but
// after command line has been parsed
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error

	if cmd.NArg() == 0 {
		// nothing to do, just return
		return ctx, nil
	}

	env := state.EnvFromContext(ctx)

	configFile := cmd.String("config")
	if env.Cfg, err = config.LoadConfiguration(configFile); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if cmd.Bool("debug") {
		if env.Rpt, err = env.Cfg.Reporting.Prepare(); err != nil {
			return ctx, fmt.Errorf("unable to prepare debug reporter: %w", err)
		}
		// save complete processed configuration if external configuration was provided
		if len(configFile) > 0 {
			if data, err := config.Dump(env.Cfg); err == nil {
				env.Rpt.StoreData(fmt.Sprintf("config/%s", filepath.Base(configFile)), data)
			}
		}
	}
	if env.Log, err = env.Cfg.Logging.Prepare(env.Rpt); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("ver", misc.GetVersion()), zap.String("runtime", runtime.Version()), zap.String("hash", misc.GetGitHash()))

	if env.Rpt != nil {
		env.Log.Info("Creating debug report", zap.String("location", env.Rpt.Name()))
	}
	if len(configFile) == 0 && env.Log != nil {
		env.Log.Info("Using defaults (no configuration file)")
	}
	return ctx, nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	}

	if env.Rpt != nil && len(env.Workspace) > 0 && env.Cfg != nil {
		// collections as they are after the command
		dir := env.Cfg.Workspace.Resolve(env.Workspace, env.Cfg.Workspace.CollectionsDir)
		if er := env.Rpt.StoreCopy("collections", dir); er != nil && env.Log != nil {
			env.Log.Warn("Unable to store collections in debug report", zap.Error(er))
		}
		env.Rpt.Store("books.xml", env.Cfg.Workspace.Resolve(env.Workspace, env.Cfg.Workspace.BooksManifest))
	}

	// close logging
	env.RestoreStdLog()

	// log is synced now and result can be used in report if necessary, errors
	// must be reported directly to stderr from now on
	if env.Rpt != nil {
		if er := env.Rpt.Close(); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close debug report: %w", er))
		}
	}
	// reporting is closed now - remove empty panic file if any
	if env.Cfg != nil && len(env.Cfg.Logging.FileLogger.Destination) > 0 {
		debug.SetCrashOutput(nil, debug.CrashOptions{})
		fname := env.Cfg.Logging.PanicLogName()
		if fi, er := os.Stat(fname); er == nil && fi.Size() == 0 {
			if er := os.Remove(fname); er != nil {
				err = multierr.Append(err, fmt.Errorf("unable to remove empty panic log file '%s': %w", fname, er))
			}
		}
	}
	return
}

// Errors are returned from subcommands as is, cli.Exit() is not used.
var errWasHandled bool

// this is called before appContext is destroyed, so we have a chance to
// properly log any error from subcommand
func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {

	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	// error is reported either by exitErrHandler or on exit directly to stderr.
	return err
}

func subcommandNotFoundHandler(ctx context.Context, _ *cli.Command, name string) {
	state.EnvFromContext(ctx).Log.Warn("Unknown command, nothing to do", zap.String("command", name))
}

const selectorHelp = `
NODE, TARGET, REFERENCE:
    node selectors, first matching form wins:
        "orphans"                      - orphaned pages
        "<token>"                      - any node by its token (see "show --details")
        "<book slug>"                  - book
        "<book slug>/<title>[/<title>]" - subbook by titles of subbooks leading to it
        "<file id>"                    - page or ancillary (for example "m00042" or "a00007")
`

// tocCommand adds shared workspace flags to the table of contents command.
func tocCommand(c *cli.Command) *cli.Command {
	c.Flags = append(tocedit.Flags(), c.Flags...)
	c.OnUsageError = usageErrorHandler
	return c
}

func main() {

	// allow graceful shutdown on interrupt.
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	titleFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "use `TITLE` instead of asking for it"}
	}

	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "table of contents editor for CNXML textbook repositories",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ") : " + misc.GetGitHash(),
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		CommandNotFound: subcommandNotFoundHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, DefaultText: "", Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "changes program behavior to help troubleshooting, produces report archive"},
		},
		Commands: []*cli.Command{
			tocCommand(&cli.Command{
				Name:   "show",
				Usage:  "Prints tables of contents of all books and orphaned pages",
				Action: tocedit.Show,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "print snapshot in its wire form (JSON)"},
					&cli.BoolFlag{Name: "details", Usage: "print node tokens and file paths"},
					&cli.StringFlag{Name: "snapshot", Usage: "show snapshot saved in `FILE` (JSON) instead of workspace"},
				},
			}),
			tocCommand(&cli.Command{
				Name:   "filter",
				Usage:  "Switches tree to filter mode and prints revealed nodes",
				Action: tocedit.Filter,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "details", Usage: "print node tokens and file paths"},
				},
				CustomHelpTemplate: fmt.Sprintf(`%s
Filter mode puts file ids into labels and expands the tree up to three levels
from the highest ancestor of every page, collapsed nodes are marked with "+".
`, cli.CommandHelpTemplate),
			}),
			tocCommand(&cli.Command{
				Name:               "move",
				Usage:              "Moves node to the position of target (into target for books and subbooks)",
				Action:             tocedit.Move,
				ArgsUsage:          "NODE TARGET",
				CustomHelpTemplate: cli.CommandHelpTemplate + selectorHelp,
			}),
			tocCommand(&cli.Command{
				Name:               "drop",
				Usage:              "Drags node and drops it onto target, dropping onto orphans removes node from its book",
				Action:             tocedit.Drop,
				ArgsUsage:          "NODE TARGET",
				CustomHelpTemplate: cli.CommandHelpTemplate + selectorHelp,
			}),
			tocCommand(&cli.Command{
				Name:               "remove",
				Usage:              "Removes node from its book, files are kept",
				Action:             tocedit.Remove,
				ArgsUsage:          "NODE",
				CustomHelpTemplate: cli.CommandHelpTemplate + selectorHelp,
			}),
			tocCommand(&cli.Command{
				Name:               "rename",
				Usage:              "Changes title of subbook, page or ancillary",
				Action:             tocedit.Rename,
				Flags:              []cli.Flag{titleFlag()},
				ArgsUsage:          "NODE",
				CustomHelpTemplate: cli.CommandHelpTemplate + selectorHelp,
			}),
			tocCommand(&cli.Command{
				Name:   "add",
				Usage:  "Creates page, subbook or ancillary next to (or inside of) reference node",
				Action: tocedit.Add,
				Flags: []cli.Flag{
					titleFlag(),
					&cli.StringFlag{Name: "slug", Usage: "subbook `SLUG`, derived from title when absent"},
				},
				ArgsUsage: "KIND REFERENCE",
				CustomHelpTemplate: fmt.Sprintf(`%s
KIND:
    one of "page", "subbook" or "ancillary"
%s`, cli.CommandHelpTemplate, selectorHelp),
			}),
			tocCommand(&cli.Command{
				Name:      "apply",
				Usage:     "Sends modification request (JSON, as printed by --dry-run) to the workspace",
				Action:    tocedit.Apply,
				ArgsUsage: "[SOURCE]",
				CustomHelpTemplate: fmt.Sprintf(`%s
SOURCE:
    file with modification request, if absent or "-" - STDIN

Request with empty "workspaceUri" is addressed to the current workspace.
Tokens must be known to the workspace, enable tokens.persist in configuration
to keep them between runs.
`, cli.CommandHelpTemplate),
			}),
			{
				Name:  "dumpconfig",
				Usage: "Dumps either default or actual configuration (YAML)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				OnUsageError: usageErrorHandler,
				Action:       outputConfiguration,
				ArgsUsage:    "DESTINATION",
				CustomHelpTemplate: fmt.Sprintf(`%s

DESTINATION:
    file name to write configuration to, if absent - STDOUT

Produces file with actual "active" configuration values wich is composition of
default values and values specified in configuration file. To see default
configuration embedded into the program use --default flag.
`, cli.CommandHelpTemplate),
			},
		},
	}

	var err error
	// NOTE: os.Exit is called at the end of main to set exit code, make sure
	// there are no other deffered functions after that
	defer func() {
		stop()
		if err != nil {
			// It may happen that log is either not set yet (argument parsing) or already closed,
			// report errors to stderr directly
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = app.Run(ctx, os.Args)
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {

	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	fname := cmd.Args().Get(0)

	var (
		err   error
		data  []byte
		state string
	)

	out := os.Stdout
	if len(fname) > 0 {
		out, err = os.Create(fname)
		if err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer out.Close()
	}

	if cmd.Bool("default") {
		state = "default"
		data, err = config.Prepare()
	} else {
		state = "actual"
		data, err = config.Dump(env.Cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	if len(fname) == 0 {
		fname = "STDOUT"
	}
	env.Log.Info("Outputing configuration", zap.String("state", state), zap.String("file", fname))

	_, err = out.Write(data)
	if err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}

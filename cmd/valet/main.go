// Package main is the entry point for the valet assistant.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/valet/internal/app"
	"github.com/dshills/valet/internal/config"
	"github.com/dshills/valet/internal/plugin"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type rootFlags struct {
	configPath string
	logLevel   string
	debug      bool
	noVoice    bool
}

func main() {
	os.Exit(run())
}

func run() int {
	// A .env alongside the binary can carry collaborator API keys.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	flags := &rootFlags{}
	if err := newRootCommand(flags).ExecuteContext(ctx); err != nil {
		if errors.Is(err, app.ErrQuit) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCommand(flags *rootFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "valet",
		Short: "Valet is a plugin-driven desktop assistant",
		Long: `Valet answers typed and spoken commands through a set of plugins and
falls back to a language model for anything no plugin claims. Run it
bare for a conversation, or use 'ask' for a single command.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAssistant(cmd.Context(), flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to config.toml")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVarP(&flags.debug, "debug", "d", false, "shorthand for --log-level debug")
	pf.BoolVar(&flags.noVoice, "no-voice", false, "skip the speech daemon even when configured")

	root.AddCommand(newAskCommand(flags))
	root.AddCommand(newPluginsCommand(flags))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "valet %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		},
	})

	return root
}

func runAssistant(ctx context.Context, flags *rootFlags) error {
	a, err := buildApp(ctx, flags, app.Options{
		Interactive: term.IsTerminal(int(os.Stdin.Fd())),
		NoVoice:     flags.noVoice,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(ctx)
}

func newAskCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <command...>",
		Short: "Dispatch a single command and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), flags, app.Options{NoVoice: true})
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.Router().Route(cmd.Context(), plugin.Command{
				Text:   strings.Join(args, " "),
				Source: plugin.SourceText,
			})
			fmt.Fprintln(cmd.OutOrStdout(), result.Response)
			return nil
		},
	}
}

func newPluginsCommand(flags *rootFlags) *cobra.Command {
	plugins := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect and toggle plugins",
	}

	plugins.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered plugins and their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context(), flags, app.Options{
				NoVoice:     true,
				Interactive: term.IsTerminal(int(os.Stdout.Fd())),
			})
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.Router().Route(cmd.Context(), plugin.Command{
				Text:   "list plugins",
				Source: plugin.SourceText,
			})
			fmt.Fprintln(cmd.OutOrStdout(), result.Response)
			return nil
		},
	})

	plugins.AddCommand(&cobra.Command{
		Use:   "enable <name>",
		Short: "Enable a plugin and persist the choice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return togglePlugin(cmd, flags, args[0], true)
		},
	})

	plugins.AddCommand(&cobra.Command{
		Use:   "disable <name>",
		Short: "Disable a plugin and persist the choice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return togglePlugin(cmd, flags, args[0], false)
		},
	})

	return plugins
}

func togglePlugin(cmd *cobra.Command, flags *rootFlags, name string, enable bool) error {
	a, err := buildApp(cmd.Context(), flags, app.Options{NoVoice: true})
	if err != nil {
		return err
	}
	defer a.Close()

	verb := "Disabled"
	if enable {
		err = a.Registry().Enable(name)
		verb = "Enabled"
	} else {
		err = a.Registry().Disable(name)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s plugin %q.\n", verb, name)
	return nil
}

// buildApp loads configuration, applies flag overrides, and bootstraps
// the application.
func buildApp(ctx context.Context, flags *rootFlags, opts app.Options) (*app.Application, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.debug {
		cfg.Logging.Level = "debug"
	}

	opts.Config = cfg
	return app.New(ctx, opts)
}

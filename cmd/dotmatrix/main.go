// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

// dotmatrix is a minimal Matrix client for the terminal. It logs in
// through a modal form (password or single sign-on) and then shows the
// text messages of every joined room as they arrive.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/browser"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/dotmatrix-chat/dotmatrix/internal/chat"
	"github.com/dotmatrix-chat/dotmatrix/internal/login"
	"github.com/dotmatrix-chat/dotmatrix/internal/shell"
	"github.com/dotmatrix-chat/dotmatrix/lib/config"
	"github.com/dotmatrix-chat/dotmatrix/lib/process"
	"github.com/dotmatrix-chat/dotmatrix/lib/tui"
	"github.com/dotmatrix-chat/dotmatrix/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

// options holds the parsed command line.
type options struct {
	configPath  string
	homeserver  string
	logOutput   string
	logLevel    string
	showVersion bool
	showHelp    bool
}

func parseFlags(args []string, output io.Writer) (*options, *pflag.FlagSet, error) {
	var opts options
	flagSet := pflag.NewFlagSet("dotmatrix", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.StringVar(&opts.configPath, "config", "", "path to the YAML configuration file (default: $"+config.EnvConfigPath+")")
	flagSet.StringVar(&opts.homeserver, "homeserver", "", "homeserver to pre-fill in the login form")
	flagSet.StringVar(&opts.logOutput, "log-output", "", "write JSON log records to this file")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&opts.showHelp, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.showHelp = true
			return &opts, flagSet, nil
		}
		return nil, nil, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return &opts, flagSet, nil
}

// loadConfig resolves the configuration file and applies flag
// overrides on top of it.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.homeserver != "" {
		cfg.Homeserver = opts.homeserver
	}
	if opts.logOutput != "" {
		cfg.Logging.File = opts.logOutput
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func run(args []string) error {
	opts, flagSet, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	if opts.showHelp {
		printHelp(flagSet)
		return nil
	}
	if opts.showVersion {
		fmt.Println(version.Info())
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	level, _ := config.ParseLevel(cfg.Logging.Level)
	startupLogger := newStartupLogger(level)

	var filter map[string]any
	if cfg.Sync.FilterFile != "" {
		filter, err = config.LoadSyncFilter(cfg.Sync.FilterFile)
		if err != nil {
			return err
		}
		startupLogger.Debug("using sync filter file", "path", cfg.Sync.FilterFile)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("stdout is not a terminal")
	}

	tuiHandler := shell.NewLogHandler(max(level, slog.LevelWarn))
	var handler slog.Handler = tuiHandler
	if cfg.Logging.File != "" {
		fileHandler, closeFile, err := openFileLogHandler(cfg.Logging.File, level)
		if err != nil {
			return fmt.Errorf("opening log file %s: %w", cfg.Logging.File, err)
		}
		defer closeFile()
		handler = fanoutHandler{tuiHandler, fileHandler}
	}
	logger := slog.New(handler)

	// The browser launcher must not write over the UI.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	theme := tui.ThemeFor(string(cfg.UI.Theme))
	controller := login.NewController(login.Config{
		Logger:            logger,
		DeviceDisplayName: cfg.Login.DeviceDisplayName,
		SSOProviders:      cfg.Login.SSOProviders,
		SSOListenAddress:  cfg.Login.SSOListenAddress,
		WellKnown:         cfg.Login.WellKnown,
	})
	defer controller.Close()

	model := shell.New(shell.Config{
		Theme:      theme,
		Login:      controller,
		Homeserver: cfg.Homeserver,
		Chat: chat.Config{
			SyncTimeout:    cfg.Sync.Timeout,
			Filter:         filter,
			MaxAttempts:    cfg.Sync.MaxAttempts,
			InitialBackoff: cfg.Sync.InitialBackoff,
			MaxBackoff:     cfg.Sync.MaxBackoff,
		},
		FrameInterval: cfg.UI.FrameInterval,
		Logger:        logger,
	})

	logger.Info("starting", "version", version.Version, "homeserver", cfg.Homeserver)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	tuiHandler.SetProgram(program)

	final, err := program.Run()
	if err != nil {
		return err
	}
	if finalModel, ok := final.(shell.Model); ok && finalModel.Err() != nil {
		return finalModel.Err()
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `dotmatrix: a minimal Matrix client for the terminal.

Log in with a password or single sign-on, then watch the text messages
of every room you have joined. Press ctrl+c to quit.

Usage:
  dotmatrix [flags]

Examples:
  # Log in to matrix.org
  dotmatrix

  # Pre-fill another homeserver and keep a debug log
  dotmatrix --homeserver example.org --log-output /tmp/dotmatrix.jsonl --log-level debug

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}

// Command axonctl resolves build artifacts, translates paths between the
// build host and the flashing host, and launches tools against them.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tccjustin/axon/internal/config"
	"github.com/tccjustin/axon/internal/logging"
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// app is the state shared by all subcommands once the root has initialised.
type app struct {
	configPath string
	verbose    bool
	workspace  string
	progress   bool

	cfg    *config.Config
	logger *zap.Logger

	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "axonctl",
		Short:         "Resolve, translate and launch build artifacts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default $AXON_CONFIG or ~/.config/axon/config.json)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().StringVarP(&a.workspace, "workspace", "w", "", "workspace root (default current directory)")
	root.PersistentFlags().BoolVar(&a.progress, "progress", false, "show a progress view while waiting")

	root.AddCommand(
		newResolveCmd(a),
		newTranslateCmd(a),
		newRulesCmd(a),
		newLaunchCmd(a),
		newRunCmd(a),
		newCacheCmd(a),
	)
	return root
}

func (a *app) init() error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.NewLoader().LoadFile(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	if a.workspace == "" {
		if a.workspace, err = os.Getwd(); err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	a.cfg = cfg
	a.logger = logger.With(zap.String("workspace", a.workspace))
	return nil
}

func main() {
	err := newRootCmd(os.Stdout, os.Stderr).Execute()
	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.msg != "" {
			fmt.Fprintln(os.Stderr, exit.msg)
		}
		os.Exit(exit.code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

package main

import (
	"fmt"
	"os"

	"github.com/GriffinCanCode/freezeguard/internal/infrastructure/config"
	"github.com/GriffinCanCode/freezeguard/internal/infrastructure/logging"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	debug      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "freezeguard",
		Short: "Detect and recover frozen web interfaces",
		Long: `freezeguard inspects HTML documents for leftover modal overlays and
blocked bodies, replays freeze scenarios against the guard, and runs a
companion server that supervises a live page.

Examples:
  freezeguard sweep page.html --html      # clean a captured page
  freezeguard replay page.html stuck.js   # run a scenario deterministically
  freezeguard serve page.html             # start the companion server`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML or TOML config file overlaid on the environment")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable guard debug mode")

	root.AddCommand(
		newSweepCmd(opts),
		newReplayCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// load resolves configuration and the logger for a command.
func (o *globalOptions) load() (*config.Config, *logging.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}

	if o.debug {
		cfg.Guard.DebugMode = true
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, logging.NewForMode(cfg.Logging.Level, cfg.Guard.DebugMode), nil
}

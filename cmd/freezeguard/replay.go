package main

import (
	"fmt"
	"os"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/guard"
	"github.com/GriffinCanCode/freezeguard/internal/scheduler"
	"github.com/GriffinCanCode/freezeguard/internal/script"
	"github.com/spf13/cobra"
)

type replayOptions struct {
	timeout time.Duration
	quiet   bool
}

// replayReport is printed by the replay command.
type replayReport struct {
	File     string         `json:"file"`
	Scenario string         `json:"scenario"`
	Result   *script.Result `json:"result"`
	Final    guard.Snapshot `json:"final"`
}

func newReplayCmd(global *globalOptions) *cobra.Command {
	opts := &replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay <file.html> <scenario.js>",
		Short: "Run a freeze scenario against a page on a virtual clock",
		Long: `Loads the page, starts a guard on a virtual clock and runs the scenario
script. Scenarios drive the guard through the "guard" global and inspect
the page through "document"; guard.advance(ms) moves the clock.

Example scenario:
  const m = guard.modal('checkout', '[role=dialog]');
  m.open(); guard.advance(0);
  for (let i = 0; i < 4; i++) guard.forceFallback();
  guard.advance(3000);
  document.reloads();`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, global, opts, args[0], args[1])
		},
	}

	cmd.Flags().DurationVar(&opts.timeout, "timeout", script.DefaultConfig().Timeout, "wall-clock limit for the scenario")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "omit events and document changes from the report")
	return cmd
}

func runReplay(cmd *cobra.Command, global *globalOptions, opts *replayOptions, pagePath, scenarioPath string) error {
	cfg, logger, err := global.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	doc, err := loadDocument(pagePath)
	if err != nil {
		return err
	}
	source, err := os.ReadFile(scenarioPath)
	if err != nil {
		return err
	}

	sched := scheduler.NewManual(time.Now())
	doc.SetClock(sched.Now)

	g, err := guard.New(guard.Options{
		Config:    cfg.Guard,
		Adapter:   doc,
		Scheduler: sched,
		Logger:    logger.Logger,
	})
	if err != nil {
		return err
	}
	defer g.Close()
	if err := g.Start(); err != nil {
		return err
	}

	scfg := script.DefaultConfig()
	scfg.Timeout = opts.timeout
	rt, err := script.New(scfg, g, doc, logger.Component("script"))
	if err != nil {
		return err
	}
	defer rt.Close()

	res, runErr := rt.Run(cmd.Context(), string(source))
	if opts.quiet {
		res.Events, res.Changes = nil, nil
	}

	report := replayReport{
		File:     pagePath,
		Scenario: scenarioPath,
		Result:   res,
		Final:    g.Snapshot(),
	}
	if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("%s: %w", scenarioPath, runErr)
	}
	return nil
}

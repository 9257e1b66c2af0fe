package main

import (
	"fmt"
	"os"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/dom"
	"github.com/GriffinCanCode/freezeguard/internal/guard"
	"github.com/GriffinCanCode/freezeguard/internal/guard/orphan"
	"github.com/GriffinCanCode/freezeguard/internal/guard/sweeper"
	"github.com/GriffinCanCode/freezeguard/internal/scheduler"
	"github.com/spf13/cobra"
)

type sweepOptions struct {
	printHTML bool
	output    string
	all       bool
}

// sweepReport is printed by the sweep command.
type sweepReport struct {
	File    string         `json:"file"`
	Before  orphan.Report  `json:"before"`
	Result  sweeper.Result `json:"result"`
	Changes []dom.Change   `json:"changes"`
	After   orphan.Report  `json:"after"`
	HTML    string         `json:"html,omitempty"`
}

func newSweepCmd(global *globalOptions) *cobra.Command {
	opts := &sweepOptions{}

	cmd := &cobra.Command{
		Use:   "sweep <file.html>",
		Short: "Remove leftover overlays and blocking styles from a captured page",
		Long: `Runs the orphan check and one cleanup pass over an HTML file and prints
what changed. Overlays inside an element marked data-state="open" are kept
unless --all is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.printHTML, "html", false, "include the cleaned document in the report")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the cleaned document to this file")
	cmd.Flags().BoolVar(&opts.all, "all", false, "ignore open markers")
	return cmd
}

func runSweep(cmd *cobra.Command, global *globalOptions, opts *sweepOptions, path string) error {
	cfg, logger, err := global.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	doc, err := loadDocument(path)
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

	report := sweepReport{File: path}
	report.Before, _ = g.Detector().Inspect()

	start := len(doc.Journal())
	if opts.all {
		report.Result = g.Sweeper().SweepAll()
	} else {
		report.Result = g.Sweeper().Sweep()
	}
	report.Changes = doc.Journal()[start:]
	report.After, _ = g.Detector().Inspect()

	if opts.printHTML || opts.output != "" {
		out, err := doc.HTML()
		if err != nil {
			return err
		}
		if opts.printHTML {
			report.HTML = out
		}
		if opts.output != "" {
			if err := os.WriteFile(opts.output, []byte(out), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", opts.output, err)
			}
		}
	}
	return writeJSON(cmd.OutOrStdout(), report)
}

package main

import (
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/freezeguard/internal/dom"
	"github.com/GriffinCanCode/freezeguard/internal/guard"
	"github.com/GriffinCanCode/freezeguard/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type serveOptions struct {
	host string
	port string
}

func newServeCmd(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve [file.html]",
		Short: "Run the companion server around a live guard",
		Long: `Starts a guard on the wall clock and serves its API:

  GET  /health /stats /modals /requests /metrics
  POST /activity /renders /freeze /fallback /sweep
  GET  /ws   live event stream (?kinds=soft_recovery,hard_recovery)

Without a file the guard runs with no document, so only request
tracking, render monitoring and recovery escalation are active.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, global, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "listen host (overrides HOST)")
	cmd.Flags().StringVarP(&opts.port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func runServe(cmd *cobra.Command, global *globalOptions, opts *serveOptions, args []string) error {
	cfg, logger, err := global.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != "" {
		cfg.Server.Port = opts.port
	}

	var adapter dom.Adapter = dom.Unavailable{}
	if len(args) == 1 {
		doc, err := loadDocument(args[0])
		if err != nil {
			return err
		}
		adapter = doc
		logger.Info("guarding document", zap.String("file", args[0]))
	}

	g, err := guard.New(guard.Options{
		Config:  cfg.Guard,
		Adapter: adapter,
		Logger:  logger.Logger,
	})
	if err != nil {
		return err
	}
	defer g.Close()
	if err := g.Start(); err != nil {
		return err
	}

	srv := server.NewServer(cfg, g, logger.Logger)
	defer srv.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

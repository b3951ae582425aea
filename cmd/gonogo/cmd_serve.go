package main

import (
	"fmt"

	"github.com/nvandessel/gonogo/internal/config"
	"github.com/nvandessel/gonogo/internal/ratelimit"
	"github.com/nvandessel/gonogo/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the trial-data HTTP API",
		Long: `Start the HTTP server the experiment client posts trials to.

Endpoints:
  POST /api/trialData        Store one trial, returns {"success":true,"id":N}
  GET  /api/trialData        List trials (?userId=&sessionId=&source=&limit=)
  GET  /api/trialData/{id}   Fetch one trial
  GET  /healthz              Liveness check

With --static, the built client is served from that directory and unknown
paths fall back to its index.html. The PORT environment variable sets the
listen port when server.addr is not configured.

Examples:
  gonogo serve
  gonogo serve --addr :8080 --static ./client/dist
  gonogo serve --static ./client/dist --open`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
			}
			if cmd.Flags().Changed("static") {
				cfg.Server.StaticDir, _ = cmd.Flags().GetString("static")
			}

			ts, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer ts.Close()

			srv := server.NewServer(ts, serverConfig(cmd, cfg))

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if open, _ := cmd.Flags().GetBool("open"); open {
				go func() {
					addr, ok := waitForAddr(ctx, srv.Addr)
					if !ok {
						return
					}
					if err := openBrowser("http://" + addr + "/"); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not open browser: %v\n", err)
					}
				}()
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Trial-data server starting on %s\n", cfg.Server.Addr)
			fmt.Fprintf(cmd.OutOrStdout(), "Press Ctrl-C to stop.\n")
			if err := srv.ListenAndServe(ctx); err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default: server.addr)")
	cmd.Flags().String("static", "", "Directory of client files to serve")
	cmd.Flags().Bool("open", false, "Open the client in the default browser once listening")
	return cmd
}

// serverConfig maps settings onto the HTTP server. A non-positive rate
// disables per-client limiting.
func serverConfig(cmd *cobra.Command, cfg *config.GonogoConfig) server.Config {
	sc := server.Config{
		Addr:      cfg.Server.Addr,
		StaticDir: cfg.Server.StaticDir,
		Logger:    newLogger(cmd, cfg),
	}
	if cfg.Server.RateLimit > 0 {
		sc.Limiter = ratelimit.NewLimiter(cfg.Server.RateLimit, cfg.Server.Burst)
	}
	return sc
}

package main

import (
	"fmt"

	"github.com/nvandessel/gonogo/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run an MCP server over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout so AI tools can run
simulations, query trials, and manage backups.

Tools: gonogo_simulate, gonogo_batch, gonogo_trials, gonogo_ddm,
gonogo_export, gonogo_backup, gonogo_restore.
Resources: gonogo://trials/summary, gonogo://config.

Logs go to stderr; tool calls are audited to <data_dir>/audit.jsonl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			srv, err := mcp.NewServer(&mcp.Config{
				Name:     "gonogo",
				Version:  version,
				DataDir:  cfg.DataDir,
				Settings: cfg,
				Logger:   newLogger(cmd, cfg),
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			return srv.Run(cmd.Context())
		},
	}
}

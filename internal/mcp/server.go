package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/gonogo/internal/config"
	"github.com/nvandessel/gonogo/internal/logging"
	"github.com/nvandessel/gonogo/internal/pathutil"
	"github.com/nvandessel/gonogo/internal/ratelimit"
	"github.com/nvandessel/gonogo/internal/store"
)

// Server wraps the MCP SDK server and exposes gonogo simulations and trial
// data as tools.
type Server struct {
	server       *sdk.Server
	store        store.TrialStore
	ownsStore    bool
	dataDir      string
	cfg          *config.GonogoConfig
	toolLimiters ratelimit.ToolLimiters
	audit        *AuditLogger
	logger       *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "gonogo")
	Version string // Server version
	DataDir string // Data directory; defaults to ~/.gonogo

	// Settings defaults to config.Default().
	Settings *config.GonogoConfig

	// Store is used as is when set and is not closed by the server.
	// Otherwise a SQLite store is opened in DataDir.
	Store store.TrialStore

	Logger *slog.Logger
}

// NewServer creates a new MCP server with gonogo tools.
func NewServer(cfg *Config) (*Server, error) {
	dataDir, err := store.ResolveDataDir(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}

	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	ts := cfg.Store
	owns := false
	if ts == nil {
		sqlStore, err := store.NewSQLiteTrialStore(dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open trial store: %w", err)
		}
		ts = sqlStore
		owns = true
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server:       mcpServer,
		store:        ts,
		ownsStore:    owns,
		dataDir:      dataDir,
		cfg:          settings,
		toolLimiters: ratelimit.NewToolLimiters(),
		audit:        NewAuditLogger(dataDir),
		logger:       logging.OrDefault(cfg.Logger),
	}

	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server starting", "data_dir", pathutil.RedactPath(s.dataDir))
	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close releases the audit log and, when the server opened it, the store.
func (s *Server) Close() error {
	s.audit.Close()
	if s.ownsStore {
		s.ownsStore = false
		return s.store.Close()
	}
	return nil
}

// backupDir is where backups are written and read from.
func (s *Server) backupDir() string {
	if s.cfg.Backup.Dir != "" {
		return s.cfg.Backup.Dir
	}
	return filepath.Join(s.dataDir, pathutil.BackupsDir)
}

// exportDir is where tool-written export files go.
func (s *Server) exportDir() string {
	return filepath.Join(s.dataDir, pathutil.ExportsDir)
}

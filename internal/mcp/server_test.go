package mcp

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/gonogo/internal/store"
)

// isolateHome sets HOME to a temp directory to avoid touching real ~/.gonogo/
func isolateHome(t *testing.T, tmpDir string) {
	t.Helper()
	tmpHome := filepath.Join(tmpDir, "home")
	if err := os.MkdirAll(tmpHome, 0755); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", tmpHome)
}

func TestNewServer(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	dataDir := filepath.Join(tmpDir, "data")

	server, err := NewServer(&Config{
		Name:    "test-server",
		Version: "v1.0.0",
		DataDir: dataDir,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.store == nil {
		t.Error("Server.store is nil")
	}
	if !server.ownsStore {
		t.Error("server should own the store it opened")
	}
	if server.dataDir != dataDir {
		t.Errorf("Server.dataDir = %q, want %q", server.dataDir, dataDir)
	}
	if _, err := os.Stat(filepath.Join(dataDir, store.DBFileName)); err != nil {
		t.Errorf("database not created: %v", err)
	}
	if server.cfg == nil || server.cfg.Agent.LearningRate != 0.1 {
		t.Errorf("settings not defaulted: %+v", server.cfg)
	}
}

func TestServer_CloseLeavesInjectedStoreOpen(t *testing.T) {
	s, ts := newTestServer(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := ts.CountTrials(context.Background(), store.Filter{}); err != nil {
		t.Errorf("injected store unusable after Close(): %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestServer_Dirs(t *testing.T) {
	s, _ := newTestServer(t)
	if got, want := s.backupDir(), filepath.Join(s.dataDir, "backups"); got != want {
		t.Errorf("backupDir() = %q, want %q", got, want)
	}
	if got, want := s.exportDir(), filepath.Join(s.dataDir, "exports"); got != want {
		t.Errorf("exportDir() = %q, want %q", got, want)
	}

	custom := t.TempDir()
	s.cfg.Backup.Dir = custom
	if got := s.backupDir(); got != custom {
		t.Errorf("backupDir() = %q, want configured %q", got, custom)
	}
}

func TestTrialsSummaryResource(t *testing.T) {
	s, ts := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleTrialsSummaryResource(ctx, nil)
	if err != nil {
		t.Fatalf("handleTrialsSummaryResource() error = %v", err)
	}
	if text := res.Contents[0].Text; !strings.Contains(text, "No trials yet") {
		t.Errorf("empty summary = %q, want hint", text)
	}

	addHumanTrials(t, ts, "alice", 2)
	res, err = s.handleTrialsSummaryResource(ctx, nil)
	if err != nil {
		t.Fatalf("handleTrialsSummaryResource() error = %v", err)
	}
	text := res.Contents[0].Text
	for _, want := range []string{"| human | 2 |", "| agent | 0 |", "| total | 2 |"} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
	if res.Contents[0].MIMEType != "text/markdown" {
		t.Errorf("MIMEType = %q", res.Contents[0].MIMEType)
	}
}

func TestConfigResource(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleConfigResource(context.Background(), nil)
	if err != nil {
		t.Fatalf("handleConfigResource() error = %v", err)
	}
	text := res.Contents[0].Text
	for _, want := range []string{"learning_rate: 0.1", "trials_per_level: 200"} {
		if !strings.Contains(text, want) {
			t.Errorf("config missing %q:\n%s", want, text)
		}
	}
}

func TestServer_ClientSession(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverTransport, clientTransport := sdk.NewInMemoryTransports()
	if _, err := s.server.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server Connect() error = %v", err)
	}
	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client Connect() error = %v", err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, &sdk.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{
		"gonogo_backup", "gonogo_batch", "gonogo_ddm", "gonogo_export",
		"gonogo_restore", "gonogo_simulate", "gonogo_trials",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("tools = %v, want %v", names, want)
	}

	result, err := session.CallTool(ctx, &sdk.CallToolParams{
		Name:      "gonogo_trials",
		Arguments: map[string]any{"limit": 5},
	})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if result.IsError {
		t.Errorf("gonogo_trials returned a tool error: %+v", result.Content)
	}

	rr, err := session.ReadResource(ctx, &sdk.ReadResourceParams{URI: "gonogo://trials/summary"})
	if err != nil {
		t.Fatalf("ReadResource() error = %v", err)
	}
	if len(rr.Contents) != 1 || !strings.Contains(rr.Contents[0].Text, "Stored Trials") {
		t.Errorf("resource contents = %+v", rr.Contents)
	}
}

package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/gonogo/internal/backup"
	"github.com/nvandessel/gonogo/internal/constants"
	"github.com/nvandessel/gonogo/internal/ddm"
	"github.com/nvandessel/gonogo/internal/export"
	"github.com/nvandessel/gonogo/internal/pathutil"
	"github.com/nvandessel/gonogo/internal/ratelimit"
	"github.com/nvandessel/gonogo/internal/simulation"
	"github.com/nvandessel/gonogo/internal/store"
	"github.com/nvandessel/gonogo/internal/task"
	"gopkg.in/yaml.v3"
)

// Upper bounds on tool-driven work.
const (
	maxBatchSubjects   = 100
	maxDDMSubjects     = 16
	maxTrialsPerLevel  = 20000
	defaultTrialsLimit = 100
	maxTrialsLimit     = 1000
)

// registerTools registers all gonogo MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gonogo_simulate",
		Description: "Run one simulated subject through the knock go/no-go task and summarize its choices",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gonogo_batch",
		Description: "Run many independently seeded subjects in parallel and pool their accuracy and go rates",
	}, s.handleBatch)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gonogo_trials",
		Description: "List stored trials, filtered by participant, session or source",
	}, s.handleTrials)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gonogo_ddm",
		Description: "Simulate a stimulus-coded drift-diffusion dataset and summarize accuracy and RT quantiles per condition",
	}, s.handleDDM)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gonogo_export",
		Description: "Export stored trials to an Arrow IPC or JSONL file in the exports directory",
	}, s.handleExport)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gonogo_backup",
		Description: "Write every session and trial to a compressed backup file and apply backup retention",
	}, s.handleBackup)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gonogo_restore",
		Description: "Restore sessions and trials from a backup file (merge or replace)",
	}, s.handleRestore)
}

// registerResources registers read-only MCP resources.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         "gonogo://trials/summary",
		Name:        "gonogo-trials-summary",
		Description: "Counts of stored trials and sessions by source.",
		MIMEType:    "text/markdown",
	}, s.handleTrialsSummaryResource)

	s.server.AddResource(&sdk.Resource{
		URI:         "gonogo://config",
		Name:        "gonogo-config",
		Description: "The effective gonogo configuration.",
		MIMEType:    "application/yaml",
	}, s.handleConfigResource)
}

// handleSimulate implements the gonogo_simulate tool.
func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("gonogo_simulate", start, retErr, sanitizeToolParams(map[string]any{
			"seed": args.Seed, "per_stimulus": args.PerStimulus, "persist": args.Persist,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gonogo_simulate"); err != nil {
		return nil, SimulateOutput{}, err
	}

	cfg := s.cfg.Agent
	overrideFloat(&cfg.LearningRate, args.LearningRate)
	overrideFloat(&cfg.InverseTemperature, args.InverseTemperature)
	overrideFloat(&cfg.ActionBias, args.ActionBias)
	overrideFloat(&cfg.PavlovianBias, args.PavlovianBias)
	if err := cfg.Validate(); err != nil {
		return nil, SimulateOutput{}, fmt.Errorf("invalid agent parameters: %w", err)
	}

	seed := args.Seed
	if seed == 0 {
		seed = s.cfg.Simulation.Seed
	}

	runner := s.newRunner(args.PerStimulus, args.Persist)
	res, err := runner.RunTask(ctx, simulation.SubjectAt(0, seed), cfg, s.cfg.Task.Design())
	if err != nil {
		return nil, SimulateOutput{}, fmt.Errorf("simulation failed: %w", err)
	}

	sum := simulation.Summarize([]simulation.SessionResult{res})
	return nil, SimulateOutput{
		SessionID:   res.SessionID,
		UserID:      res.Subject.ID,
		Seed:        seed,
		Trials:      len(res.Steps),
		Accuracy:    res.Accuracy(),
		FinalScore:  res.FinalScore,
		FinalValues: res.FinalValues[:],
		GoRate:      stimulusRates(sum.GoRate),
		BlockAcc:    sum.BlockAcc,
		Persisted:   args.Persist,
		Message: fmt.Sprintf("Subject %s (seed %d): %d trials, accuracy %.3f, score %d",
			res.Subject.ID, seed, len(res.Steps), res.Accuracy(), res.FinalScore),
	}, nil
}

// handleBatch implements the gonogo_batch tool.
func (s *Server) handleBatch(ctx context.Context, req *sdk.CallToolRequest, args BatchInput) (_ *sdk.CallToolResult, _ BatchOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("gonogo_batch", start, retErr, sanitizeToolParams(map[string]any{
			"subjects": args.Subjects, "seed": args.Seed, "workers": args.Workers,
			"per_stimulus": args.PerStimulus, "persist": args.Persist,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gonogo_batch"); err != nil {
		return nil, BatchOutput{}, err
	}

	subjects := args.Subjects
	if subjects == 0 {
		subjects = s.cfg.Simulation.Subjects
	}
	if subjects < 1 || subjects > maxBatchSubjects {
		return nil, BatchOutput{}, fmt.Errorf("subjects must be between 1 and %d, got %d", maxBatchSubjects, subjects)
	}
	seed := args.Seed
	if seed == 0 {
		seed = s.cfg.Simulation.Seed
	}
	workers := args.Workers
	if workers == 0 {
		workers = s.cfg.Simulation.Workers
	}

	runner := s.newRunner(args.PerStimulus, args.Persist)
	results, err := runner.RunBatch(ctx, simulation.BatchConfig{
		Subjects: subjects,
		Seed:     seed,
		Workers:  workers,
		Agent:    s.cfg.Agent,
		Design:   s.cfg.Task.Design(),
	})
	if err != nil {
		return nil, BatchOutput{}, fmt.Errorf("batch failed: %w", err)
	}

	sum := simulation.Summarize(results)
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.SessionID
	}
	return nil, BatchOutput{
		Subjects:     sum.Subjects,
		Trials:       sum.Trials,
		MeanAccuracy: sum.MeanAccuracy,
		MeanScore:    sum.MeanScore,
		GoRate:       stimulusRates(sum.GoRate),
		BlockAcc:     sum.BlockAcc,
		SessionIDs:   ids,
		Message: fmt.Sprintf("%d subjects, %d trials: mean accuracy %.3f, mean score %.1f",
			sum.Subjects, sum.Trials, sum.MeanAccuracy, sum.MeanScore),
	}, nil
}

// handleTrials implements the gonogo_trials tool.
func (s *Server) handleTrials(ctx context.Context, req *sdk.CallToolRequest, args TrialsInput) (_ *sdk.CallToolResult, _ TrialsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("gonogo_trials", start, retErr, sanitizeToolParams(map[string]any{
			"user_id": args.UserID, "session_id": args.SessionID, "source": args.Source, "limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gonogo_trials"); err != nil {
		return nil, TrialsOutput{}, err
	}

	filter, err := trialFilter(args.UserID, args.SessionID, args.Source)
	if err != nil {
		return nil, TrialsOutput{}, err
	}
	switch {
	case args.Limit < 0 || args.Limit > maxTrialsLimit:
		return nil, TrialsOutput{}, fmt.Errorf("limit must be between 0 and %d, got %d", maxTrialsLimit, args.Limit)
	case args.Limit == 0:
		filter.Limit = defaultTrialsLimit
	default:
		filter.Limit = args.Limit
	}

	total, err := s.store.CountTrials(ctx, filter)
	if err != nil {
		return nil, TrialsOutput{}, fmt.Errorf("failed to count trials: %w", err)
	}
	trials, err := s.store.ListTrials(ctx, filter)
	if err != nil {
		return nil, TrialsOutput{}, fmt.Errorf("failed to list trials: %w", err)
	}

	items := make([]TrialItem, 0, len(trials))
	for _, t := range trials {
		items = append(items, TrialItem{
			ID:           t.ID,
			UserID:       t.UserID,
			SessionID:    t.SessionID,
			Source:       t.Source.String(),
			TrialNumber:  t.TrialNumber,
			Block:        t.Block,
			Stimulus:     t.Stimulus,
			ReactionTime: t.ReactionTime,
			Correct:      t.Correct,
			ScoreChange:  t.ScoreChange,
			NewScore:     t.NewScore,
			Action:       t.Action,
			PGo:          t.PGo,
			Timestamp:    t.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return nil, TrialsOutput{Trials: items, Count: len(items), Total: total}, nil
}

// handleDDM implements the gonogo_ddm tool.
func (s *Server) handleDDM(ctx context.Context, req *sdk.CallToolRequest, args DDMInput) (_ *sdk.CallToolResult, _ DDMOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("gonogo_ddm", start, retErr, sanitizeToolParams(map[string]any{
			"subjects": args.Subjects, "trials_per_level": args.TrialsPerLevel, "seed": args.Seed,
			"go_nogo": args.GoNoGo, "export_path": args.ExportPath,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gonogo_ddm"); err != nil {
		return nil, DDMOutput{}, err
	}

	simCfg := s.cfg.DDM.SimulateConfig()
	if args.Subjects != 0 {
		simCfg.Subjects = args.Subjects
	}
	if args.TrialsPerLevel != 0 {
		simCfg.TrialsPerLevel = args.TrialsPerLevel
	}
	simCfg.GoNoGo = simCfg.GoNoGo || args.GoNoGo
	if simCfg.Subjects < 1 || simCfg.Subjects > maxDDMSubjects {
		return nil, DDMOutput{}, fmt.Errorf("subjects must be between 1 and %d, got %d", maxDDMSubjects, simCfg.Subjects)
	}
	if simCfg.TrialsPerLevel < 1 || simCfg.TrialsPerLevel > maxTrialsPerLevel {
		return nil, DDMOutput{}, fmt.Errorf("trials_per_level must be between 1 and %d, got %d", maxTrialsPerLevel, simCfg.TrialsPerLevel)
	}

	q := args.Quantiles
	if len(q) == 0 {
		q = s.cfg.DDM.Quantiles
	}
	if err := ddm.ValidateQuantiles(q); err != nil {
		return nil, DDMOutput{}, fmt.Errorf("invalid quantiles: %w", err)
	}

	var exportPath string
	if args.ExportPath != "" {
		p, err := pathutil.InDir(s.exportDir(), args.ExportPath)
		if err != nil {
			return nil, DDMOutput{}, fmt.Errorf("export path rejected: %w", err)
		}
		exportPath = p
	}

	seed := args.Seed
	if seed == 0 {
		seed = s.cfg.DDM.Seed
	}
	trials, err := ddm.Simulate(ctx, ddm.SeededEuler(seed), simCfg)
	if err != nil {
		return nil, DDMOutput{}, fmt.Errorf("ddm simulation failed: %w", err)
	}

	groups := ddm.ByCondition(trials)
	conds := make([]ConditionSummary, 0, len(groups))
	for _, id := range ddm.SortedKeys(groups) {
		sum, err := ddm.Summarize(groups[id], q)
		if err != nil {
			return nil, DDMOutput{}, fmt.Errorf("condition %d: %w", id, err)
		}
		conds = append(conds, conditionSummary(id, sum))
	}

	if exportPath != "" {
		if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
			return nil, DDMOutput{}, fmt.Errorf("failed to create export directory: %w", err)
		}
		if err := export.WriteDDMFile(exportPath, trials); err != nil {
			return nil, DDMOutput{}, fmt.Errorf("failed to write ddm table: %w", err)
		}
	}

	msg := fmt.Sprintf("Simulated %d trials for %d subjects across %d conditions", len(trials), simCfg.Subjects, len(conds))
	if exportPath != "" {
		msg += " → " + exportPath
	}
	return nil, DDMOutput{
		Trials:     len(trials),
		Quantiles:  append([]float64(nil), q...),
		Conditions: conds,
		ExportPath: exportPath,
		Message:    msg,
	}, nil
}

// handleExport implements the gonogo_export tool.
func (s *Server) handleExport(ctx context.Context, req *sdk.CallToolRequest, args ExportInput) (_ *sdk.CallToolResult, _ ExportOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("gonogo_export", start, retErr, sanitizeToolParams(map[string]any{
			"output_path": args.OutputPath, "format": args.Format,
			"user_id": args.UserID, "session_id": args.SessionID, "source": args.Source,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gonogo_export"); err != nil {
		return nil, ExportOutput{}, err
	}

	if args.OutputPath == "" {
		return nil, ExportOutput{}, fmt.Errorf("'output_path' parameter is required")
	}
	format := strings.ToLower(args.Format)
	if format == "" {
		format = "arrow"
	}
	if format != "arrow" && format != "jsonl" {
		return nil, ExportOutput{}, fmt.Errorf("unsupported format %q (want arrow or jsonl)", args.Format)
	}
	path, err := pathutil.InDir(s.exportDir(), args.OutputPath)
	if err != nil {
		return nil, ExportOutput{}, fmt.Errorf("export path rejected: %w", err)
	}
	filter, err := trialFilter(args.UserID, args.SessionID, args.Source)
	if err != nil {
		return nil, ExportOutput{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, ExportOutput{}, fmt.Errorf("failed to create export directory: %w", err)
	}

	var n int
	switch format {
	case "jsonl":
		n, err = store.ExportJSONL(ctx, s.store, filter, path)
	default:
		var trials []store.TrialRecord
		trials, err = s.store.ListTrials(ctx, filter)
		if err == nil {
			n = len(trials)
			err = export.WriteTrialsFile(path, trials)
		}
	}
	if err != nil {
		return nil, ExportOutput{}, fmt.Errorf("export failed: %w", err)
	}

	return nil, ExportOutput{
		Path:    path,
		Format:  format,
		Count:   n,
		Message: fmt.Sprintf("Exported %d trials (%s) → %s", n, format, path),
	}, nil
}

// handleBackup implements the gonogo_backup tool.
func (s *Server) handleBackup(ctx context.Context, req *sdk.CallToolRequest, args BackupInput) (_ *sdk.CallToolResult, _ BackupOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("gonogo_backup", start, retErr, sanitizeToolParams(map[string]any{
			"output_path": args.OutputPath,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gonogo_backup"); err != nil {
		return nil, BackupOutput{}, err
	}

	dir := s.backupDir()
	outputPath := backup.GenerateBackupPath(dir)
	if args.OutputPath != "" {
		p, err := pathutil.InDir(dir, args.OutputPath)
		if err != nil {
			return nil, BackupOutput{}, fmt.Errorf("backup path rejected: %w", err)
		}
		outputPath = p
	}

	header, err := backup.Backup(ctx, s.store, outputPath, dir)
	if err != nil {
		return nil, BackupOutput{}, fmt.Errorf("backup failed: %w", err)
	}

	var rotated int
	policy, err := s.cfg.Backup.Retention()
	if err != nil {
		s.logger.Warn("invalid backup retention settings", "error", err)
	} else if removed, err := backup.ApplyRetention(filepath.Dir(outputPath), policy); err != nil {
		s.logger.Warn("failed to apply backup retention", "error", err)
	} else {
		rotated = len(removed)
	}

	var sizeBytes int64
	if info, err := os.Stat(outputPath); err == nil {
		sizeBytes = info.Size()
	}

	return nil, BackupOutput{
		Path:         outputPath,
		TrialCount:   header.TrialCount,
		SessionCount: header.SessionCount,
		Checksum:     header.Checksum,
		SizeBytes:    sizeBytes,
		Rotated:      rotated,
		Message: fmt.Sprintf("Backup created: %d sessions, %d trials → %s",
			header.SessionCount, header.TrialCount, outputPath),
	}, nil
}

// handleRestore implements the gonogo_restore tool.
func (s *Server) handleRestore(ctx context.Context, req *sdk.CallToolRequest, args RestoreInput) (_ *sdk.CallToolResult, _ RestoreOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("gonogo_restore", start, retErr, sanitizeToolParams(map[string]any{
			"input_path": args.InputPath, "mode": args.Mode,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gonogo_restore"); err != nil {
		return nil, RestoreOutput{}, err
	}

	if args.InputPath == "" {
		return nil, RestoreOutput{}, fmt.Errorf("'input_path' parameter is required")
	}
	mode, err := backup.ParseRestoreMode(args.Mode)
	if err != nil {
		return nil, RestoreOutput{}, err
	}
	dir := s.backupDir()
	path, err := pathutil.InDir(dir, args.InputPath)
	if err != nil {
		return nil, RestoreOutput{}, fmt.Errorf("restore path rejected: %w", err)
	}

	result, err := backup.Restore(ctx, s.store, path, mode, dir)
	if err != nil {
		return nil, RestoreOutput{}, fmt.Errorf("restore failed: %w", err)
	}

	return nil, RestoreOutput{
		SessionsRestored: result.SessionsRestored,
		SessionsSkipped:  result.SessionsSkipped,
		TrialsRestored:   result.TrialsRestored,
		TrialsSkipped:    result.TrialsSkipped,
		TrialsDeleted:    result.TrialsDeleted,
		Message: fmt.Sprintf("Restored %d trials (%d skipped), %d sessions (%d skipped)",
			result.TrialsRestored, result.TrialsSkipped, result.SessionsRestored, result.SessionsSkipped),
	}, nil
}

// handleTrialsSummaryResource renders trial and session counts as markdown.
func (s *Server) handleTrialsSummaryResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	var sb strings.Builder
	sb.WriteString("# Stored Trials\n\n")

	sb.WriteString("| Source | Trials |\n|---|---|\n")
	total := 0
	for _, src := range []constants.Source{constants.SourceHuman, constants.SourceAgent} {
		n, err := s.store.CountTrials(ctx, store.Filter{Source: src})
		if err != nil {
			return nil, fmt.Errorf("failed to count trials: %w", err)
		}
		total += n
		fmt.Fprintf(&sb, "| %s | %d |\n", src, n)
	}
	fmt.Fprintf(&sb, "| total | %d |\n", total)

	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	fmt.Fprintf(&sb, "\n%d simulated sessions.\n", len(sessions))
	if total == 0 {
		sb.WriteString("\nNo trials yet. Run `gonogo_simulate` with `persist: true` or post trials to the HTTP API.\n")
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      "gonogo://trials/summary",
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}

// handleConfigResource returns the effective configuration as YAML.
func (s *Server) handleConfigResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	data, err := yaml.Marshal(s.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      "gonogo://config",
				MIMEType: "application/yaml",
				Text:     string(data),
			},
		},
	}, nil
}

// newRunner builds a simulation runner that persists to the server's
// store when persist is set.
func (s *Server) newRunner(perStimulus, persist bool) *simulation.Runner {
	opts := []simulation.Option{
		simulation.WithLogger(s.logger),
		simulation.WithPerStimulusValues(perStimulus),
	}
	if persist {
		opts = append(opts, simulation.WithStore(s.store))
	}
	return simulation.NewRunner(opts...)
}

func overrideFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// trialFilter validates tool filter arguments.
func trialFilter(userID, sessionID, source string) (store.Filter, error) {
	f := store.Filter{UserID: userID, SessionID: sessionID}
	if source != "" {
		src := constants.Source(strings.ToLower(source))
		if !src.Valid() {
			return store.Filter{}, fmt.Errorf("invalid source %q (want human or agent)", source)
		}
		f.Source = src
	}
	return f, nil
}

func stimulusRates(m map[task.Stimulus]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

func conditionSummary(id int, sum ddm.Summary) ConditionSummary {
	cs := ConditionSummary{
		Condition:   id,
		N:           sum.N,
		MissingRT:   sum.MissingRT,
		PCorrect:    sum.PCorrect,
		PResponse:   sum.PResponse,
		RTQuantiles: append([]float64{}, sum.RTQuantiles...),
		Bins:        make([]BinItem, 0, len(sum.Bins)),
	}
	for _, b := range sum.Bins {
		cs.Bins = append(cs.Bins, BinItem{
			Index:     b.Index,
			N:         b.N,
			MeanRT:    b.MeanRT,
			PCorrect:  b.PCorrect,
			PResponse: b.PResponse,
		})
	}
	return cs
}

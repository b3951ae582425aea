// Package mcp provides an MCP (Model Context Protocol) server for gonogo.
package mcp

// SimulateInput defines the input for the gonogo_simulate tool.
type SimulateInput struct {
	Seed               int64    `json:"seed,omitempty" jsonschema:"RNG seed for the schedule, choices and reaction times (default: simulation.seed)"`
	PerStimulus        bool     `json:"per_stimulus,omitempty" jsonschema:"Learn separate action values per stimulus (default: one shared value pair)"`
	Persist            bool     `json:"persist,omitempty" jsonschema:"Store the session's trials in the trial database"`
	LearningRate       *float64 `json:"learning_rate,omitempty" jsonschema:"Override alpha in (0, 1]"`
	InverseTemperature *float64 `json:"inverse_temperature,omitempty" jsonschema:"Override beta (inverse temperature)"`
	ActionBias         *float64 `json:"action_bias,omitempty" jsonschema:"Override the go bias"`
	PavlovianBias      *float64 `json:"pavlovian_bias,omitempty" jsonschema:"Override the Pavlovian inhibition weight (>= 0)"`
}

// SimulateOutput defines the output for the gonogo_simulate tool.
type SimulateOutput struct {
	SessionID   string             `json:"session_id" jsonschema:"Session identifier"`
	UserID      string             `json:"user_id" jsonschema:"Simulated participant id"`
	Seed        int64              `json:"seed" jsonschema:"Seed used"`
	Trials      int                `json:"trials" jsonschema:"Number of trials played"`
	Accuracy    float64            `json:"accuracy" jsonschema:"Fraction of correct trials"`
	FinalScore  int                `json:"final_score" jsonschema:"Score after the last trial"`
	FinalValues []float64          `json:"final_values" jsonschema:"Final Q(go) and Q(no-go)"`
	GoRate      map[string]float64 `json:"go_rate" jsonschema:"Fraction of go actions per stimulus"`
	BlockAcc    map[string]float64 `json:"block_accuracy" jsonschema:"Accuracy per block"`
	Persisted   bool               `json:"persisted" jsonschema:"Whether trials were stored"`
	Message     string             `json:"message" jsonschema:"Human-readable summary"`
}

// BatchInput defines the input for the gonogo_batch tool.
type BatchInput struct {
	Subjects    int   `json:"subjects,omitempty" jsonschema:"Number of simulated subjects (default: simulation.subjects, max 100)"`
	Seed        int64 `json:"seed,omitempty" jsonschema:"Base seed; subject i uses seed+i"`
	Workers     int   `json:"workers,omitempty" jsonschema:"Concurrent subjects (default: one per subject)"`
	PerStimulus bool  `json:"per_stimulus,omitempty" jsonschema:"Learn separate action values per stimulus"`
	Persist     bool  `json:"persist,omitempty" jsonschema:"Store every session's trials"`
}

// BatchOutput defines the output for the gonogo_batch tool.
type BatchOutput struct {
	Subjects     int                `json:"subjects" jsonschema:"Subjects simulated"`
	Trials       int                `json:"trials" jsonschema:"Total trials"`
	MeanAccuracy float64            `json:"mean_accuracy" jsonschema:"Mean per-subject accuracy"`
	MeanScore    float64            `json:"mean_score" jsonschema:"Mean final score"`
	GoRate       map[string]float64 `json:"go_rate" jsonschema:"Pooled fraction of go actions per stimulus"`
	BlockAcc     map[string]float64 `json:"block_accuracy" jsonschema:"Pooled accuracy per block"`
	SessionIDs   []string           `json:"session_ids" jsonschema:"Session identifiers in subject order"`
	Message      string             `json:"message" jsonschema:"Human-readable summary"`
}

// TrialsInput defines the input for the gonogo_trials tool.
type TrialsInput struct {
	UserID    string `json:"user_id,omitempty" jsonschema:"Only trials from this participant"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Only trials from this session"`
	Source    string `json:"source,omitempty" jsonschema:"Only 'human' or 'agent' trials"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum trials to return (default 100, max 1000)"`
}

// TrialItem is a list view of a stored trial.
type TrialItem struct {
	ID           int64    `json:"id"`
	UserID       string   `json:"user_id"`
	SessionID    string   `json:"session_id,omitempty"`
	Source       string   `json:"source"`
	TrialNumber  int      `json:"trial_number"`
	Block        string   `json:"block,omitempty"`
	Stimulus     string   `json:"stimulus"`
	ReactionTime int64    `json:"reaction_time_ms"`
	Correct      bool     `json:"correct"`
	ScoreChange  int      `json:"score_change"`
	NewScore     int      `json:"new_score"`
	Action       string   `json:"action,omitempty"`
	PGo          *float64 `json:"p_go,omitempty"`
	Timestamp    string   `json:"timestamp"`
}

// TrialsOutput defines the output for the gonogo_trials tool.
type TrialsOutput struct {
	Trials []TrialItem `json:"trials" jsonschema:"Matching trials ordered by id"`
	Count  int         `json:"count" jsonschema:"Number of trials returned"`
	Total  int         `json:"total" jsonschema:"Number of trials matching the filter"`
}

// DDMInput defines the input for the gonogo_ddm tool.
type DDMInput struct {
	Subjects       int       `json:"subjects,omitempty" jsonschema:"Simulated subjects (default: ddm.subjects, max 16)"`
	TrialsPerLevel int       `json:"trials_per_level,omitempty" jsonschema:"Trials per stimulus level and condition (default: ddm.trials_per_level, max 20000)"`
	Seed           int64     `json:"seed,omitempty" jsonschema:"Base seed; subject i uses seed+i"`
	GoNoGo         bool      `json:"go_nogo,omitempty" jsonschema:"Hide reaction times of withheld responses"`
	Quantiles      []float64 `json:"quantiles,omitempty" jsonschema:"RT quantiles for the summaries (default: ddm.quantiles)"`
	ExportPath     string    `json:"export_path,omitempty" jsonschema:"Write the simulated table as an Arrow IPC file under <data_dir>/exports"`
}

// ConditionSummary pairs a DDM condition with its summary statistics.
type ConditionSummary struct {
	Condition   int       `json:"condition"`
	N           int       `json:"n"`
	MissingRT   int       `json:"missing_rt"`
	PCorrect    float64   `json:"p_correct"`
	PResponse   float64   `json:"p_response"`
	RTQuantiles []float64 `json:"rt_quantiles"`
	Bins        []BinItem `json:"bins"`
}

// BinItem is one RT-quantile bin.
type BinItem struct {
	Index     int     `json:"index"`
	N         int     `json:"n"`
	MeanRT    float64 `json:"mean_rt"`
	PCorrect  float64 `json:"p_correct"`
	PResponse float64 `json:"p_response"`
}

// DDMOutput defines the output for the gonogo_ddm tool.
type DDMOutput struct {
	Trials     int                `json:"trials" jsonschema:"Rows simulated"`
	Quantiles  []float64          `json:"quantiles" jsonschema:"Quantiles used"`
	Conditions []ConditionSummary `json:"conditions" jsonschema:"Summary per condition, pooled over subjects"`
	ExportPath string             `json:"export_path,omitempty" jsonschema:"Arrow file written, if any"`
	Message    string             `json:"message" jsonschema:"Human-readable summary"`
}

// ExportInput defines the input for the gonogo_export tool.
type ExportInput struct {
	OutputPath string `json:"output_path" jsonschema:"File name or path under <data_dir>/exports"`
	Format     string `json:"format,omitempty" jsonschema:"'arrow' (default) or 'jsonl'"`
	UserID     string `json:"user_id,omitempty" jsonschema:"Only trials from this participant"`
	SessionID  string `json:"session_id,omitempty" jsonschema:"Only trials from this session"`
	Source     string `json:"source,omitempty" jsonschema:"Only 'human' or 'agent' trials"`
}

// ExportOutput defines the output for the gonogo_export tool.
type ExportOutput struct {
	Path    string `json:"path" jsonschema:"File written"`
	Format  string `json:"format" jsonschema:"Format written"`
	Count   int    `json:"count" jsonschema:"Trials exported"`
	Message string `json:"message" jsonschema:"Human-readable summary"`
}

// BackupInput defines the input for the gonogo_backup tool.
type BackupInput struct {
	OutputPath string `json:"output_path,omitempty" jsonschema:"Backup file path under the backup directory (default: timestamped name)"`
}

// BackupOutput defines the output for the gonogo_backup tool.
type BackupOutput struct {
	Path         string `json:"path" jsonschema:"Backup file written"`
	TrialCount   int    `json:"trial_count" jsonschema:"Trials in the backup"`
	SessionCount int    `json:"session_count" jsonschema:"Sessions in the backup"`
	Checksum     string `json:"checksum" jsonschema:"SHA-256 of the compressed payload"`
	SizeBytes    int64  `json:"size_bytes" jsonschema:"File size"`
	Rotated      int    `json:"rotated" jsonschema:"Old backups removed by retention"`
	Message      string `json:"message" jsonschema:"Human-readable summary"`
}

// RestoreInput defines the input for the gonogo_restore tool.
type RestoreInput struct {
	InputPath string `json:"input_path" jsonschema:"Backup file under the backup directory"`
	Mode      string `json:"mode,omitempty" jsonschema:"'merge' (default) skips existing trials; 'replace' deletes all trials first"`
}

// RestoreOutput defines the output for the gonogo_restore tool.
type RestoreOutput struct {
	SessionsRestored int    `json:"sessions_restored"`
	SessionsSkipped  int    `json:"sessions_skipped"`
	TrialsRestored   int    `json:"trials_restored"`
	TrialsSkipped    int    `json:"trials_skipped"`
	TrialsDeleted    int    `json:"trials_deleted"`
	Message          string `json:"message" jsonschema:"Human-readable summary"`
}

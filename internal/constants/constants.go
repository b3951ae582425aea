// Package constants provides named constants used throughout gonogo.
// This centralizes task timings and workflow defaults.
package constants

import "time"

// Knock task timing. The response window is the longest a stimulus stays on
// screen; a trial without a press is scored as withheld.
const (
	// FixationDuration is how long the fixation cross is shown.
	FixationDuration = 1000 * time.Millisecond

	// FeedbackDuration is how long the score popup is shown.
	FeedbackDuration = 1000 * time.Millisecond

	// ResponseWindow is the stimulus countdown.
	ResponseWindow = 3000 * time.Millisecond
)

// Scoring constants.
const (
	// ScorePerTrial is gained on a correct trial and lost on an error.
	ScorePerTrial = 50
)

// DDM workflow defaults, matching the chi-square fitting setup.
const (
	// DefaultTrialsPerLevel is the number of trials per stimulus level.
	DefaultTrialsPerLevel = 10000

	// DefaultSubjects is the number of simulated subjects.
	DefaultSubjects = 4

	// DefaultEulerStep is the Euler-Maruyama step of the DDM generator.
	DefaultEulerStep = time.Millisecond

	// MaxDecisionTime caps a single simulated diffusion trial.
	MaxDecisionTime = 10 * time.Second
)

// DefaultQuantiles are the RT quantiles used for chi-square fitting.
var DefaultQuantiles = []float64{0.1, 0.3, 0.5, 0.7, 0.9}

// DefaultRewardSequence is the demo outcome sequence for `gonogo run`.
var DefaultRewardSequence = []float64{1, -1, 0, 1, -1, 1, 0, -1, 1, -1}

// Backup rotation controls how many backup files are retained.
const (
	// MaxBackupRotation is the default maximum number of backup files to keep.
	MaxBackupRotation = 10
)

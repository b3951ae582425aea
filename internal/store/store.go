// Package store defines the TrialStore interface for persisting go/no-go
// trials and the simulated sessions that produced them.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/gonogo/internal/constants"
)

// ErrNotFound is returned when a trial or session does not exist.
var ErrNotFound = errors.New("not found")

// TrialRecord is one scored knock trial. JSON field names match the
// experiment client's POST body.
type TrialRecord struct {
	ID           int64            `json:"id,omitempty"`
	UserID       string           `json:"userId"`
	SessionID    string           `json:"sessionId,omitempty"`
	Source       constants.Source `json:"source,omitempty"`
	TrialNumber  int              `json:"trialNumber"`
	Block        string           `json:"block,omitempty"`
	Stimulus     string           `json:"stimulus"`
	ReactionTime int64            `json:"reactionTime"` // milliseconds, 0 when no press
	Correct      bool             `json:"correct"`
	ScoreChange  int              `json:"scoreChange"`
	NewScore     int              `json:"newScore"`

	// Agent-only fields.
	Action string   `json:"action,omitempty"`
	PGo    *float64 `json:"pGo,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Session describes one simulated agent run.
type Session struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	Source     constants.Source `json:"source"`
	Seed       int64            `json:"seed"`
	ConfigJSON string           `json:"config,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Filter narrows trial queries. Zero-valued fields match everything.
type Filter struct {
	UserID    string
	SessionID string
	Source    constants.Source
	Limit     int // 0 = no limit
}

// Match reports whether r satisfies the filter (ignoring Limit).
func (f Filter) Match(r TrialRecord) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.SessionID != "" && r.SessionID != f.SessionID {
		return false
	}
	if f.Source != "" && r.Source != f.Source {
		return false
	}
	return true
}

// TrialStore defines the interface for storing and querying trials.
type TrialStore interface {
	// Trial operations
	AddTrial(ctx context.Context, trial TrialRecord) (int64, error)
	AddTrials(ctx context.Context, trials []TrialRecord) error
	GetTrial(ctx context.Context, id int64) (*TrialRecord, error)

	// ListTrials returns matching trials ordered by id.
	ListTrials(ctx context.Context, filter Filter) ([]TrialRecord, error)
	CountTrials(ctx context.Context, filter Filter) (int, error)
	DeleteTrials(ctx context.Context, filter Filter) (int, error)

	// Session operations
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context) ([]Session, error)

	Close() error
}

// normalize fills defaults shared by every store implementation.
func normalize(t TrialRecord) TrialRecord {
	if t.Source == "" {
		t.Source = constants.SourceHuman
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	return t
}

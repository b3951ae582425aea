package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/gonogo/internal/agent"
	"github.com/nvandessel/gonogo/internal/constants"
	"github.com/nvandessel/gonogo/internal/logging"
	"github.com/nvandessel/gonogo/internal/store"
	"github.com/nvandessel/gonogo/internal/task"
)

// ReactionTimeFunc draws a press latency inside the response window.
type ReactionTimeFunc func(rng *rand.Rand, window time.Duration) time.Duration

// DefaultReactionTime is a shifted exponential: 200ms plus a 250ms-mean tail,
// capped just below the window.
func DefaultReactionTime(rng *rand.Rand, window time.Duration) time.Duration {
	rt := 200*time.Millisecond + time.Duration(rng.ExpFloat64()*float64(250*time.Millisecond))
	if rt >= window {
		rt = window - time.Millisecond
	}
	return rt
}

// Runner executes agent sessions.
type Runner struct {
	store       store.TrialStore
	choices     *logging.ChoiceLogger
	logger      *slog.Logger
	rt          ReactionTimeFunc
	perStimulus bool
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore persists task sessions and their trials to s.
func WithStore(s store.TrialStore) Option {
	return func(r *Runner) { r.store = s }
}

// WithChoiceLogger traces every agent step to cl.
func WithChoiceLogger(cl *logging.ChoiceLogger) Option {
	return func(r *Runner) { r.choices = cl }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithReactionTimes replaces DefaultReactionTime.
func WithReactionTimes(f ReactionTimeFunc) Option {
	return func(r *Runner) {
		if f != nil {
			r.rt = f
		}
	}
}

// WithPerStimulusValues gives each stimulus its own agent (and so its own
// action values) within a task session. By default one agent sees every
// trial.
func WithPerStimulusValues(on bool) Option {
	return func(r *Runner) { r.perStimulus = on }
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{rt: DefaultReactionTime, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDefault(r.logger)
	return r
}

// RunRewards drives a fresh agent through a fixed outcome sequence: on each
// trial the agent picks an action and is then updated with rewards[i]
// whatever it picked. Reward-sequence sessions are traced but not persisted.
func (r *Runner) RunRewards(ctx context.Context, subj Subject, cfg agent.Config, rewards []float64) (SessionResult, error) {
	a, err := agent.New(cfg, agent.WithSeed(subj.Seed))
	if err != nil {
		return SessionResult{}, err
	}

	res := SessionResult{SessionID: uuid.NewString(), Subject: subj}
	for i, reward := range rewards {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		action, dist, err := a.SelectAction()
		if err != nil {
			return res, fmt.Errorf("trial %d: %w", i+1, err)
		}
		upd, err := a.Update(action, reward)
		if err != nil {
			return res, fmt.Errorf("trial %d: %w", i+1, err)
		}

		step := Step{
			Trial:  i + 1,
			Action: action,
			Probs:  dist,
			Reward: reward,
			Update: upd,
			Values: a.Values(),
		}
		r.trace(ctx, res.SessionID, subj, step)
		res.Steps = append(res.Steps, step)
	}
	res.FinalValues = a.Values()
	return res, nil
}

// RunTask plays the knock task with a fresh agent. One random source seeded
// from subj.Seed drives the block shuffle, the agent's choices, and reaction
// times, so a subject replays identically. The outcome's score change is
// fed back as reward (+1/-1).
func (r *Runner) RunTask(ctx context.Context, subj Subject, cfg agent.Config, design task.Design) (SessionResult, error) {
	rng := rand.New(rand.NewSource(subj.Seed))

	schedule, err := design.Schedule(rng)
	if err != nil {
		return SessionResult{}, err
	}

	agents := make(map[task.Stimulus]*agent.Agent)
	agentFor := func(s task.Stimulus) (*agent.Agent, error) {
		key := s
		if !r.perStimulus {
			key = ""
		}
		if a, ok := agents[key]; ok {
			return a, nil
		}
		a, err := agent.New(cfg, agent.WithRand(rng))
		if err != nil {
			return nil, err
		}
		agents[key] = a
		return a, nil
	}

	res := SessionResult{SessionID: uuid.NewString(), Subject: subj}
	r.logger.Debug("task session started",
		"session", res.SessionID, "subject", subj.ID, "seed", subj.Seed, "trials", len(schedule))

	score := 0
	var last *agent.Agent
	for _, tr := range schedule {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		a, err := agentFor(tr.Stimulus)
		if err != nil {
			return res, err
		}
		last = a

		action, dist, err := a.SelectAction()
		if err != nil {
			return res, fmt.Errorf("trial %d: %w", tr.Number, err)
		}

		var rt time.Duration
		if action == agent.Go {
			rt = r.rt(rng, design.ResponseWindow)
		}
		resp := task.ResponseFor(action, rt)
		out := task.Evaluate(tr.Stimulus, resp, score)
		score = out.NewScore

		upd, err := a.Update(action, out.Reward())
		if err != nil {
			return res, fmt.Errorf("trial %d: %w", tr.Number, err)
		}

		step := Step{
			Trial:        tr.Number,
			Block:        tr.Block,
			Stimulus:     tr.Stimulus,
			Action:       action,
			Probs:        dist,
			Reward:       out.Reward(),
			Update:       upd,
			Values:       a.Values(),
			Correct:      out.Correct,
			ScoreDelta:   out.ScoreDelta,
			Score:        out.NewScore,
			ReactionTime: resp.ReactionTime,
		}
		r.trace(ctx, res.SessionID, subj, step)
		res.Steps = append(res.Steps, step)
	}

	if last != nil {
		res.FinalValues = last.Values()
	}
	res.FinalScore = score

	if err := r.persist(ctx, res, cfg); err != nil {
		return res, err
	}

	r.logger.Debug("task session finished",
		"session", res.SessionID, "subject", subj.ID, "score", score, "accuracy", res.Accuracy())
	return res, nil
}

// RunBatch runs bc.Subjects independent task sessions in parallel. Subject i
// is seeded with bc.Seed+i; results are returned in subject order. The first
// failing subject cancels the rest.
func (r *Runner) RunBatch(ctx context.Context, bc BatchConfig) ([]SessionResult, error) {
	if bc.Subjects <= 0 {
		return nil, fmt.Errorf("batch needs at least one subject, got %d", bc.Subjects)
	}
	workers := bc.Workers
	if workers <= 0 {
		workers = bc.Subjects
	}

	results := make([]SessionResult, bc.Subjects)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < bc.Subjects; i++ {
		g.Go(func() error {
			res, err := r.RunTask(gctx, SubjectAt(i, bc.Seed), bc.Agent, bc.Design)
			if err != nil {
				return fmt.Errorf("subject %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) trace(ctx context.Context, session string, subj Subject, s Step) {
	r.logger.Log(ctx, logging.LevelTrace, "agent step",
		"session", session, "trial", s.Trial, "stimulus", s.Stimulus,
		"action", s.Action.String(), "p_go", s.Probs.Go(), "reward", s.Reward,
		"prediction_error", s.Update.PredictionError)

	r.choices.LogChoice(logging.Choice{
		Session:         session,
		Subject:         subj.Index,
		Trial:           s.Trial,
		Stimulus:        string(s.Stimulus),
		Action:          s.Action.String(),
		PGo:             s.Probs.Go(),
		PNoGo:           s.Probs.NoGo(),
		Reward:          s.Reward,
		PredictionError: s.Update.PredictionError,
		Values:          s.Values,
	})
}

// persist writes the session and its trials. A nil store is a no-op.
func (r *Runner) persist(ctx context.Context, res SessionResult, cfg agent.Config) error {
	if r.store == nil {
		return nil
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode agent config: %w", err)
	}
	now := r.now().UTC()
	if err := r.store.CreateSession(ctx, store.Session{
		ID:         res.SessionID,
		UserID:     res.Subject.ID,
		Source:     constants.SourceAgent,
		Seed:       res.Subject.Seed,
		ConfigJSON: string(cfgJSON),
		CreatedAt:  now,
	}); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if err := r.store.AddTrials(ctx, TrialRecords(res, now)); err != nil {
		return fmt.Errorf("failed to save trials: %w", err)
	}
	return nil
}

// TrialRecords converts a session into store rows tagged as agent data.
func TrialRecords(res SessionResult, ts time.Time) []store.TrialRecord {
	out := make([]store.TrialRecord, 0, len(res.Steps))
	for _, s := range res.Steps {
		pGo := s.Probs.Go()
		out = append(out, store.TrialRecord{
			UserID:       res.Subject.ID,
			SessionID:    res.SessionID,
			Source:       constants.SourceAgent,
			TrialNumber:  s.Trial,
			Block:        s.Block,
			Stimulus:     string(s.Stimulus),
			ReactionTime: s.ReactionTime.Milliseconds(),
			Correct:      s.Correct,
			ScoreChange:  s.ScoreDelta,
			NewScore:     s.Score,
			Action:       s.Action.String(),
			PGo:          &pGo,
			Timestamp:    ts,
		})
	}
	return out
}

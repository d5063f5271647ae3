package monitor

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"basegraph.app/pulse/common/id"
	"basegraph.app/pulse/common/logger"
	"basegraph.app/pulse/core/config"
	"basegraph.app/pulse/internal/model"
)

const (
	defaultMaxTasksPerCycle = 50
	defaultWriteTimeout     = 30 * time.Second
	defaultLeaseTTL         = 2 * defaultWriteTimeout
)

// Outcome reasons the engine adds on top of the policy's.
const (
	ReasonCommentCap      = "comment_cap"
	ReasonGenerationError = "generation_error"
	ReasonRevalidated     = "revalidated"
	ReasonGuardHeld       = "guard_held"
	ReasonWriteError      = "write_error"
	ReasonPosted          = "posted"
	ReasonInterrupted     = "interrupted"
)

type EngineConfig struct {
	// BotID is the resolved identity the engine writes as and recognizes in
	// comment threads.
	BotID               string
	MaxTasksPerCycle    int
	MaxCommentsPerCycle int
	SkipProbability     float64
	MinCommentDelay     time.Duration
	MaxCommentDelay     time.Duration
	// RevalidateBeforeWrite re-reads the thread right before each write so that
	// concurrent instances rarely double-post.
	RevalidateBeforeWrite bool
	// WriteTimeout bounds AppendComment. The write is detached from the cycle's
	// cancellation so a stop never lands mid-comment.
	WriteTimeout time.Duration
	// LeaseTTL is how long the cross-instance write lease is held. It only has
	// to outlive one re-read and write; the cooldown itself comes from the
	// comment thread.
	LeaseTTL       time.Duration
	ScanInterval   time.Duration
	FailureBackoff time.Duration
}

func NewEngineConfig(cfg config.MonitorConfig, botID string) (EngineConfig, error) {
	ec := EngineConfig{
		BotID:                 botID,
		MaxTasksPerCycle:      cfg.MaxTasksPerCycle,
		MaxCommentsPerCycle:   cfg.MaxCommentsPerCycle,
		SkipProbability:       cfg.SkipProbability,
		MinCommentDelay:       cfg.MinCommentDelay,
		MaxCommentDelay:       cfg.MaxCommentDelay,
		RevalidateBeforeWrite: cfg.RevalidateBeforeWrite,
		WriteTimeout:          defaultWriteTimeout,
		LeaseTTL:              defaultLeaseTTL,
		ScanInterval:          cfg.ScanInterval,
		FailureBackoff:        cfg.FailureBackoff,
	}
	return ec, ec.Validate()
}

func (c EngineConfig) Validate() error {
	switch {
	case c.BotID == "":
		return configErr("bot_id", "must be resolved before the engine starts")
	case c.MaxTasksPerCycle <= 0:
		return configErr("max_tasks_per_cycle", "must be positive, got %d", c.MaxTasksPerCycle)
	case c.MaxCommentsPerCycle < 0:
		return configErr("max_comments_per_cycle", "must not be negative, got %d", c.MaxCommentsPerCycle)
	case c.SkipProbability < 0 || c.SkipProbability > 1:
		return configErr("skip_probability", "must be within [0,1], got %v", c.SkipProbability)
	case c.MinCommentDelay < 0 || c.MaxCommentDelay < c.MinCommentDelay:
		return configErr("comment_delay", "need 0 <= min (%s) <= max (%s)", c.MinCommentDelay, c.MaxCommentDelay)
	case c.ScanInterval <= 0:
		return configErr("scan_interval", "must be positive, got %s", c.ScanInterval)
	case c.FailureBackoff <= 0:
		return configErr("failure_backoff", "must be positive, got %s", c.FailureBackoff)
	case c.WriteTimeout <= 0:
		return configErr("write_timeout", "must be positive, got %s", c.WriteTimeout)
	case c.LeaseTTL <= 0:
		return configErr("lease_ttl", "must be positive, got %s", c.LeaseTTL)
	}
	return nil
}

// TaskOutcome records what the engine did with one inspected task.
type TaskOutcome struct {
	TaskID   string
	Urgency  model.Urgency
	Reason   string
	Category model.MessageCategory
	Posted   bool
}

type CycleResult struct {
	CycleID int64
	At      time.Time
	Skipped bool
	// Interrupted means a stop arrived between tasks; the tasks handled so far
	// still count.
	Interrupted      bool
	TasksSeen        int
	TasksInspected   int
	CommentsPosted   int
	GenerationErrors int
	WriteErrors      int
	Outcomes         []TaskOutcome
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type Option func(*Engine)

func WithGuard(g CooldownGuard) Option {
	return func(e *Engine) { e.guard = g }
}

func WithPublisher(p NotificationPublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithSleeper(s Sleeper) Option {
	return func(e *Engine) { e.sleep = s }
}

func WithAnalyzer(a *Analyzer) Option {
	return func(e *Engine) { e.analyzer = a }
}

// Engine runs one scan-decide-act cycle at a time. It is not safe for
// concurrent RunCycle calls; the scheduler serializes them.
type Engine struct {
	cfg       EngineConfig
	store     TaskStore
	gen       TextGenerator
	policy    *Policy
	analyzer  *Analyzer
	rand      Rand
	state     *EngineState
	guard     CooldownGuard
	publisher NotificationPublisher
	sleep     Sleeper
}

func NewEngine(cfg EngineConfig, store TaskStore, gen TextGenerator, policy *Policy, r Rand, state *EngineState, opts ...Option) *Engine {
	if cfg.MaxTasksPerCycle <= 0 {
		cfg.MaxTasksPerCycle = defaultMaxTasksPerCycle
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = defaultLeaseTTL
	}
	e := &Engine{
		cfg:      cfg,
		store:    store,
		gen:      gen,
		policy:   policy,
		analyzer: NewAnalyzer(DefaultKeywordFamilies, policy.Config().FollowUpThreshold),
		rand:     r,
		state:    state,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) State() *EngineState {
	return e.state
}

type scoredTask struct {
	task    model.TaskSnapshot
	urgency model.Urgency
}

// RunCycle performs one full cycle. A returned error means the cycle aborted
// (a transient store failure); per-task failures are counted in the result and
// never abort the cycle.
func (e *Engine) RunCycle(ctx context.Context, now time.Time) (*CycleResult, error) {
	res := &CycleResult{CycleID: id.New(), At: now}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		CycleID:   logger.Ptr(res.CycleID),
		Component: "pulse.monitor.engine",
	})
	sc := logger.StartSpan(ctx, "pulse.scan_cycle")
	defer sc.End()
	ctx = sc.Context()

	if e.rand.Float64() < e.cfg.SkipProbability {
		res.Skipped = true
		e.state.recordSkipped()
		slog.InfoContext(ctx, "skipping cycle")
		return res, nil
	}

	if err := e.run(ctx, now, res); err != nil {
		sc.RecordError(err)
		e.state.recordAborted(res, err)
		slog.ErrorContext(ctx, "cycle aborted", "error", err)
		return nil, err
	}

	sc.Span().SetAttributes(
		attribute.Int("tasks_seen", res.TasksSeen),
		attribute.Int("tasks_inspected", res.TasksInspected),
		attribute.Int("comments_posted", res.CommentsPosted),
	)
	slog.InfoContext(ctx, "cycle completed",
		"tasks_seen", res.TasksSeen,
		"tasks_inspected", res.TasksInspected,
		"comments_posted", res.CommentsPosted,
		"generation_errors", res.GenerationErrors,
		"write_errors", res.WriteErrors,
		"interrupted", res.Interrupted)
	return res, nil
}

func (e *Engine) run(ctx context.Context, now time.Time, res *CycleResult) error {
	tasks, err := e.store.FetchOpenTasks(ctx)
	if err != nil {
		if ctx.Err() != nil {
			res.Interrupted = true
			return nil
		}
		return &TransientStoreError{Op: "fetch tasks", Err: err}
	}
	res.TasksSeen = len(tasks)

	queue := rank(tasks, now)
	if len(queue) > e.cfg.MaxTasksPerCycle {
		queue = queue[:e.cfg.MaxTasksPerCycle]
	}

	for _, st := range queue {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}

		outcome, err := e.handleTask(ctx, st, now, res)
		if err != nil {
			return err
		}
		if outcome.Reason == ReasonInterrupted {
			res.Interrupted = true
			break
		}
		res.TasksInspected++
		res.Outcomes = append(res.Outcomes, outcome)
	}

	e.state.recordCycle(res, Recompute(tasks, now))
	return nil
}

// rank orders tasks by urgency score, highest first. Ties keep store order.
func rank(tasks []model.TaskSnapshot, now time.Time) []scoredTask {
	out := make([]scoredTask, len(tasks))
	for i, t := range tasks {
		out[i] = scoredTask{task: t, urgency: Score(t, now)}
	}
	slices.SortStableFunc(out, func(a, b scoredTask) int {
		return cmp.Compare(b.urgency.Score, a.urgency.Score)
	})
	return out
}

func (e *Engine) handleTask(ctx context.Context, st scoredTask, now time.Time, res *CycleResult) (TaskOutcome, error) {
	task := st.task
	outcome := TaskOutcome{TaskID: task.ID, Urgency: st.urgency}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		TaskID:     logger.Ptr(task.ID),
		AssigneeID: logger.Ptr(task.AssigneeID),
	})
	sc := logger.StartSpan(ctx, "pulse.task_decision",
		trace.WithAttributes(attribute.String("task_id", task.ID)))
	defer sc.End()
	ctx = sc.Context()

	comments, err := e.store.FetchComments(ctx, task.ID)
	if err != nil {
		if ctx.Err() != nil {
			outcome.Reason = ReasonInterrupted
			return outcome, nil
		}
		return outcome, &TransientStoreError{Op: fmt.Sprintf("fetch comments for %s", task.ID), Err: err}
	}
	conv := e.analyzer.Analyze(comments, e.cfg.BotID, now)

	decision := e.policy.Decide(task, st.urgency, conv, now, nil)
	outcome.Reason = decision.Reason
	slog.DebugContext(ctx, "task evaluated",
		"urgency_state", st.urgency.State,
		"urgency_score", st.urgency.Score,
		"days_late", st.urgency.DaysLate,
		"topic", conv.CurrentTopic,
		"needs_follow_up", conv.NeedsFollowUp,
		"tier", decision.Tier,
		"reason", decision.Reason,
		"comment", decision.Comment)
	if !decision.Comment {
		return outcome, nil
	}

	if res.CommentsPosted >= e.cfg.MaxCommentsPerCycle {
		outcome.Reason = ReasonCommentCap
		return outcome, nil
	}

	category, body, err := Compose(ctx, e.gen, task, st.urgency, conv)
	outcome.Category = category
	ctx = logger.WithLogFields(ctx, logger.LogFields{Category: logger.Ptr(string(category))})
	if err != nil {
		res.GenerationErrors++
		outcome.Reason = ReasonGenerationError
		slog.WarnContext(ctx, "message generation failed, skipping task", "error", err)
		return outcome, nil
	}

	if res.CommentsPosted > 0 {
		if err := e.sleep(ctx, e.pacingDelay()); err != nil {
			// Nothing has been written for this task yet.
			outcome.Reason = ReasonInterrupted
			return outcome, nil
		}
	}

	// The lease is taken before the re-read so that a second instance either
	// sees this write in the thread or finds the lease held.
	leased := false
	if e.guard != nil {
		ok, err := e.guard.Acquire(ctx, task.ID, e.cfg.LeaseTTL)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "write lease unavailable, writing unguarded", "error", err)
		case !ok:
			outcome.Reason = ReasonGuardHeld
			return outcome, nil
		default:
			leased = true
		}
	}

	if e.cfg.RevalidateBeforeWrite {
		fresh, err := e.store.FetchComments(ctx, task.ID)
		if err != nil {
			if leased {
				e.release(ctx, task.ID)
			}
			if ctx.Err() != nil {
				outcome.Reason = ReasonInterrupted
				return outcome, nil
			}
			return outcome, &TransientStoreError{Op: fmt.Sprintf("revalidate %s", task.ID), Err: err}
		}
		if latest := e.analyzer.Analyze(fresh, e.cfg.BotID, now); latest.BotComments > conv.BotComments {
			if leased {
				e.release(ctx, task.ID)
			}
			outcome.Reason = ReasonRevalidated
			slog.InfoContext(ctx, "another bot comment appeared, skipping task")
			return outcome, nil
		}
	}

	if err := e.write(ctx, task.ID, body, now); err != nil {
		res.WriteErrors++
		outcome.Reason = ReasonWriteError
		slog.ErrorContext(ctx, "comment write failed", "error", err)
		if leased {
			e.release(ctx, task.ID)
		}
		return outcome, nil
	}

	res.CommentsPosted++
	outcome.Posted = true
	outcome.Reason = ReasonPosted
	slog.InfoContext(ctx, "comment posted",
		"category", category,
		"reason", decision.Reason,
		"body", logger.Truncate(body, 120))

	e.publish(ctx, model.Notification{
		CycleID:   res.CycleID,
		TaskID:    task.ID,
		TaskTitle: task.Title,
		Recipient: task.Recipient(),
		Category:  category,
		Body:      body,
		PostedAt:  now,
	})
	return outcome, nil
}

func (e *Engine) write(ctx context.Context, taskID, body string, at time.Time) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.WriteTimeout)
	defer cancel()
	if err := e.store.AppendComment(writeCtx, taskID, e.cfg.BotID, body, at); err != nil {
		return &PartialWriteError{TaskID: taskID, Err: err}
	}
	return nil
}

// release drops the write lease after a write that did not happen. A
// successful write keeps it until the TTL runs out.
func (e *Engine) release(ctx context.Context, taskID string) {
	if err := e.guard.Release(context.WithoutCancel(ctx), taskID); err != nil {
		slog.WarnContext(ctx, "releasing write lease failed", "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, n model.Notification) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(context.WithoutCancel(ctx), n); err != nil {
		slog.WarnContext(ctx, "publishing notification failed", "error", err)
	}
}

func (e *Engine) pacingDelay() time.Duration {
	spread := e.cfg.MaxCommentDelay - e.cfg.MinCommentDelay
	if spread <= 0 {
		return e.cfg.MinCommentDelay
	}
	return e.cfg.MinCommentDelay + time.Duration(e.rand.IntN(int(spread)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package monitor_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/pulse/core/config"
	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/monitor"
)

var _ = Describe("Engine", func() {
	var (
		ctx       context.Context
		now       time.Time
		store     *mockTaskStore
		gen       *mockGenerator
		state     *monitor.EngineState
		cfg       monitor.EngineConfig
		rnd       monitor.Rand
		profile   monitor.PolicyConfig
		opts      []monitor.Option
		sleeps    []time.Duration
		publisher *mockPublisher
	)

	veryLate := func(id string, days int, title string) model.TaskSnapshot {
		return model.TaskSnapshot{ID: id, Title: title, AssigneeID: "alice", AssigneeName: "Alice", DueAt: daysAgo(wednesday, days)}
	}

	newEngine := func() *monitor.Engine {
		policy := monitor.NewPolicy(profile, rnd)
		all := append([]monitor.Option{
			monitor.WithPublisher(publisher),
			monitor.WithSleeper(func(ctx context.Context, d time.Duration) error {
				sleeps = append(sleeps, d)
				return ctx.Err()
			}),
		}, opts...)
		return monitor.NewEngine(cfg, store, gen, policy, rnd, state, all...)
	}

	BeforeEach(func() {
		ctx = context.Background()
		now = wednesday
		store = &mockTaskStore{comments: map[string][]model.CommentRecord{}}
		gen = &mockGenerator{}
		state = monitor.NewEngineState()
		rnd = constRand{f: 0.99}
		profile = monitor.BaseProfile()
		opts = nil
		sleeps = nil
		publisher = &mockPublisher{}
		cfg = monitor.EngineConfig{
			BotID:               botID,
			MaxTasksPerCycle:    50,
			MaxCommentsPerCycle: 3,
			MinCommentDelay:     time.Second,
			MaxCommentDelay:     5 * time.Second,
			WriteTimeout:        30 * time.Second,
			LeaseTTL:            time.Minute,
			ScanInterval:        10 * time.Minute,
			FailureBackoff:      5 * time.Minute,
		}
	})

	recordWrites := func() {
		store.appendFn = func(_ context.Context, taskID, authorID, body string, at time.Time) error {
			store.comments[taskID] = append(store.comments[taskID], model.CommentRecord{AuthorID: authorID, Body: body, CreatedAt: at})
			return nil
		}
	}

	Describe("RunCycle", func() {
		It("serves the most urgent tasks first under the comment cap", func() {
			nagged := veryLate("d", 20, "critical outage follow-up")
			nagged.BotCommentCount = 6
			store.tasks = []model.TaskSnapshot{
				veryLate("a", 11, "tidy up"),
				veryLate("b", 12, "urgent: invoices"),
				veryLate("c", 13, "tidy up"),
				nagged,
				veryLate("e", 14, "tidy up"),
			}

			res, err := newEngine().RunCycle(ctx, now)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.TasksSeen).To(Equal(5))
			Expect(res.CommentsPosted).To(Equal(3))
			Expect(store.appended).To(HaveLen(3))
			Expect(store.appended[0].TaskID).To(Equal("d"))
			Expect(store.appended[1].TaskID).To(Equal("b"))
			Expect(store.appended[0].AuthorID).To(Equal(botID))
			Expect(store.appended[0].At).To(Equal(now))

			Expect(res.Outcomes).To(HaveLen(5))
			Expect(res.Outcomes[3].Reason).To(Equal(monitor.ReasonCommentCap))
			Expect(res.Outcomes[4].Reason).To(Equal(monitor.ReasonCommentCap))
		})

		It("inspects no more than the task cap", func() {
			cfg.MaxTasksPerCycle = 2
			for i := range 5 {
				store.tasks = append(store.tasks, model.TaskSnapshot{ID: fmt.Sprintf("t-%d", i), Title: "x"})
			}

			res, err := newEngine().RunCycle(ctx, now)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.TasksSeen).To(Equal(5))
			Expect(res.TasksInspected).To(Equal(2))
		})

		It("paces successive writes", func() {
			store.tasks = []model.TaskSnapshot{veryLate("a", 11, "x"), veryLate("b", 12, "x"), veryLate("c", 13, "x")}

			_, err := newEngine().RunCycle(ctx, now)

			Expect(err).NotTo(HaveOccurred())
			Expect(sleeps).To(Equal([]time.Duration{time.Second, time.Second}))
		})

		It("publishes a notification for every posted comment", func() {
			store.tasks = []model.TaskSnapshot{veryLate("a", 11, "Finish urgent report")}

			res, err := newEngine().RunCycle(ctx, now)

			Expect(err).NotTo(HaveOccurred())
			Expect(publisher.published).To(HaveLen(1))
			n := publisher.published[0]
			Expect(n.CycleID).To(Equal(res.CycleID))
			Expect(n.TaskID).To(Equal("a"))
			Expect(n.Recipient).To(Equal("Alice"))
			Expect(n.Category).To(Equal(model.CategoryUrgent))
			Expect(n.Body).To(Equal(store.appended[0].Body))
		})

		It("skips a whole cycle on the skip draw", func() {
			cfg.SkipProbability = 0.5
			rnd = constRand{f: 0}
			fetched := false
			store.fetchTasksFn = func(context.Context) ([]model.TaskSnapshot, error) {
				fetched = true
				return nil, nil
			}

			res, err := newEngine().RunCycle(ctx, now)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Skipped).To(BeTrue())
			Expect(fetched).To(BeFalse())
			Expect(state.Stats().SkippedCycles).To(Equal(int64(1)))
			Expect(state.Stats().CyclesPerformed).To(BeZero())
		})

		It("aborts on a task store failure and keeps the last good stats", func() {
			store.tasks = []model.TaskSnapshot{veryLate("a", 11, "x")}
			engine := newEngine()
			_, err := engine.RunCycle(ctx, now)
			Expect(err).NotTo(HaveOccurred())

			store.fetchTasksFn = func(context.Context) ([]model.TaskSnapshot, error) {
				return nil, errors.New("connection reset")
			}
			res, err := engine.RunCycle(ctx, now.Add(time.Hour))

			Expect(res).To(BeNil())
			Expect(errors.Is(err, monitor.ErrTransientStore)).To(BeTrue())
			stats := state.Stats()
			Expect(stats.FailedCycles).To(Equal(int64(1)))
			Expect(stats.CyclesPerformed).To(Equal(int64(1)))
			Expect(*stats.LastCycleAt).To(Equal(now))
			Expect(stats.LastError).To(ContainSubstring("connection reset"))
		})

		It("aborts when a comment thread cannot be read", func() {
			store.tasks = []model.TaskSnapshot{veryLate("a", 11, "x")}
			store.fetchCommentsFn = func(context.Context, string) ([]model.CommentRecord, error) {
				return nil, errors.New("timeout")
			}

			_, err := newEngine().RunCycle(ctx, now)

			Expect(errors.Is(err, monitor.ErrTransientStore)).To(BeTrue())
			Expect(store.appended).To(BeEmpty())
		})

		It("skips a task whose message cannot be generated", func() {
			store.tasks = []model.TaskSnapshot{veryLate("a", 20, "x"), veryLate("b", 11, "x")}
			gen.generateFn = func(_ context.Context, _ model.MessageCategory, _ string, vars map[string]any) (string, error) {
				if vars[monitor.VarDaysLate] == 20 {
					return "", errors.New("model overloaded")
				}
				return "hi", nil
			}

			res, err := newEngine().RunCycle(ctx, now)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.GenerationErrors).To(Equal(1))
			Expect(res.CommentsPosted).To(Equal(1))
			Expect(res.Outcomes[0].Reason).To(Equal(monitor.ReasonGenerationError))
			Expect(state.Stats().GenerationErrors).To(Equal(int64(1)))
		})

		It("counts a failed write, releases the guard, and continues", func() {
			guard := &mockGuard{}
			opts = []monitor.Option{monitor.WithGuard(guard)}
			store.tasks = []model.TaskSnapshot{veryLate("a", 20, "x"), veryLate("b", 11, "x")}
			store.appendFn = func(_ context.Context, taskID, _, _ string, _ time.Time) error {
				if taskID == "a" {
					return errors.New("503")
				}
				return nil
			}

			res, err := newEngine().RunCycle(ctx, now)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.WriteErrors).To(Equal(1))
			Expect(res.CommentsPosted).To(Equal(1))
			Expect(guard.released).To(ConsistOf("a"))
			Expect(state.Stats().WriteErrors).To(Equal(int64(1)))
			Expect(state.Stats().CommentsAdded).To(Equal(int64(1)))
		})

		It("leaves a task to another instance holding the guard", func() {
			opts = []monitor.Option{monitor.WithGuard(&mockGuard{
				acquireFn: func(context.Context, string, time.Duration) (bool, error) { return false, nil },
			})}
			store.tasks = []model.TaskSnapshot{veryLate("a", 20, "x")}

			res, err := newEngine().RunCycle(ctx, now)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.CommentsPosted).To(BeZero())
			Expect(res.Outcomes[0].Reason).To(Equal(monitor.ReasonGuardHeld))
		})

		It("holds the guard for the write lease, not the cooldown window", func() {
			guard := &mockGuard{}
			var ttl time.Duration
			guard.acquireFn = func(_ context.Context, _ string, d time.Duration) (bool, error) {
				ttl = d
				return true, nil
			}
			opts = []monitor.Option{monitor.WithGuard(guard)}
			store.tasks = []model.TaskSnapshot{veryLate("a", 20, "urgent")}

			res, err := newEngine().RunCycle(ctx, now)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.CommentsPosted).To(Equal(1))
			Expect(ttl).To(Equal(time.Minute))
			Expect(guard.released).To(BeEmpty(), "a posted comment keeps its lease until expiry")
		})

		It("follows up a stalled thread while the cooldown and a guard are in place", func() {
			profile = monitor.AdaptiveProfile()
			rnd = constRand{f: 0}
			cfg.RevalidateBeforeWrite = true
			clock := now
			guard := newLeaseGuard(&clock)
			opts = []monitor.Option{monitor.WithGuard(guard)}
			store.tasks = []model.TaskSnapshot{{ID: "a", Title: "x", AssigneeID: "alice", AssigneeName: "Alice"}}
			recordWrites()
			engine := newEngine()

			first, err := engine.RunCycle(ctx, clock)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.CommentsPosted).To(Equal(1))

			// The low tier holds 72h; the thread stalls after 48h.
			clock = now.Add(49 * time.Hour)
			second, err := engine.RunCycle(ctx, clock)

			Expect(err).NotTo(HaveOccurred())
			Expect(second.Outcomes[0].Posted).To(BeTrue())
			Expect(second.Outcomes[0].Category).To(Equal(model.CategoryFollowUpGeneric))
			Expect(store.comments["a"]).To(HaveLen(2))
			Expect(guard.ttls).To(HaveEach(Equal(time.Minute)))
		})

		It("keeps another instance off while the lease is live", func() {
			clock := now
			guard := newLeaseGuard(&clock)
			store.tasks = []model.TaskSnapshot{veryLate("a", 20, "x")}
			opts = []monitor.Option{monitor.WithGuard(guard)}
			_, err := newEngine().RunCycle(ctx, now)
			Expect(err).NotTo(HaveOccurred())

			clock = now.Add(30 * time.Second)
			res, err := newEngine().RunCycle(ctx, clock)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcomes[0].Reason).To(Equal(monitor.ReasonGuardHeld))
			Expect(store.appended).To(HaveLen(1))
		})

		It("treats a stop during the re-read as an interruption", func() {
			cfg.RevalidateBeforeWrite = true
			guard := &mockGuard{}
			opts = []monitor.Option{monitor.WithGuard(guard)}
			store.tasks = []model.TaskSnapshot{veryLate("a", 20, "x")}
			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			reads := 0
			store.fetchCommentsFn = func(c context.Context, _ string) ([]model.CommentRecord, error) {
				reads++
				if reads == 2 {
					cancel()
					return nil, c.Err()
				}
				return nil, nil
			}

			res, err := newEngine().RunCycle(runCtx, now)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Interrupted).To(BeTrue())
			Expect(store.appended).To(BeEmpty())
			Expect(guard.released).To(ConsistOf("a"))
			Expect(state.Stats().FailedCycles).To(BeZero())
		})

		It("counts comments posted before a cycle aborts", func() {
			store.tasks = []model.TaskSnapshot{veryLate("a", 20, "x"), veryLate("b", 11, "x")}
			store.fetchCommentsFn = func(_ context.Context, taskID string) ([]model.CommentRecord, error) {
				if taskID == "b" {
					return nil, errors.New("timeout")
				}
				return nil, nil
			}

			_, err := newEngine().RunCycle(ctx, now)

			Expect(errors.Is(err, monitor.ErrTransientStore)).To(BeTrue())
			Expect(store.appended).To(HaveLen(1))
			stats := state.Stats()
			Expect(stats.CommentsAdded).To(Equal(int64(1)))
			Expect(stats.FailedCycles).To(Equal(int64(1)))
			Expect(stats.CyclesPerformed).To(BeZero())
		})

		It("re-reads the thread before writing when revalidation is on", func() {
			cfg.RevalidateBeforeWrite = true
			store.tasks = []model.TaskSnapshot{veryLate("a", 20, "x")}
			reads := 0
			store.fetchCommentsFn = func(context.Context, string) ([]model.CommentRecord, error) {
				reads++
				if reads == 1 {
					return nil, nil
				}
				return []model.CommentRecord{{AuthorID: botID, Body: "ping", CreatedAt: now.Add(-time.Minute)}}, nil
			}

			res, err := newEngine().RunCycle(ctx, now)

			Expect(err).NotTo(HaveOccurred())
			Expect(reads).To(Equal(2))
			Expect(res.Outcomes[0].Reason).To(Equal(monitor.ReasonRevalidated))
			Expect(store.appended).To(BeEmpty())
		})

		It("stops between tasks, never mid-write", func() {
			store.tasks = []model.TaskSnapshot{veryLate("a", 20, "x"), veryLate("b", 15, "x"), veryLate("c", 11, "x")}
			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			store.appendFn = func(writeCtx context.Context, _, _, _ string, _ time.Time) error {
				cancel()
				Expect(writeCtx.Err()).NotTo(HaveOccurred())
				return nil
			}

			res, err := newEngine().RunCycle(runCtx, now)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Interrupted).To(BeTrue())
			Expect(res.CommentsPosted).To(Equal(1))
			Expect(store.appended).To(HaveLen(1))
			Expect(state.Stats().CommentsAdded).To(Equal(int64(1)))
		})

		It("recomputes performance after every cycle", func() {
			done := now.AddDate(0, 0, -1)
			store.tasks = []model.TaskSnapshot{
				{ID: "a", AssigneeID: "alice", DueAt: &done, CompletedAt: &done},
				{ID: "b", AssigneeID: "alice", DueAt: daysAgo(now, 2)},
			}

			_, err := newEngine().RunCycle(ctx, now)

			Expect(err).NotTo(HaveOccurred())
			perf := state.Performance()
			Expect(perf).To(HaveKey("alice"))
			Expect(perf["alice"].TotalTasks).To(Equal(2))
			Expect(perf["alice"].OverdueTasks).To(Equal(1))
			Expect(state.Stats().TasksSeenLastCycle).To(Equal(2))
		})

		It("celebrates once across cycles", func() {
			done := now.AddDate(0, 0, -1)
			store.tasks = []model.TaskSnapshot{{ID: "a", AssigneeID: "alice", DueAt: &done, CompletedAt: &done}}
			store.appendFn = func(_ context.Context, taskID, authorID, body string, at time.Time) error {
				store.comments[taskID] = append(store.comments[taskID], model.CommentRecord{AuthorID: authorID, Body: body, CreatedAt: at})
				return nil
			}
			engine := newEngine()

			first, err := engine.RunCycle(ctx, now)
			Expect(err).NotTo(HaveOccurred())
			second, err := engine.RunCycle(ctx, now.Add(48*time.Hour))
			Expect(err).NotTo(HaveOccurred())

			Expect(first.CommentsPosted).To(Equal(1))
			Expect(first.Outcomes[0].Category).To(Equal(model.CategoryCelebration))
			Expect(second.CommentsPosted).To(BeZero())
			Expect(gen.calls).To(HaveLen(1))
		})
	})

	Describe("EngineConfig.Validate", func() {
		It("requires a resolved bot identity", func() {
			cfg.BotID = ""
			var cfgErr *monitor.ConfigurationError
			Expect(errors.As(cfg.Validate(), &cfgErr)).To(BeTrue())
			Expect(cfgErr.Field).To(Equal("bot_id"))
		})

		It("rejects an inverted delay range", func() {
			cfg.MinCommentDelay = 10 * time.Second
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("comment_delay")))
		})

		It("accepts a complete configuration", func() {
			Expect(cfg.Validate()).To(Succeed())
		})

		DescribeTable("rejects non-positive timings",
			func(mutate func(*monitor.EngineConfig), field string) {
				mutate(&cfg)
				var cfgErr *monitor.ConfigurationError
				Expect(errors.As(cfg.Validate(), &cfgErr)).To(BeTrue())
				Expect(cfgErr.Field).To(Equal(field))
			},
			Entry("zero scan interval", func(c *monitor.EngineConfig) { c.ScanInterval = 0 }, "scan_interval"),
			Entry("negative scan interval", func(c *monitor.EngineConfig) { c.ScanInterval = -time.Minute }, "scan_interval"),
			Entry("zero failure backoff", func(c *monitor.EngineConfig) { c.FailureBackoff = 0 }, "failure_backoff"),
			Entry("negative failure backoff", func(c *monitor.EngineConfig) { c.FailureBackoff = -5 * time.Minute }, "failure_backoff"),
			Entry("zero lease", func(c *monitor.EngineConfig) { c.LeaseTTL = 0 }, "lease_ttl"),
		)

		It("carries the scan cadence through NewEngineConfig", func() {
			_, err := monitor.NewEngineConfig(config.MonitorConfig{
				ScanInterval:     0,
				FailureBackoff:   5 * time.Minute,
				MaxTasksPerCycle: 50,
			}, botID)

			var cfgErr *monitor.ConfigurationError
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
			Expect(cfgErr.Field).To(Equal("scan_interval"))
		})
	})
})

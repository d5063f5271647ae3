package monitor_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/monitor"
)

var _ = Describe("Recompute", func() {
	now := wednesday

	// completedTask finishes `late` days after (positive) or before its due
	// date, `ago` days before now.
	completed := func(assignee string, ago, late int) model.TaskSnapshot {
		done := now.AddDate(0, 0, -ago)
		due := done.AddDate(0, 0, -late)
		return model.TaskSnapshot{AssigneeID: assignee, AssigneeName: "Alice", DueAt: &due, CompletedAt: &done}
	}

	It("counts totals, completions, and overdue work per assignee", func() {
		tasks := []model.TaskSnapshot{
			completed("alice", 10, 0),
			completed("alice", 5, 2),
			{AssigneeID: "alice", DueAt: daysAgo(now, 1)},
			{AssigneeID: "alice"},
			{AssigneeID: "bob", DueAt: ptr(now.AddDate(0, 0, 3))},
			{Title: "unassigned"},
		}

		perf := monitor.Recompute(tasks, now)

		Expect(perf).To(HaveLen(2))
		alice := perf["alice"]
		Expect(alice.AssigneeName).To(Equal("Alice"))
		Expect(alice.TotalTasks).To(Equal(4))
		Expect(alice.CompletedTasks).To(Equal(2))
		Expect(alice.OnTimeCompleted).To(Equal(1))
		Expect(alice.OverdueTasks).To(Equal(1))
		Expect(perf["bob"].OverdueTasks).To(BeZero())
	})

	It("counts the on-time streak back from the most recent completion", func() {
		// Oldest first: one late, then three on time.
		tasks := []model.TaskSnapshot{
			completed("alice", 1, -1),
			completed("alice", 20, 3),
			completed("alice", 5, 0),
			completed("alice", 10, -2),
		}

		Expect(monitor.Recompute(tasks, now)["alice"].OnTimeStreak).To(Equal(3))
	})

	It("stops the streak at the first late completion", func() {
		tasks := []model.TaskSnapshot{
			completed("alice", 1, 0),
			completed("alice", 2, 4),
			completed("alice", 3, 0),
		}

		Expect(monitor.Recompute(tasks, now)["alice"].OnTimeStreak).To(Equal(1))
	})

	DescribeTable("trend",
		func(lateness []int, want model.Trend) {
			var tasks []model.TaskSnapshot
			for i, late := range lateness {
				// lateness is oldest first.
				tasks = append(tasks, completed("alice", len(lateness)-i, late))
			}
			Expect(monitor.Recompute(tasks, now)["alice"].Trend).To(Equal(want))
		},
		Entry("too few completions", []int{3, 0}, model.TrendStable),
		Entry("getting better", []int{3, 2, 0, 0}, model.TrendImproving),
		Entry("getting worse", []int{0, 0, 1, 4}, model.TrendDeclining),
		Entry("steady", []int{0, 2, 0, 2}, model.TrendStable),
		Entry("odd count puts the middle in the newer half", []int{2, 0, 0}, model.TrendImproving),
	)

	It("tolerates a completed status without a completion date", func() {
		tasks := []model.TaskSnapshot{{AssigneeID: "alice", Status: model.TaskStatusCompleted, DueAt: ptr(now.Add(24 * time.Hour))}}

		perf := monitor.Recompute(tasks, now)

		Expect(perf["alice"].CompletedTasks).To(Equal(1))
		Expect(perf["alice"].OnTimeStreak).To(Equal(1))
	})
})

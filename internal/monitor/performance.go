package monitor

import (
	"slices"
	"time"

	"basegraph.app/pulse/internal/model"
)

const (
	trendMinCompleted = 3
	trendThreshold    = 0.2
)

type completedTask struct {
	at     time.Time
	onTime bool
}

// Recompute derives per-assignee performance from a single scan. Nothing carries
// over between scans; unassigned tasks are not attributed to anyone.
func Recompute(tasks []model.TaskSnapshot, now time.Time) map[string]model.EmployeePerformance {
	perf := make(map[string]model.EmployeePerformance)
	completed := make(map[string][]completedTask)

	for _, t := range tasks {
		if t.AssigneeID == "" {
			continue
		}
		p := perf[t.AssigneeID]
		p.AssigneeID = t.AssigneeID
		if p.AssigneeName == "" {
			p.AssigneeName = t.AssigneeName
		}
		p.TotalTasks++

		daysLate, _ := DaysLate(t, now)
		if t.IsCompleted() {
			p.CompletedTasks++
			onTime := daysLate <= 0
			if onTime {
				p.OnTimeCompleted++
			}
			var at time.Time
			if t.CompletedAt != nil {
				at = *t.CompletedAt
			}
			completed[t.AssigneeID] = append(completed[t.AssigneeID], completedTask{at: at, onTime: onTime})
		} else if daysLate > 0 {
			p.OverdueTasks++
		}
		perf[t.AssigneeID] = p
	}

	for id, p := range perf {
		done := completed[id]
		slices.SortStableFunc(done, func(a, b completedTask) int { return a.at.Compare(b.at) })
		p.OnTimeStreak = onTimeStreak(done)
		p.Trend = trend(done)
		perf[id] = p
	}
	return perf
}

// onTimeStreak counts the run of on-time completions ending at the most
// recent one. done is sorted oldest-first.
func onTimeStreak(done []completedTask) int {
	streak := 0
	for i := len(done) - 1; i >= 0; i-- {
		if !done[i].onTime {
			break
		}
		streak++
	}
	return streak
}

// trend compares the on-time rate of the newer half of completions against the
// older half. done is sorted oldest-first.
func trend(done []completedTask) model.Trend {
	if len(done) < trendMinCompleted {
		return model.TrendStable
	}
	mid := len(done) / 2
	delta := onTimeRate(done[mid:]) - onTimeRate(done[:mid])
	switch {
	case delta > trendThreshold:
		return model.TrendImproving
	case delta < -trendThreshold:
		return model.TrendDeclining
	default:
		return model.TrendStable
	}
}

func onTimeRate(done []completedTask) float64 {
	if len(done) == 0 {
		return 0
	}
	n := 0
	for _, d := range done {
		if d.onTime {
			n++
		}
	}
	return float64(n) / float64(len(done))
}

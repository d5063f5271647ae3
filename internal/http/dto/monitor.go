package dto

import (
	"sort"
	"time"

	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/scheduler"
)

type PerformanceResponse struct {
	model.EmployeePerformance
	OnTimeRate float64 `json:"on_time_rate"`
}

type MonitorStatusResponse struct {
	Running     bool                  `json:"running"`
	Interval    string                `json:"interval"`
	NextCycleAt *time.Time            `json:"next_cycle_at,omitempty"`
	Stats       model.ScanStats       `json:"stats"`
	Performance []PerformanceResponse `json:"performance"`
}

type ControlResponse struct {
	Running bool   `json:"running"`
	Message string `json:"message"`
}

// ToMonitorStatusResponse orders performance by assignee name, then id.
func ToMonitorStatusResponse(s scheduler.Status) MonitorStatusResponse {
	perf := make([]PerformanceResponse, 0, len(s.Performance))
	for _, p := range s.Performance {
		rate := 0.0
		if p.CompletedTasks > 0 {
			rate = float64(p.OnTimeCompleted) / float64(p.CompletedTasks)
		}
		perf = append(perf, PerformanceResponse{EmployeePerformance: p, OnTimeRate: rate})
	}
	sort.Slice(perf, func(i, j int) bool {
		if perf[i].AssigneeName != perf[j].AssigneeName {
			return perf[i].AssigneeName < perf[j].AssigneeName
		}
		return perf[i].AssigneeID < perf[j].AssigneeID
	})

	return MonitorStatusResponse{
		Running:     s.Running,
		Interval:    s.Interval,
		NextCycleAt: s.NextCycleAt,
		Stats:       s.Stats,
		Performance: perf,
	}
}

package model

type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// EmployeePerformance aggregates one assignee's tasks across a single scan.
type EmployeePerformance struct {
	AssigneeID      string `json:"assignee_id"`
	AssigneeName    string `json:"assignee_name"`
	TotalTasks      int    `json:"total_tasks"`
	CompletedTasks  int    `json:"completed_tasks"`
	OnTimeCompleted int    `json:"on_time_completed"`
	OverdueTasks    int    `json:"overdue_tasks"`
	OnTimeStreak    int    `json:"on_time_streak"`
	Trend           Trend  `json:"trend"`
}

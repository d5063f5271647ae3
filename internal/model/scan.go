package model

import "time"

// ScanStats are process-wide run counters owned by the scheduler.
type ScanStats struct {
	CyclesPerformed    int64      `json:"cycles_performed"`
	CommentsAdded      int64      `json:"comments_added"`
	TasksSeenLastCycle int        `json:"tasks_seen_last_cycle"`
	LastCycleAt        *time.Time `json:"last_cycle_at,omitempty"`

	SkippedCycles    int64  `json:"skipped_cycles"`
	FailedCycles     int64  `json:"failed_cycles"`
	GenerationErrors int64  `json:"generation_errors"`
	WriteErrors      int64  `json:"write_errors"`
	LastError        string `json:"last_error,omitempty"`
}

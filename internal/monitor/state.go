package monitor

import (
	"maps"
	"sync"

	"basegraph.app/pulse/internal/model"
)

// EngineState is the only cross-cycle state: run counters and the last
// computed performance map. The scheduler owns it; the status API reads
// snapshots.
type EngineState struct {
	mu          sync.RWMutex
	stats       model.ScanStats
	performance map[string]model.EmployeePerformance
}

func NewEngineState() *EngineState {
	return &EngineState{performance: map[string]model.EmployeePerformance{}}
}

// Restore seeds the counters, e.g. from a persisted copy at startup.
func (s *EngineState) Restore(stats model.ScanStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
}

func (s *EngineState) Stats() model.ScanStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *EngineState) Performance() map[string]model.EmployeePerformance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.performance)
}

func (s *EngineState) recordSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.SkippedCycles++
}

// RecordFailure leaves the last successful cycle's figures in place.
func (s *EngineState) RecordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.FailedCycles++
	s.stats.LastError = err.Error()
}

// recordAborted keeps the last successful cycle's figures but still counts
// what the aborted cycle wrote before it failed.
func (s *EngineState) recordAborted(res *CycleResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.FailedCycles++
	s.stats.LastError = err.Error()
	s.stats.CommentsAdded += int64(res.CommentsPosted)
	s.stats.GenerationErrors += int64(res.GenerationErrors)
	s.stats.WriteErrors += int64(res.WriteErrors)
}

func (s *EngineState) recordCycle(res *CycleResult, perf map[string]model.EmployeePerformance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := res.At
	s.stats.CyclesPerformed++
	s.stats.CommentsAdded += int64(res.CommentsPosted)
	s.stats.TasksSeenLastCycle = res.TasksSeen
	s.stats.LastCycleAt = &at
	s.stats.GenerationErrors += int64(res.GenerationErrors)
	s.stats.WriteErrors += int64(res.WriteErrors)
	s.stats.LastError = ""
	s.performance = perf
}


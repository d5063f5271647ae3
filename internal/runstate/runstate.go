// Package runstate keeps monitor run state in redis so that it survives
// restarts and is shared by every replica.
package runstate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/pulse/internal/model"
)

type StatsStore struct {
	client redis.Cmdable
	key    string
}

func NewStatsStore(client redis.Cmdable, prefix string) *StatsStore {
	return &StatsStore{client: client, key: prefix + ":scan_stats"}
}

func (s *StatsStore) Save(ctx context.Context, stats model.ScanStats) error {
	if err := s.client.HSet(ctx, s.key, statsFields(stats)).Err(); err != nil {
		return fmt.Errorf("saving scan stats: %w", err)
	}
	if stats.LastCycleAt == nil {
		if err := s.client.HDel(ctx, s.key, "last_cycle_at").Err(); err != nil {
			return fmt.Errorf("saving scan stats: %w", err)
		}
	}
	return nil
}

// Load returns ok=false when nothing has been saved yet.
func (s *StatsStore) Load(ctx context.Context) (model.ScanStats, bool, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return model.ScanStats{}, false, fmt.Errorf("loading scan stats: %w", err)
	}
	if len(values) == 0 {
		return model.ScanStats{}, false, nil
	}
	stats, err := parseStats(values)
	if err != nil {
		return model.ScanStats{}, false, err
	}
	return stats, true, nil
}

func statsFields(s model.ScanStats) map[string]any {
	fields := map[string]any{
		"cycles_performed":      s.CyclesPerformed,
		"comments_added":        s.CommentsAdded,
		"tasks_seen_last_cycle": s.TasksSeenLastCycle,
		"skipped_cycles":        s.SkippedCycles,
		"failed_cycles":         s.FailedCycles,
		"generation_errors":     s.GenerationErrors,
		"write_errors":          s.WriteErrors,
		"last_error":            s.LastError,
	}
	if s.LastCycleAt != nil {
		fields["last_cycle_at"] = s.LastCycleAt.UTC().Format(time.RFC3339Nano)
	}
	return fields
}

func parseStats(values map[string]string) (model.ScanStats, error) {
	var stats model.ScanStats
	var err error

	int64Field := func(key string, dst *int64) {
		if err != nil {
			return
		}
		raw, ok := values[key]
		if !ok || raw == "" {
			return
		}
		*dst, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			err = fmt.Errorf("parsing %s: %w", key, err)
		}
	}

	int64Field("cycles_performed", &stats.CyclesPerformed)
	int64Field("comments_added", &stats.CommentsAdded)
	int64Field("skipped_cycles", &stats.SkippedCycles)
	int64Field("failed_cycles", &stats.FailedCycles)
	int64Field("generation_errors", &stats.GenerationErrors)
	int64Field("write_errors", &stats.WriteErrors)

	var seen int64
	int64Field("tasks_seen_last_cycle", &seen)
	stats.TasksSeenLastCycle = int(seen)

	if err != nil {
		return model.ScanStats{}, err
	}

	if raw := values["last_cycle_at"]; raw != "" {
		at, perr := time.Parse(time.RFC3339Nano, raw)
		if perr != nil {
			return model.ScanStats{}, fmt.Errorf("parsing last_cycle_at: %w", perr)
		}
		stats.LastCycleAt = &at
	}
	stats.LastError = values["last_error"]

	return stats, nil
}

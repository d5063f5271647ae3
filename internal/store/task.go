package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"basegraph.app/pulse/common/id"
	"basegraph.app/pulse/core/db/sqlc"
	"basegraph.app/pulse/internal/model"
)

// TaskStore is the postgres-backed task store. Bot comment counts are derived
// from the comment table, so the bot's id is fixed at construction.
type TaskStore struct {
	queries  Queries
	tx       TxRunner
	botID    int64
	lookback time.Duration
	now      func() time.Time
}

func NewTaskStore(queries Queries, tx TxRunner, botID string, completedLookback time.Duration) (*TaskStore, error) {
	bot, err := parseID(botID)
	if err != nil {
		return nil, fmt.Errorf("bot id: %w", err)
	}
	return &TaskStore{
		queries:  queries,
		tx:       tx,
		botID:    bot,
		lookback: completedLookback,
		now:      time.Now,
	}, nil
}

func (s *TaskStore) FetchOpenTasks(ctx context.Context) ([]model.TaskSnapshot, error) {
	rows, err := s.queries.ListMonitoredTasks(ctx, sqlc.ListMonitoredTasksParams{
		BotID:          s.botID,
		CompletedSince: pgtype.Timestamptz{Time: s.now().Add(-s.lookback), Valid: true},
	})
	if err != nil {
		return nil, err
	}

	tasks := make([]model.TaskSnapshot, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, toTaskSnapshot(row))
	}
	return tasks, nil
}

func (s *TaskStore) FetchComments(ctx context.Context, taskID string) ([]model.CommentRecord, error) {
	tid, err := parseID(taskID)
	if err != nil {
		return nil, err
	}
	rows, err := s.queries.ListTaskComments(ctx, tid)
	if err != nil {
		return nil, err
	}

	comments := make([]model.CommentRecord, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, model.CommentRecord{
			ID:         strconv.FormatInt(row.ID, 10),
			TaskID:     strconv.FormatInt(row.TaskID, 10),
			AuthorID:   strconv.FormatInt(row.AuthorID, 10),
			AuthorName: row.AuthorName,
			Body:       row.Body,
			CreatedAt:  row.CreatedAt.Time,
		})
	}
	return comments, nil
}

// AppendComment inserts a new comment; it never updates an existing one.
func (s *TaskStore) AppendComment(ctx context.Context, taskID, authorID, body string, at time.Time) error {
	tid, err := parseID(taskID)
	if err != nil {
		return err
	}
	aid, err := parseID(authorID)
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(q Queries) error {
		n, err := q.TouchTask(ctx, tid)
		if err != nil {
			return fmt.Errorf("touching task: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		}
		if _, err := q.InsertTaskComment(ctx, sqlc.InsertTaskCommentParams{
			ID:        id.New(),
			TaskID:    tid,
			AuthorID:  aid,
			Body:      body,
			CreatedAt: pgtype.Timestamptz{Time: at, Valid: true},
		}); err != nil {
			return fmt.Errorf("inserting comment: %w", err)
		}
		return nil
	})
}

func toTaskSnapshot(row sqlc.ListMonitoredTasksRow) model.TaskSnapshot {
	t := model.TaskSnapshot{
		ID:               strconv.FormatInt(row.ID, 10),
		Title:            row.Title,
		Status:           model.TaskStatus(row.Status),
		DueAt:            datePtr(row.DueDate),
		CompletedAt:      timePtr(row.CompletedAt),
		BotCommentCount:  int(row.BotCommentCount),
		LastBotCommentAt: timePtr(row.LastBotCommentAt),
	}
	if row.AssigneeID != nil {
		t.AssigneeID = strconv.FormatInt(*row.AssigneeID, 10)
	}
	if row.AssigneeName != nil {
		t.AssigneeName = *row.AssigneeName
	}
	return t
}

// datePtr renders a DATE as midnight UTC, the calendar-date convention of
// TaskSnapshot.DueAt.
func datePtr(d pgtype.Date) *time.Time {
	if !d.Valid || d.InfinityModifier != pgtype.Finite {
		return nil
	}
	y, m, day := d.Time.Date()
	t := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

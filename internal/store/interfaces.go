package store

import (
	"context"
	"errors"

	"basegraph.app/pulse/core/db/sqlc"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidID is returned for ids that are not snowflake integers.
var ErrInvalidID = errors.New("invalid id")

// Queries is the subset of sqlc.Queries the stores use.
type Queries interface {
	ListMonitoredTasks(ctx context.Context, arg sqlc.ListMonitoredTasksParams) ([]sqlc.ListMonitoredTasksRow, error)
	ListTaskComments(ctx context.Context, taskID int64) ([]sqlc.ListTaskCommentsRow, error)
	InsertTaskComment(ctx context.Context, arg sqlc.InsertTaskCommentParams) (sqlc.TaskComment, error)
	TouchTask(ctx context.Context, id int64) (int64, error)
	GetUserByName(ctx context.Context, name string) (sqlc.User, error)
	UpsertUser(ctx context.Context, arg sqlc.UpsertUserParams) (sqlc.User, error)
}

// TxRunner runs fn inside one transaction. *db.DB satisfies it through
// NewTxRunner.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(q Queries) error) error
}

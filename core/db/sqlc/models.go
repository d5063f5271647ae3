package sqlc

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID        int64
	Name      string
	CreatedAt pgtype.Timestamptz
}

type Task struct {
	ID          int64
	Title       string
	AssigneeID  *int64
	DueDate     pgtype.Date
	CompletedAt pgtype.Timestamptz
	Status      string
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

type TaskComment struct {
	ID        int64
	TaskID    int64
	AuthorID  int64
	Body      string
	CreatedAt pgtype.Timestamptz
}

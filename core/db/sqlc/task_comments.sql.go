package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const listTaskComments = `-- name: ListTaskComments :many
SELECT c.id, c.task_id, c.author_id, u.name AS author_name, c.body, c.created_at
FROM task_comments c
JOIN users u ON u.id = c.author_id
WHERE c.task_id = $1
ORDER BY c.created_at, c.id
`

type ListTaskCommentsRow struct {
	ID         int64
	TaskID     int64
	AuthorID   int64
	AuthorName string
	Body       string
	CreatedAt  pgtype.Timestamptz
}

func (q *Queries) ListTaskComments(ctx context.Context, taskID int64) ([]ListTaskCommentsRow, error) {
	rows, err := q.db.Query(ctx, listTaskComments, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListTaskCommentsRow
	for rows.Next() {
		var i ListTaskCommentsRow
		if err := rows.Scan(
			&i.ID,
			&i.TaskID,
			&i.AuthorID,
			&i.AuthorName,
			&i.Body,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertTaskComment = `-- name: InsertTaskComment :one
INSERT INTO task_comments (id, task_id, author_id, body, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, task_id, author_id, body, created_at
`

type InsertTaskCommentParams struct {
	ID        int64
	TaskID    int64
	AuthorID  int64
	Body      string
	CreatedAt pgtype.Timestamptz
}

func (q *Queries) InsertTaskComment(ctx context.Context, arg InsertTaskCommentParams) (TaskComment, error) {
	row := q.db.QueryRow(ctx, insertTaskComment,
		arg.ID,
		arg.TaskID,
		arg.AuthorID,
		arg.Body,
		arg.CreatedAt,
	)
	var i TaskComment
	err := row.Scan(
		&i.ID,
		&i.TaskID,
		&i.AuthorID,
		&i.Body,
		&i.CreatedAt,
	)
	return i, err
}

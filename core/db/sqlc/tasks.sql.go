package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const listMonitoredTasks = `-- name: ListMonitoredTasks :many
SELECT
    t.id,
    t.title,
    t.assignee_id,
    u.name AS assignee_name,
    t.due_date,
    t.completed_at,
    t.status,
    COUNT(c.id) FILTER (WHERE c.author_id = $1)::BIGINT AS bot_comment_count,
    MAX(c.created_at) FILTER (WHERE c.author_id = $1) AS last_bot_comment_at
FROM tasks t
LEFT JOIN users u ON u.id = t.assignee_id
LEFT JOIN task_comments c ON c.task_id = t.id
WHERE (t.completed_at IS NULL AND t.status = 'open')
   OR t.completed_at >= $2
GROUP BY t.id, u.name
ORDER BY t.id
`

type ListMonitoredTasksParams struct {
	BotID          int64
	CompletedSince pgtype.Timestamptz
}

type ListMonitoredTasksRow struct {
	ID               int64
	Title            string
	AssigneeID       *int64
	AssigneeName     *string
	DueDate          pgtype.Date
	CompletedAt      pgtype.Timestamptz
	Status           string
	BotCommentCount  int64
	LastBotCommentAt pgtype.Timestamptz
}

// Open tasks plus tasks completed since the cutoff, with the bot's comment
// count and latest bot comment per task.
func (q *Queries) ListMonitoredTasks(ctx context.Context, arg ListMonitoredTasksParams) ([]ListMonitoredTasksRow, error) {
	rows, err := q.db.Query(ctx, listMonitoredTasks, arg.BotID, arg.CompletedSince)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListMonitoredTasksRow
	for rows.Next() {
		var i ListMonitoredTasksRow
		if err := rows.Scan(
			&i.ID,
			&i.Title,
			&i.AssigneeID,
			&i.AssigneeName,
			&i.DueDate,
			&i.CompletedAt,
			&i.Status,
			&i.BotCommentCount,
			&i.LastBotCommentAt,
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

const touchTask = `-- name: TouchTask :execrows
UPDATE tasks SET updated_at = now() WHERE id = $1
`

func (q *Queries) TouchTask(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, touchTask, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

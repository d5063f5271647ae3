package sqlc

import (
	"context"
)

const getUserByName = `-- name: GetUserByName :one
SELECT id, name, created_at FROM users WHERE lower(name) = lower($1)
`

func (q *Queries) GetUserByName(ctx context.Context, name string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByName, name)
	var i User
	err := row.Scan(&i.ID, &i.Name, &i.CreatedAt)
	return i, err
}

const upsertUser = `-- name: UpsertUser :one
INSERT INTO users (id, name)
VALUES ($1, $2)
ON CONFLICT (lower(name)) DO UPDATE SET name = users.name
RETURNING id, name, created_at
`

type UpsertUserParams struct {
	ID   int64
	Name string
}

func (q *Queries) UpsertUser(ctx context.Context, arg UpsertUserParams) (User, error) {
	row := q.db.QueryRow(ctx, upsertUser, arg.ID, arg.Name)
	var i User
	err := row.Scan(&i.ID, &i.Name, &i.CreatedAt)
	return i, err
}

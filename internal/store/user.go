package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"basegraph.app/pulse/common/id"
	"basegraph.app/pulse/core/db/sqlc"
	"basegraph.app/pulse/internal/model"
)

// UserDirectory resolves display names against the users table.
type UserDirectory struct {
	queries Queries
}

func NewUserDirectory(queries Queries) *UserDirectory {
	return &UserDirectory{queries: queries}
}

func (d *UserDirectory) Resolve(ctx context.Context, displayName string) (string, string, error) {
	row, err := d.queries.GetUserByName(ctx, displayName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", fmt.Errorf("user %q: %w", displayName, ErrNotFound)
		}
		return "", "", err
	}
	u := toUserModel(row)
	return u.ID, u.Name, nil
}

// Ensure registers name if it is unknown and returns the stored user. Used to
// bootstrap the bot's own account.
func (d *UserDirectory) Ensure(ctx context.Context, name string) (*model.User, error) {
	row, err := d.queries.UpsertUser(ctx, sqlc.UpsertUserParams{
		ID:   id.New(),
		Name: name,
	})
	if err != nil {
		return nil, err
	}
	return toUserModel(row), nil
}

func toUserModel(row sqlc.User) *model.User {
	return &model.User{
		ID:   strconv.FormatInt(row.ID, 10),
		Name: row.Name,
	}
}

func parseID(s string) (int64, error) {
	v, err := id.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidID, s)
	}
	return v, nil
}

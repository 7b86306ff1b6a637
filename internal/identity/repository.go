package identity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"littlelemon/internal/apperr"
	"littlelemon/internal/db"
	"littlelemon/internal/logger"

	"go.uber.org/zap"
)

const defaultTimeout = 2 * time.Second

// Gateway resolves users to their role memberships.
type Gateway interface {
	GetRoles(ctx context.Context, userID int64) (Roles, error)
	RoleOf(ctx context.Context, userID int64, role Role) (bool, error)
}

type repository struct {
	db      *sql.DB
	timeout time.Duration
}

func NewRepository(database *sql.DB, timeout time.Duration) Gateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &repository{db: database, timeout: timeout}
}

func (r *repository) GetRoles(ctx context.Context, userID int64) (Roles, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetRoles"),
		zap.Int64("user_id", userID),
	)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT group_name
		FROM user_groups
		WHERE user_id = $1
		ORDER BY group_name
	`, userID)
	if err != nil {
		return nil, r.wrap(ctx, log, err)
	}
	defer rows.Close()

	var found []Role
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, r.wrap(ctx, log, err)
		}
		role, ok := ParseRole(name)
		if !ok {
			log.Warn("ignoring unknown group", zap.String("group", name))
			continue
		}
		found = append(found, role)
	}
	if err := rows.Err(); err != nil {
		return nil, r.wrap(ctx, log, err)
	}

	return NewRoles(found...), nil
}

func (r *repository) RoleOf(ctx context.Context, userID int64, role Role) (bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "RoleOf"),
		zap.Int64("user_id", userID),
		zap.String("role", string(role)),
	)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM user_groups
			WHERE user_id = $1 AND LOWER(group_name) = LOWER($2)
		)
	`, userID, string(role)).Scan(&exists)
	if err != nil {
		return false, r.wrap(ctx, log, err)
	}

	return exists, nil
}

func (r *repository) wrap(ctx context.Context, log *zap.Logger, err error) error {
	if ctx.Err() != nil || db.IsUnavailable(err) {
		log.Warn("identity lookup timed out", zap.Error(err))
		return fmt.Errorf("%w: identity: %v", apperr.ErrUpstreamUnavailable, err)
	}
	log.Error("identity lookup failed", zap.Error(err))
	return fmt.Errorf("%w: %v", ErrFailedGetRoles, err)
}

package activity

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the activity_logs table. Writes go through
// shared.ActivityLogger; this side only queries and purges.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Window returns entries newest first, offset-paged. Limit is trusted;
// the service sizes it.
func (r *Repository) Window(ctx context.Context, f Filters, limit, offset int) ([]Entry, error) {
	if r == nil {
		return nil, errors.New("activity repository not initialised")
	}

	query := `SELECT id, action, entity, COALESCE(entity_id, 0), description, COALESCE(actor, ''), old_values, new_values, created_at
FROM activity_logs WHERE 1=1`
	args := []any{}
	argCount := 0

	if !f.From.IsZero() {
		argCount++
		query += ` AND created_at >= $` + strconv.Itoa(argCount)
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		argCount++
		query += ` AND created_at < $` + strconv.Itoa(argCount)
		args = append(args, f.To)
	}
	if f.Action != "" {
		argCount++
		query += ` AND action = $` + strconv.Itoa(argCount)
		args = append(args, f.Action)
	}
	if f.Entity != "" {
		argCount++
		query += ` AND entity = $` + strconv.Itoa(argCount)
		args = append(args, f.Entity)
	}
	if f.EntityID != nil {
		argCount++
		query += ` AND entity_id = $` + strconv.Itoa(argCount)
		args = append(args, *f.EntityID)
	}

	argCount++
	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Action, &e.Entity, &e.EntityID, &e.Description, &e.Actor, &e.OldValues, &e.NewValues, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Purge deletes entries recorded before the cutoff and reports how many
// went.
func (r *Repository) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	if r == nil {
		return 0, errors.New("activity repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM activity_logs WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

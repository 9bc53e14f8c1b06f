package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Actions accepted by the activity log.
const (
	ActionCreate  = "CREATE"
	ActionUpdate  = "UPDATE"
	ActionDelete  = "DELETE"
	ActionVerify  = "VERIFY"
	ActionRestore = "RESTORE"
	ActionExport  = "EXPORT"
	ActionImport  = "IMPORT"
	ActionBackup  = "BACKUP"
)

var allowedActions = map[string]struct{}{
	ActionCreate:  {},
	ActionUpdate:  {},
	ActionDelete:  {},
	ActionVerify:  {},
	ActionRestore: {},
	ActionExport:  {},
	ActionImport:  {},
	ActionBackup:  {},
}

// IsAllowedAction reports whether the action is one the log accepts.
func IsAllowedAction(action string) bool {
	_, ok := allowedActions[action]
	return ok
}

// ActivityEntry represents a record stored in activity_logs.
type ActivityEntry struct {
	Action      string
	Entity      string
	EntityID    int64
	Description string
	Actor       string
	OldValues   map[string]any
	NewValues   map[string]any
	At          time.Time
}

// ActivityRecorder is the sink business services emit audit events into.
// Recording is best effort: callers run it after commit and treat a
// failure as log-worthy, never as a reason to fail the operation.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) error
}

// ActivityLogger writes records into activity_logs.
type ActivityLogger struct {
	pool *pgxpool.Pool
}

// NewActivityLogger returns a new ActivityLogger.
func NewActivityLogger(pool *pgxpool.Pool) *ActivityLogger {
	return &ActivityLogger{pool: pool}
}

// Record persists the entry.
func (l *ActivityLogger) Record(ctx context.Context, entry ActivityEntry) error {
	if l == nil {
		return errors.New("activity logger not initialised")
	}
	if _, ok := allowedActions[entry.Action]; !ok {
		return errors.New("activity log action not allowed: " + entry.Action)
	}
	if entry.Entity == "" || entry.Description == "" {
		return errors.New("activity log requires entity and description")
	}

	oldJSON, err := marshalValues(entry.OldValues)
	if err != nil {
		return err
	}
	newJSON, err := marshalValues(entry.NewValues)
	if err != nil {
		return err
	}

	_, err = l.pool.Exec(ctx, `
		INSERT INTO activity_logs (action, entity, entity_id, description, actor, old_values, new_values, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, COALESCE(NULLIF($8, '0001-01-01 00:00:00+00'::timestamptz), NOW()))`,
		entry.Action, entry.Entity, entry.EntityID, entry.Description, entry.Actor, oldJSON, newJSON, entry.At)
	return err
}

func marshalValues(values map[string]any) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Writer persists audit events from the queue into authz_audit_log.
type Writer struct {
	pool *pgxpool.Pool
}

// NewWriter constructs a Writer.
func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// TaskTypeAuditPrune is the asynq task type for retention cleanup.
const TaskTypeAuditPrune = "authz:audit:prune"

type prunePayload struct {
	KeepDays int `json:"keep_days"`
}

// NewPruneTask builds a retention cleanup task removing events older than
// keepDays days.
func NewPruneTask(keepDays int) (*asynq.Task, error) {
	payload, err := json.Marshal(prunePayload{KeepDays: keepDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditPrune, payload), nil
}

// HandleTask processes one TaskTypePolicyAudit task.
func (w *Writer) HandleTask(ctx context.Context, t *asynq.Task) error {
	var event Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return asynq.SkipRetry
	}
	_, err := w.pool.Exec(ctx,
		`INSERT INTO authz_audit_log (id, actor, action, subject, domain, object, verb, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Actor, event.Action, event.Subject, event.Domain, event.Object, event.Verb, event.At)
	if err != nil {
		return fmt.Errorf("audit: insert event %s: %w", event.ID, err)
	}
	return nil
}

// HandlePruneTask deletes audit events past the retention window.
func (w *Writer) HandlePruneTask(ctx context.Context, t *asynq.Task) error {
	var payload prunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.KeepDays <= 0 {
		payload.KeepDays = 90
	}
	tag, err := w.pool.Exec(ctx,
		`DELETE FROM authz_audit_log WHERE occurred_at < now() - ($1 * interval '1 day')`,
		payload.KeepDays)
	if err != nil {
		return fmt.Errorf("audit: prune events: %w", err)
	}
	if rows := tag.RowsAffected(); rows > 0 {
		if rw := t.ResultWriter(); rw != nil {
			_, _ = rw.Write([]byte(fmt.Sprintf("pruned %d", rows)))
		}
	}
	return nil
}

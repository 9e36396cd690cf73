package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskTypePolicyAudit is the asynq task type carrying one audit event.
const TaskTypePolicyAudit = "authz:audit"

// Enqueuer is the slice of *asynq.Client the recorder needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Recorder enqueues audit events. Failures are logged, never returned: the
// outcome of a policy mutation must not depend on the audit sink. A nil
// Recorder is a no-op.
type Recorder struct {
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewRecorder constructs a Recorder.
func NewRecorder(enqueuer Enqueuer, logger *slog.Logger) *Recorder {
	return &Recorder{enqueuer: enqueuer, logger: logger}
}

// Record fills in the event identity and timestamp and enqueues it.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil || r.enqueuer == nil {
		return
	}
	event.ID = uuid.NewString()
	event.At = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		r.warn("marshal audit event", err)
		return
	}
	task := asynq.NewTask(TaskTypePolicyAudit, payload, asynq.MaxRetry(5))
	if _, err := r.enqueuer.EnqueueContext(ctx, task); err != nil {
		r.warn("enqueue audit event", err)
	}
}

func (r *Recorder) warn(msg string, err error) {
	if r.logger != nil {
		r.logger.Warn(msg, slog.Any("error", err))
	}
}

package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (c *captureEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func TestRecorderFillsIdentityAndEnqueues(t *testing.T) {
	enq := &captureEnqueuer{}
	rec := NewRecorder(enq, nil)

	rec.Record(context.Background(), Event{
		Actor:   "admin",
		Action:  ActionGrant,
		Subject: "alice",
		Domain:  "d1",
		Object:  "doc",
		Verb:    "read",
	})

	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskTypePolicyAudit, enq.tasks[0].Type())

	var event Event
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &event))
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.At.IsZero())
	assert.Equal(t, ActionGrant, event.Action)
	assert.Equal(t, "alice", event.Subject)
}

func TestRecorderSwallowsEnqueueFailure(t *testing.T) {
	enq := &captureEnqueuer{err: errors.New("redis down")}
	rec := NewRecorder(enq, nil)

	// Must not panic or surface the error.
	rec.Record(context.Background(), Event{Actor: "admin", Action: ActionRevoke, Subject: "alice"})
	assert.Empty(t, enq.tasks)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var rec *Recorder
	rec.Record(context.Background(), Event{Action: ActionDeleteUser})
}

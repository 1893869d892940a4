package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/notify"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	emails        []notify.EmailJob
	notifications []notify.Notification
	err           error
}

func (s *recordingSink) EnqueueEmail(_ context.Context, job notify.EmailJob) error {
	if s.err != nil {
		return s.err
	}
	s.emails = append(s.emails, job)
	return nil
}

func (s *recordingSink) CreateNotification(_ context.Context, n notify.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.notifications = append(s.notifications, n)
	return nil
}

func TestDispatcher_FillsDefaults(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	d := notify.NewDispatcher(sink, nil)

	d.EnqueueEmail(ctx, notify.EmailJob{
		ReferenceID: "app-1",
		EmailType:   notify.EmailLeaveApproved,
		Recipients:  []notify.Recipient{{Email: "u-1@example.com", Type: "to"}},
	})
	d.Notify(ctx, notify.Notification{UserID: "u-1", Title: "Approved"})

	require.Len(t, sink.emails, 1)
	job := sink.emails[0]
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, notify.ModuleLeave, job.ModuleType)
	assert.Equal(t, notify.StatusPending, job.Status)
	assert.Equal(t, notify.PriorityNormal, job.Priority)
	assert.False(t, job.CreatedAt.IsZero())

	require.Len(t, sink.notifications, 1)
	assert.NotEmpty(t, sink.notifications[0].ID)
	assert.False(t, sink.notifications[0].IsRead)
}

func TestDispatcher_DropsUnaddressed(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	d := notify.NewDispatcher(sink, nil)

	d.EnqueueEmail(ctx, notify.EmailJob{EmailType: notify.EmailLeaveSubmitted})
	d.Notify(ctx, notify.Notification{Title: "nobody"})

	assert.Empty(t, sink.emails)
	assert.Empty(t, sink.notifications)
}

func TestDispatcher_SwallowsSinkErrors(t *testing.T) {
	// GIVEN: a sink that always fails
	core, logs := observer.New(zapcore.WarnLevel)
	d := notify.NewDispatcher(&recordingSink{err: errors.New("queue down")}, zap.New(core))

	// WHEN: both kinds of record are written
	assert.NotPanics(t, func() {
		d.EnqueueEmail(context.Background(), notify.EmailJob{
			EmailType:  notify.EmailLeaveRejected,
			Recipients: []notify.Recipient{{Email: "a@example.com", Type: "to"}},
		})
		d.Notify(context.Background(), notify.Notification{UserID: "u-1"})
	})

	// THEN: the failures are logged, never returned
	assert.Equal(t, 1, logs.FilterMessage("enqueue email failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("create notification failed").Len())
}

func TestDispatcher_NilIsNoop(t *testing.T) {
	var d *notify.Dispatcher
	assert.NotPanics(t, func() {
		d.EnqueueEmail(context.Background(), notify.EmailJob{Recipients: []notify.Recipient{{Email: "x@example.com"}}})
		d.Notify(context.Background(), notify.Notification{UserID: "u-1"})
	})
}

// Package notify records outbound email jobs and in-app notifications.
//
// The leave engine only writes to the outbox; delivery is a separate consumer.
// A failed enqueue is logged and swallowed so it can never undo a committed
// balance change.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const ModuleLeave = "leave"

// Email types emitted for application lifecycle events.
const (
	EmailLeaveSubmitted = "leave_submitted"
	EmailLeaveApproved  = "leave_approved"
	EmailLeaveRejected  = "leave_rejected"
	EmailLeaveWithdrawn = "leave_withdrawn"
	EmailLeaveCancelled = "leave_cancelled"
	EmailMonthlyCredit  = "leave_monthly_credit"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

const (
	PriorityHigh   = 1
	PriorityNormal = 5
	PriorityLow    = 9
)

type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Type  string `json:"type"` // "to" or "cc"
}

// EmailJob is one row of the email queue.
type EmailJob struct {
	ID          string         `json:"id"`
	ReferenceID string         `json:"reference_id"`
	ModuleType  string         `json:"module_type"`
	EmailType   string         `json:"email_type"`
	Data        map[string]any `json:"email_data"`
	Recipients  []Recipient    `json:"recipients"`
	Status      string         `json:"status"`
	Priority    int            `json:"priority"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Notification is an in-app message shown to one user.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
}

// Sink persists outbox records.
type Sink interface {
	EnqueueEmail(ctx context.Context, job EmailJob) error
	CreateNotification(ctx context.Context, n Notification) error
}

// Reader lists outbox records.
type Reader interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error)
	ListPendingEmails(ctx context.Context, limit int) ([]EmailJob, error)
}

// Dispatcher is fire-and-forget on top of a Sink. A nil Dispatcher drops everything.
type Dispatcher struct {
	sink   Sink
	logger *zap.Logger
	now    func() time.Time
}

func NewDispatcher(sink Sink, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sink: sink, logger: logger, now: time.Now}
}

func (d *Dispatcher) EnqueueEmail(ctx context.Context, job EmailJob) {
	if d == nil || d.sink == nil || len(job.Recipients) == 0 {
		return
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.ModuleType == "" {
		job.ModuleType = ModuleLeave
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	if job.Priority == 0 {
		job.Priority = PriorityNormal
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = d.now().UTC()
	}
	if err := d.sink.EnqueueEmail(ctx, job); err != nil {
		d.logger.Warn("enqueue email failed",
			zap.String("email_type", job.EmailType),
			zap.String("reference_id", job.ReferenceID),
			zap.Error(err))
	}
}

func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	if d == nil || d.sink == nil || n.UserID == "" {
		return
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.now().UTC()
	}
	if err := d.sink.CreateNotification(ctx, n); err != nil {
		d.logger.Warn("create notification failed",
			zap.String("user_id", n.UserID),
			zap.String("type", n.Type),
			zap.Error(err))
	}
}

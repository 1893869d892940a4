package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/leave-engine/notify"
)

// =============================================================================
// OUTBOX (notify.Sink / notify.Reader)
// =============================================================================

func (c *conn) EnqueueEmail(ctx context.Context, job notify.EmailJob) error {
	data, err := json.Marshal(job.Data)
	if err != nil {
		return fmt.Errorf("marshal email data: %w", err)
	}
	recipients, err := json.Marshal(job.Recipients)
	if err != nil {
		return fmt.Errorf("marshal recipients: %w", err)
	}
	err = c.exec(ctx, `
		INSERT INTO email_queue
		(id, reference_id, module_type, email_type, email_data, recipients, status, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.ReferenceID, job.ModuleType, job.EmailType, string(data), string(recipients),
		job.Status, job.Priority, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}

func (c *conn) CreateNotification(ctx context.Context, n notify.Notification) error {
	var data sql.NullString
	if len(n.Data) > 0 {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("marshal notification data: %w", err)
		}
		data = sql.NullString{String: string(raw), Valid: true}
	}
	err := c.exec(ctx, `
		INSERT INTO notifications (id, user_id, title, message, type, data, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, data, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

type notificationRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	Title     string         `db:"title"`
	Message   string         `db:"message"`
	Type      string         `db:"type"`
	Data      sql.NullString `db:"data"`
	IsRead    bool           `db:"is_read"`
	CreatedAt time.Time      `db:"created_at"`
}

func (c *conn) ListNotifications(ctx context.Context, userID string, limit int) ([]notify.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []notificationRow
	err := c.selectAll(ctx, &rows, `
		SELECT id, user_id, title, message, type, data, is_read, created_at
		FROM notifications WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]notify.Notification, len(rows))
	for i, r := range rows {
		out[i] = notify.Notification{
			ID:        r.ID,
			UserID:    r.UserID,
			Title:     r.Title,
			Message:   r.Message,
			Type:      r.Type,
			IsRead:    r.IsRead,
			CreatedAt: r.CreatedAt,
		}
		if r.Data.Valid {
			_ = json.Unmarshal([]byte(r.Data.String), &out[i].Data)
		}
	}
	return out, nil
}

type emailRow struct {
	ID          string    `db:"id"`
	ReferenceID string    `db:"reference_id"`
	ModuleType  string    `db:"module_type"`
	EmailType   string    `db:"email_type"`
	Data        string    `db:"email_data"`
	Recipients  string    `db:"recipients"`
	Status      string    `db:"status"`
	Priority    int       `db:"priority"`
	CreatedAt   time.Time `db:"created_at"`
}

func (c *conn) ListPendingEmails(ctx context.Context, limit int) ([]notify.EmailJob, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []emailRow
	err := c.selectAll(ctx, &rows, `
		SELECT id, reference_id, module_type, email_type, email_data, recipients, status, priority, created_at
		FROM email_queue WHERE status = ?
		ORDER BY priority, created_at LIMIT ?`, notify.StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending emails: %w", err)
	}
	out := make([]notify.EmailJob, len(rows))
	for i, r := range rows {
		job := notify.EmailJob{
			ID:          r.ID,
			ReferenceID: r.ReferenceID,
			ModuleType:  r.ModuleType,
			EmailType:   r.EmailType,
			Status:      r.Status,
			Priority:    r.Priority,
			CreatedAt:   r.CreatedAt,
		}
		if err := json.Unmarshal([]byte(r.Data), &job.Data); err != nil {
			return nil, fmt.Errorf("decode email data %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(r.Recipients), &job.Recipients); err != nil {
			return nil, fmt.Errorf("decode recipients %s: %w", r.ID, err)
		}
		out[i] = job
	}
	return out, nil
}

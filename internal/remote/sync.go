// Package remote mirrors delivered notifications to the remote durable
// store for cross-device visibility. The whole package is best-effort:
// every failure is logged and swallowed here, and nothing in the local
// delivery path ever waits on it.
package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"notification-engine/internal/common/database"
	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/metrics"
	"notification-engine/internal/models"

	"github.com/lib/pq"
)

// Syncer is the contract the scheduler and dispatcher depend on.
type Syncer interface {
	Persist(ctx context.Context, rec models.InAppNotification)
}

// Adapter writes notifications to Postgres, with an optional
// Elasticsearch mirror for search. No retry policy beyond the single
// stored-procedure fallback on access-policy rejection.
type Adapter struct {
	db     *sql.DB
	es     *database.ElasticsearchClient
	index  string
	table  string
	logger logger.Logger
}

// Option configures the adapter.
type Option func(*Adapter)

// WithElasticsearchMirror enables the secondary index mirror.
func WithElasticsearchMirror(es *database.ElasticsearchClient, index string) Option {
	return func(a *Adapter) {
		a.es = es
		a.index = index
	}
}

// WithTable overrides the target table name.
func WithTable(table string) Option {
	return func(a *Adapter) {
		a.table = table
	}
}

// NewAdapter creates a sync adapter over an open database handle.
func NewAdapter(db *sql.DB, log logger.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		db:     db,
		table:  "notifications",
		logger: log.WithFields(map[string]interface{}{"component": "remote-sync"}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Persist is the single boundary that swallows sync errors. The direct
// insert is tried first; an access-policy rejection falls back to the
// insert_notification stored procedure once. Callers get no error and
// must not depend on the write having happened.
func (a *Adapter) Persist(ctx context.Context, rec models.InAppNotification) {
	if err := a.insert(ctx, rec); err != nil {
		if isPolicyRejection(err) {
			a.logger.WithError(errors.NewRemoteSyncRejectedError(err)).Debug("direct insert rejected", map[string]interface{}{
				"notificationId": rec.ID,
			})
			if procErr := a.insertViaProcedure(ctx, rec); procErr != nil {
				metrics.RemoteSyncFailures.WithLabelValues("postgres").Inc()
				a.logger.WithError(errors.NewRemoteSyncFailedError("postgres", procErr)).Warn("remote sync fallback failed", map[string]interface{}{
					"notificationId": rec.ID,
					"userId":         rec.UserID,
				})
			}
		} else {
			metrics.RemoteSyncFailures.WithLabelValues("postgres").Inc()
			a.logger.WithError(errors.NewRemoteSyncFailedError("postgres", err)).Warn("remote sync failed", map[string]interface{}{
				"notificationId": rec.ID,
				"userId":         rec.UserID,
			})
		}
	}

	a.mirror(ctx, rec)
}

func (a *Adapter) insert(ctx context.Context, rec models.InAppNotification) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return err
	}

	query := `INSERT INTO ` + a.table + `
		(id, user_id, title, message, type, priority, category, due_date, is_read, created_at, expires_at, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`

	_, err = a.db.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Title,
		rec.Message,
		string(rec.Type),
		string(rec.Priority),
		nullString(rec.Category),
		nullTime(rec.DueDate),
		rec.IsRead,
		rec.CreatedAt,
		nullTime(rec.ExpiresAt),
		data,
	)
	return err
}

func (a *Adapter) insertViaProcedure(ctx context.Context, rec models.InAppNotification) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return err
	}

	_, err = a.db.ExecContext(ctx,
		`SELECT insert_notification($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID,
		rec.UserID,
		rec.Title,
		rec.Message,
		string(rec.Type),
		string(rec.Priority),
		nullTime(rec.DueDate),
		data,
	)
	return err
}

// isPolicyRejection recognizes insufficient_privilege and row-level
// security denials, the cases where the stored-procedure path may still
// be allowed.
func isPolicyRejection(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "42501"
	}
	return false
}

func (a *Adapter) mirror(ctx context.Context, rec models.InAppNotification) {
	if a.es == nil {
		return
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return
	}

	if err := a.es.Index(ctx, a.index, rec.ID, string(body)); err != nil {
		metrics.RemoteSyncFailures.WithLabelValues("elasticsearch").Inc()
		a.logger.WithError(errors.NewRemoteSyncFailedError("elasticsearch", err)).Warn("elasticsearch mirror failed", map[string]interface{}{
			"notificationId": rec.ID,
		})
	}
}

// ListForUser hydrates the notifications for a user, newest first. Used
// by a fresh device to rebuild its in-app ledger from the remote store.
func (a *Adapter) ListForUser(ctx context.Context, userID string) ([]models.InAppNotification, error) {
	query := `SELECT id, user_id, title, message, type, priority, category, due_date, is_read, created_at, expires_at, data
		FROM ` + a.table + `
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := a.db.QueryContext(ctx, query, userID, 50)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.InAppNotification
	for rows.Next() {
		var (
			rec      models.InAppNotification
			typ      string
			priority string
			category sql.NullString
			dueDate  sql.NullTime
			expires  sql.NullTime
			data     []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Title, &rec.Message, &typ, &priority,
			&category, &dueDate, &rec.IsRead, &rec.CreatedAt, &expires, &data,
		); err != nil {
			return nil, err
		}

		rec.Type = models.NotificationType(typ)
		rec.Priority = models.NotificationPriority(priority)
		if category.Valid {
			rec.Category = category.String
		}
		if dueDate.Valid {
			t := dueDate.Time
			rec.DueDate = &t
		}
		if expires.Valid {
			t := expires.Time
			rec.ExpiresAt = &t
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &rec.Data)
		}

		out = append(out, rec)
	}

	return out, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

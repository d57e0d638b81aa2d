package mysql

import (
	"context"
	"database/sql"
	"time"

	"auction-site/internal/domain"

	sq "github.com/Masterminds/squirrel"
)

type MySQLNotificationRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

func NewMySQLNotificationRepository(db *sql.DB) *MySQLNotificationRepository {
	return &MySQLNotificationRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

func (r *MySQLNotificationRepository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	query := `
        INSERT INTO notifications (id, user_id, category, title, message, created_at, read_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.UserID, string(n.Category), n.Title, n.Message, n.CreatedAt, n.ReadAt)
	return err
}

func (r *MySQLNotificationRepository) ListUnread(ctx context.Context, userID string) ([]*domain.Notification, error) {
	query := `
        SELECT id, user_id, category, title, message, created_at
        FROM notifications
        WHERE user_id = ? AND read_at IS NULL
        ORDER BY created_at DESC
    `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		var category string
		if err := rows.Scan(&n.ID, &n.UserID, &category, &n.Title, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Category = domain.NotificationCategory(category)
		notifications = append(notifications, &n)
	}

	return notifications, rows.Err()
}

// MarkRead stamps read_at on all given notifications in one statement.
func (r *MySQLNotificationRepository) MarkRead(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := r.sb.Update("notifications").
		Set("read_at", at).
		Where(sq.Eq{"id": ids}).
		Where(sq.Eq{"read_at": nil}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

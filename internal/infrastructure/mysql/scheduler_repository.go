package mysql

import (
	"context"
	"database/sql"

	"auction-site/internal/domain"
)

// MySQLSchedulerRepository keeps an audit trail of closing jobs. The
// in-process runner is what actually fires them.
type MySQLSchedulerRepository struct {
	db *sql.DB
}

func NewMySQLSchedulerRepository(db *sql.DB) *MySQLSchedulerRepository {
	return &MySQLSchedulerRepository{db: db}
}

func (r *MySQLSchedulerRepository) CreateJob(ctx context.Context, job *domain.ScheduledJob) error {
	query := `
        INSERT INTO scheduled_jobs (id, item_id, job_type, run_at, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.ItemID, string(job.JobType),
		job.RunAt, string(job.Status), job.CreatedAt)
	return err
}

func (r *MySQLSchedulerRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	query := `UPDATE scheduled_jobs SET status = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, string(status), jobID)
	return err
}

func (r *MySQLSchedulerRepository) CancelJobsForItem(ctx context.Context, itemID string) error {
	query := `UPDATE scheduled_jobs SET status = 'cancelled' WHERE item_id = ? AND status = 'pending'`
	_, err := r.db.ExecContext(ctx, query, itemID)
	return err
}

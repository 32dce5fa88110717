package operations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const jobsSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	stage         TEXT NOT NULL DEFAULT '',
	report_path   TEXT NOT NULL DEFAULT '',
	workbook_path TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	summary       TEXT,
	workspace     TEXT NOT NULL DEFAULT '',
	trace_id      TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	started_at    INTEGER,
	completed_at  INTEGER
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_completed_at ON jobs(completed_at);
`

const jobColumns = `id, status, stage, report_path, workbook_path, error, summary, workspace, trace_id, created_at, started_at, completed_at`

// SQLiteJobStore persists jobs in a SQLite database
type SQLiteJobStore struct {
	db *sql.DB
}

// NewSQLiteJobStore opens (creating if needed) the database at path
func NewSQLiteJobStore(path string) (*SQLiteJobStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create job database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open job database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(jobsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate job database: %w", err)
	}

	return &SQLiteJobStore{db: db}, nil
}

// CreateJob inserts a new job
func (s *SQLiteJobStore) CreateJob(job *Job) error {
	summary, err := encodeSummary(job.Summary)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Status), job.Stage, job.ReportPath, job.WorkbookPath, job.Error,
		summary, job.Workspace, job.TraceID,
		job.CreatedAt.UnixNano(), nullTime(job.StartedAt), nullTime(job.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob retrieves a job by ID
func (s *SQLiteJobStore) GetJob(id string) (*Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	return job, nil
}

// UpdateJob replaces an existing job
func (s *SQLiteJobStore) UpdateJob(job *Job) error {
	summary, err := encodeSummary(job.Summary)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`UPDATE jobs SET status = ?, stage = ?, report_path = ?, workbook_path = ?,
		error = ?, summary = ?, workspace = ?, trace_id = ?, started_at = ?, completed_at = ?
		WHERE id = ?`,
		string(job.Status), job.Stage, job.ReportPath, job.WorkbookPath,
		job.Error, summary, job.Workspace, job.TraceID,
		nullTime(job.StartedAt), nullTime(job.CompletedAt), job.ID)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s: %w", job.ID, ErrJobNotFound)
	}
	return nil
}

// ListJobs returns jobs matching the filter, newest first
func (s *SQLiteJobStore) ListJobs(filter JobFilter) ([]*Job, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if !filter.CompletedBefore.IsZero() {
		where = append(where, "completed_at IS NOT NULL AND completed_at < ?")
		args = append(args, filter.CompletedBefore.UnixNano())
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteJob removes a job
func (s *SQLiteJobStore) DeleteJob(id string) error {
	res, err := s.db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}
	return nil
}

// RecoverInterrupted fails every job still processing. Workspaces are not
// resumable, so a job left processing by a previous run can never finish.
func (s *SQLiteJobStore) RecoverInterrupted(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin recovery: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixNano()
	res, err := tx.ExecContext(ctx, `UPDATE jobs SET status = ?, error = ?, completed_at = ?,
		started_at = COALESCE(started_at, ?) WHERE status = ?`,
		string(JobStatusFailed), InterruptedError, now, now, string(JobStatusProcessing))
	if err != nil {
		return 0, fmt.Errorf("failed to recover interrupted jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit recovery: %w", err)
	}
	return int(n), nil
}

// Stats counts stored jobs by status
func (s *SQLiteJobStore) Stats() (StoreStats, error) {
	var stats StoreStats
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return stats, err
		}
		stats.add(JobStatus(status), n)
	}
	return stats, rows.Err()
}

// Ping checks the database connection
func (s *SQLiteJobStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLiteJobStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job                    Job
		status                 string
		summary                sql.NullString
		createdAt              int64
		startedAt, completedAt sql.NullInt64
	)
	err := row.Scan(&job.ID, &status, &job.Stage, &job.ReportPath, &job.WorkbookPath, &job.Error,
		&summary, &job.Workspace, &job.TraceID, &createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	job.Status = JobStatus(status)
	job.CreatedAt = time.Unix(0, createdAt)
	job.StartedAt = timeFrom(startedAt)
	job.CompletedAt = timeFrom(completedAt)

	if summary.Valid && summary.String != "" {
		var s JobSummary
		if err := json.Unmarshal([]byte(summary.String), &s); err != nil {
			return nil, fmt.Errorf("failed to decode summary of job %s: %w", job.ID, err)
		}
		job.Summary = &s
	}
	return &job, nil
}

func encodeSummary(s *JobSummary) (sql.NullString, error) {
	if s == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode job summary: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timeFrom(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64)
	return &t
}

// OpenJobStore creates the store named by kind: "memory" or "sqlite"
func OpenJobStore(kind, sqlitePath string) (JobStore, error) {
	switch strings.ToLower(kind) {
	case "", "memory":
		return NewMemoryJobStore(), nil
	case "sqlite":
		return NewSQLiteJobStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported job store: %s", kind)
	}
}

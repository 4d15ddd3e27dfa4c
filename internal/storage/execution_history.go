package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/t77yq/resource-governor/internal/model"
)

// ExecutionRecord is one completed executor invocation as seen by the
// governor. Records are an audit trail for dashboards; the governor never
// reads them back to make decisions.
type ExecutionRecord struct {
	ID          string              `json:"id"`
	ExecutorID  string              `json:"executor_id"`
	Success     bool                `json:"success"`
	Duration    time.Duration       `json:"duration"`
	MemoryMB    float64             `json:"memory_mb"`
	Pressure    model.PressureLevel `json:"pressure"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt time.Time           `json:"completed_at"`
}

// ExecutionHistory defines the interface for execution outcome storage
type ExecutionHistory interface {
	// Record stores one execution outcome
	Record(ctx context.Context, record *ExecutionRecord) error

	// List retrieves records for an executor, newest first
	List(ctx context.Context, executorID string, offset, limit int) ([]*ExecutionRecord, error)

	// CountByExecutor returns total and failed counts for an executor
	CountByExecutor(ctx context.Context, executorID string) (total, failed int, err error)

	// DeleteBefore deletes records older than the specified time
	DeleteBefore(ctx context.Context, before time.Time) error

	// Close releases the underlying store
	Close() error
}

// SQLiteExecutionHistory implements ExecutionHistory using SQLite
type SQLiteExecutionHistory struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteExecutionHistory creates a new SQLite-based execution history store
func NewSQLiteExecutionHistory(logger *zap.Logger, dbPath string) (*SQLiteExecutionHistory, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteExecutionHistory{
		logger: logger.Named("execution-history"),
		db:     db,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initialize creates the necessary tables if they don't exist
func (s *SQLiteExecutionHistory) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS execution_history (
			id TEXT PRIMARY KEY,
			executor_id TEXT NOT NULL,
			success INTEGER NOT NULL,
			duration INTEGER NOT NULL,
			memory_mb REAL NOT NULL,
			pressure TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			completed_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_execution_history_executor_id ON execution_history(executor_id);
		CREATE INDEX IF NOT EXISTS idx_execution_history_started_at ON execution_history(started_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Record implements ExecutionHistory.Record
func (s *SQLiteExecutionHistory) Record(ctx context.Context, record *ExecutionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_history (
			id, executor_id, success, duration, memory_mb, pressure, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.ExecutorID,
		record.Success,
		int64(record.Duration),
		record.MemoryMB,
		record.Pressure.String(),
		record.StartedAt,
		record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store execution record: %w", err)
	}
	return nil
}

// List implements ExecutionHistory.List
func (s *SQLiteExecutionHistory) List(ctx context.Context, executorID string, offset, limit int) ([]*ExecutionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, executor_id, success, duration, memory_mb, pressure, started_at, completed_at
		FROM execution_history
		WHERE executor_id = ?
		ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		executorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution history: %w", err)
	}
	defer rows.Close()

	var records []*ExecutionRecord
	for rows.Next() {
		record := &ExecutionRecord{}
		var durationNanos int64
		var pressure string

		err := rows.Scan(
			&record.ID,
			&record.ExecutorID,
			&record.Success,
			&durationNanos,
			&record.MemoryMB,
			&pressure,
			&record.StartedAt,
			&record.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}

		record.Duration = time.Duration(durationNanos)
		if level, err := model.ParsePressureLevel(pressure); err == nil {
			record.Pressure = level
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return records, nil
}

// CountByExecutor implements ExecutionHistory.CountByExecutor
func (s *SQLiteExecutionHistory) CountByExecutor(ctx context.Context, executorID string) (int, int, error) {
	var total, failed int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0)
		FROM execution_history WHERE executor_id = ?`, executorID).Scan(&total, &failed)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count execution history: %w", err)
	}
	return total, failed, nil
}

// DeleteBefore implements ExecutionHistory.DeleteBefore
func (s *SQLiteExecutionHistory) DeleteBefore(ctx context.Context, before time.Time) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM execution_history WHERE started_at < ?", before)
	if err != nil {
		return fmt.Errorf("failed to delete execution history: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old execution records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return nil
}

// Close closes the database connection
func (s *SQLiteExecutionHistory) Close() error {
	return s.db.Close()
}

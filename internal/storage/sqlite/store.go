package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"taskmanager/internal/models"
	"taskmanager/internal/task"
)

// ErrNotFound is returned when an id does not resolve to a stored task.
var ErrNotFound = errors.New("task not found")

// Store wraps access to the SQLite database and exposes high level helpers.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open initializes a new SQLite store and runs the required migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            due_date TEXT NOT NULL,
            priority INTEGER NOT NULL CHECK (priority BETWEEN 1 AND 5),
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);`,
		`CREATE TRIGGER IF NOT EXISTS trg_tasks_updated
            AFTER UPDATE ON tasks
            FOR EACH ROW BEGIN
                UPDATE tasks SET updated_at = CURRENT_TIMESTAMP WHERE id = OLD.id;
            END;`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

const taskColumns = `id, name, due_date, priority, created_at, updated_at`

// listOrder is the single listing order: due date first, then name, then
// priority, with id as the final tie-break so equal keys come back in
// insertion order.
const listOrder = `ORDER BY due_date ASC, name ASC, priority ASC, id ASC`

func scanTask(row interface{ Scan(dest ...any) error }) (models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.Name, &t.DueDate, &t.Priority, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// Create persists a new task and returns it with store-assigned fields set.
func (s *Store) Create(ctx context.Context, name, dueDate string, priority int) (models.Task, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO tasks(name, due_date, priority) VALUES(?, ?, ?)`, name, dueDate, priority)
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Task{}, fmt.Errorf("task id: %w", err)
	}
	return s.FindByID(ctx, id)
}

// FindAll returns the tasks matching the filter, ordered per listOrder. The
// filter's due-date range predicate comes from the classification policy so
// the SQL cannot drift from the in-memory rule.
func (s *Store) FindAll(ctx context.Context, f task.Filter) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks `
	var args []any
	if cond, condArgs, ok := f.Predicate(task.Today()); ok {
		query += `WHERE ` + cond + ` `
		args = condArgs
	}
	query += listOrder

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// FindByID retrieves a task by id.
func (s *Store) FindByID(ctx context.Context, id int64) (models.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// Changes describes a partial update. Nil fields are left untouched.
type Changes struct {
	Name     *string
	DueDate  *string
	Priority *int
}

// Update applies a partial update to a task and returns the stored result.
// An empty change set is valid and only refreshes updated_at.
func (s *Store) Update(ctx context.Context, id int64, changes Changes) (models.Task, error) {
	current, err := s.FindByID(ctx, id)
	if err != nil {
		return models.Task{}, err
	}

	name := current.Name
	dueDate := current.DueDate
	priority := current.Priority

	if changes.Name != nil {
		name = *changes.Name
	}
	if changes.DueDate != nil {
		dueDate = *changes.DueDate
	}
	if changes.Priority != nil {
		priority = *changes.Priority
	}

	_, err = s.db.ExecContext(ctx, `UPDATE tasks SET name = ?, due_date = ?, priority = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, name, dueDate, priority, id)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	return s.FindByID(ctx, id)
}

// Remove deletes a task by id and returns the record as it was stored.
func (s *Store) Remove(ctx context.Context, id int64) (models.Task, error) {
	t, err := s.FindByID(ctx, id)
	if err != nil {
		return models.Task{}, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return models.Task{}, fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.Task{}, err
	}
	if affected == 0 {
		return models.Task{}, ErrNotFound
	}
	return t, nil
}

// Exists reports whether a task with the given id is stored.
func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("count task: %w", err)
	}
	return n > 0, nil
}

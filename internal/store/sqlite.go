package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/subautotrans/subautotrans/internal/task"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrNotFound marks operations on rows that do not exist.
var ErrNotFound = errors.New("not found")

// Store is the single source of truth for tasks, watchers, translated
// file records and runtime settings. All queue synchronization happens
// through it.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

const taskColumns = `id, file_path, file_name, status, progress, source_language,
	target_language, llm_provider, subtitle_track, force_override,
	error_message, created_at, updated_at, completed_at`

func scanTask(row interface{ Scan(...any) error }) (*task.Task, error) {
	var t task.Task
	var status string
	var sourceLang, errMsg sql.NullString
	var track sql.NullInt64
	var force int
	var completedAt sql.NullTime
	if err := row.Scan(
		&t.ID,
		&t.FilePath,
		&t.FileName,
		&status,
		&t.Progress,
		&sourceLang,
		&t.TargetLanguage,
		&t.Provider,
		&track,
		&force,
		&errMsg,
		&t.CreatedAt,
		&t.UpdatedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}
	t.Status = task.Status(status)
	t.SourceLanguage = sourceLang.String
	t.ErrorMessage = errMsg.String
	t.ForceOverride = force != 0
	if track.Valid {
		idx := int(track.Int64)
		t.SubtitleTrack = &idx
	}
	if completedAt.Valid {
		ts := completedAt.Time
		t.CompletedAt = &ts
	}
	return &t, nil
}

// CreateTask inserts a pending task and returns its id.
func (s *Store) CreateTask(ctx context.Context, t *task.Task) (int64, error) {
	if t == nil {
		return 0, fmt.Errorf("task is nil")
	}
	now := time.Now().UTC()
	var track any
	if t.SubtitleTrack != nil {
		track = *t.SubtitleTrack
	}
	var sourceLang any
	if t.SourceLanguage != "" {
		sourceLang = t.SourceLanguage
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tasks (
			file_path, file_name, status, progress, source_language,
			target_language, llm_provider, subtitle_track, force_override,
			created_at, updated_at
		) VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?, ?, ?)`,
		t.FilePath,
		t.FileName,
		string(task.StatusPending),
		sourceLang,
		t.TargetLanguage,
		t.Provider,
		track,
		boolToInt(t.ForceOverride),
		now,
		now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetTask(ctx context.Context, id int64) (*task.Task, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`,
		id,
	)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// ListTasks returns a page of tasks (newest first) and the total count
// matching the optional status filter.
func (s *Store) ListTasks(ctx context.Context, status *task.Status, limit, offset int) ([]*task.Task, int, error) {
	var total int
	var rows *sql.Rows
	var err error
	if status != nil {
		if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE status = ?`, string(*status)).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE status = ?
			 ORDER BY created_at DESC LIMIT ? OFFSET ?`,
			string(*status), limit, offset,
		)
	} else {
		if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT `+taskColumns+` FROM tasks
			 ORDER BY created_at DESC LIMIT ? OFFSET ?`,
			limit, offset,
		)
	}
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	ret := make([]*task.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		ret = append(ret, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return ret, total, nil
}

// TaskStats returns task counts grouped by status.
func (s *Store) TaskStats(ctx context.Context) (map[task.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[task.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[task.Status(status)] = count
	}
	return stats, rows.Err()
}

// ClaimNextPending atomically transitions the oldest pending task to
// processing and returns its id. The single conditional update
// guarantees two concurrent workers can never claim the same row.
func (s *Store) ClaimNextPending(ctx context.Context) (int64, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`UPDATE tasks
		 SET status = ?, updated_at = ?
		 WHERE id = (
			SELECT id FROM tasks
			WHERE status = ?
			ORDER BY created_at ASC, id ASC
			LIMIT 1
		 )
		 RETURNING id`,
		string(task.StatusProcessing),
		time.Now().UTC(),
		string(task.StatusPending),
	)
	var id int64
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

// TaskStatus reads the current status of a task ("" when the row is gone).
func (s *Store) TaskStatus(ctx context.Context, id int64) (task.Status, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return task.Status(status), nil
}

// MarkCompleted finishes a task: progress 100, completed_at set. The
// status guard keeps a concurrent cancellation from being overwritten.
func (s *Store) MarkCompleted(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks
		 SET status = ?, progress = 100, error_message = NULL,
		     updated_at = ?, completed_at = ?
		 WHERE id = ? AND status = ?`,
		string(task.StatusCompleted),
		now,
		now,
		id,
		string(task.StatusProcessing),
	)
	return err
}

// MarkFailed records the error message, unless the task was cancelled
// while processing.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET status = ?, error_message = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(task.StatusFailed),
		message,
		time.Now().UTC(),
		id,
		string(task.StatusProcessing),
	)
	return err
}

// UpdateProgress persists progress. MAX() keeps it monotonically
// non-decreasing even if callbacks arrive out of order.
func (s *Store) UpdateProgress(ctx context.Context, id int64, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET progress = MAX(progress, ?), updated_at = ? WHERE id = ?`,
		progress,
		time.Now().UTC(),
		id,
	)
	return err
}

// CancelOrDelete cancels a processing task in place, or deletes a
// non-processing one. Returns the action taken ("cancelled"/"deleted").
func (s *Store) CancelOrDelete(ctx context.Context, id int64) (string, error) {
	status, err := s.TaskStatus(ctx, id)
	if err != nil {
		return "", err
	}
	if status == "" {
		return "", ErrNotFound
	}
	if status == task.StatusProcessing {
		_, err := s.db.ExecContext(
			ctx,
			`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
			string(task.StatusCancelled),
			time.Now().UTC(),
			id,
		)
		return "cancelled", err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return "deleted", err
}

// RetryTask re-queues a failed/cancelled/paused task, clearing progress
// and error.
func (s *Store) RetryTask(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks
		 SET status = ?, progress = 0, error_message = NULL, updated_at = ?
		 WHERE id = ? AND status IN (?, ?, ?)`,
		string(task.StatusPending),
		time.Now().UTC(),
		id,
		string(task.StatusFailed),
		string(task.StatusCancelled),
		string(task.StatusPaused),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// PauseAll pauses every pending task and returns the count.
func (s *Store) PauseAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE status = ?`,
		string(task.StatusPaused),
		time.Now().UTC(),
		string(task.StatusPending),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PauseSelected pauses the given pending tasks.
func (s *Store) PauseSelected(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := []any{string(task.StatusPaused), time.Now().UTC()}
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, string(task.StatusPending))
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET status = ?, updated_at = ?
		 WHERE id IN (`+placeholders(len(ids))+`) AND status = ?`,
		args...,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteAll cancels processing tasks in place and deletes the rest.
func (s *Store) DeleteAll(ctx context.Context) (cancelled, deleted int64, err error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE status = ?`,
		string(task.StatusCancelled),
		time.Now().UTC(),
		string(task.StatusProcessing),
	)
	if err != nil {
		return 0, 0, err
	}
	cancelled, _ = res.RowsAffected()

	res, err = s.db.ExecContext(
		ctx,
		`DELETE FROM tasks WHERE status != ?`,
		string(task.StatusProcessing),
	)
	if err != nil {
		return cancelled, 0, err
	}
	deleted, _ = res.RowsAffected()
	return cancelled, deleted, nil
}

// DeleteSelected cancels processing tasks among ids and deletes the rest.
func (s *Store) DeleteSelected(ctx context.Context, ids []int64) (cancelled, deleted int64, err error) {
	if len(ids) == 0 {
		return 0, 0, nil
	}
	args := []any{string(task.StatusCancelled), time.Now().UTC()}
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, string(task.StatusProcessing))
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET status = ?, updated_at = ?
		 WHERE id IN (`+placeholders(len(ids))+`) AND status = ?`,
		args...,
	)
	if err != nil {
		return 0, 0, err
	}
	cancelled, _ = res.RowsAffected()

	args = args[:0]
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, string(task.StatusProcessing))
	res, err = s.db.ExecContext(
		ctx,
		`DELETE FROM tasks WHERE id IN (`+placeholders(len(ids))+`) AND status != ?`,
		args...,
	)
	if err != nil {
		return cancelled, 0, err
	}
	deleted, _ = res.RowsAffected()
	return cancelled, deleted, nil
}

// ActiveTask returns the pending/processing task for (path, language),
// nil when none exists. Enforces the one-active-task-per-pair invariant
// at creation time.
func (s *Store) ActiveTask(ctx context.Context, filePath, targetLanguage string) (*task.Task, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE file_path = ? AND target_language = ? AND status IN (?, ?)
		 LIMIT 1`,
		filePath,
		targetLanguage,
		string(task.StatusPending),
		string(task.StatusProcessing),
	)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// OrphanedProcessing lists tasks left processing by a previous run.
// They are surfaced for manual retry, never auto-requeued.
func (s *Store) OrphanedProcessing(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id FROM tasks WHERE status = ? ORDER BY id ASC`,
		string(task.StatusProcessing),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordTranslatedFile upserts the idempotency memo for a finished pair.
func (s *Store) RecordTranslatedFile(ctx context.Context, filePath, targetLanguage, outputPath string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO translated_files (file_path, target_language, output_path, translated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(file_path, target_language) DO UPDATE SET
			output_path=excluded.output_path,
			translated_at=excluded.translated_at`,
		filePath,
		targetLanguage,
		outputPath,
		time.Now().UTC(),
	)
	return err
}

func (s *Store) HasTranslatedFile(ctx context.Context, filePath, targetLanguage string) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id FROM translated_files WHERE file_path = ? AND target_language = ?`,
		filePath,
		targetLanguage,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateWatcher inserts a watcher row; the path uniqueness constraint
// surfaces as an error.
func (s *Store) CreateWatcher(ctx context.Context, w *task.Watcher) (int64, error) {
	if w == nil {
		return 0, fmt.Errorf("watcher is nil")
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO watchers (path, enabled, target_language, llm_provider, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		w.Path,
		boolToInt(w.Enabled),
		w.TargetLanguage,
		w.Provider,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanWatcher(row interface{ Scan(...any) error }) (*task.Watcher, error) {
	var w task.Watcher
	var enabled int
	if err := row.Scan(&w.ID, &w.Path, &enabled, &w.TargetLanguage, &w.Provider, &w.CreatedAt); err != nil {
		return nil, err
	}
	w.Enabled = enabled != 0
	return &w, nil
}

func (s *Store) GetWatcher(ctx context.Context, id int64) (*task.Watcher, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, path, enabled, target_language, llm_provider, created_at
		 FROM watchers WHERE id = ?`,
		id,
	)
	w, err := scanWatcher(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return w, err
}

// ListWatchers returns all watchers, optionally only enabled ones.
func (s *Store) ListWatchers(ctx context.Context, enabledOnly bool) ([]*task.Watcher, error) {
	query := `SELECT id, path, enabled, target_language, llm_provider, created_at
		 FROM watchers ORDER BY created_at DESC`
	if enabledOnly {
		query = `SELECT id, path, enabled, target_language, llm_provider, created_at
		 FROM watchers WHERE enabled = 1 ORDER BY created_at DESC`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*task.Watcher, 0)
	for rows.Next() {
		w, err := scanWatcher(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, w)
	}
	return ret, rows.Err()
}

func (s *Store) DeleteWatcher(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM watchers WHERE id = ?`, id)
	return err
}

func (s *Store) SetWatcherEnabled(ctx context.Context, id int64, enabled bool) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE watchers SET enabled = ? WHERE id = ?`,
		boolToInt(enabled),
		id,
	)
	return err
}

// LoadSettings returns the persisted settings key/value rows.
func (s *Store) LoadSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM app_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		ret[k] = v
	}
	return ret, rows.Err()
}

// SaveSettings upserts the given settings rows.
func (s *Store) SaveSettings(ctx context.Context, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for k, v := range values {
		if _, err = tx.ExecContext(
			ctx,
			`INSERT INTO app_settings (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
			k, v,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

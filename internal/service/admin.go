package service

import (
	"context"
	"fmt"
	"os"

	"github.com/subautotrans/subautotrans/internal/provider"
	"github.com/subautotrans/subautotrans/internal/store"
	"github.com/subautotrans/subautotrans/internal/task"
	"github.com/subautotrans/subautotrans/internal/watcher"
)

// Task administration, thin wrappers over the store so the HTTP layer
// never touches persistence directly.

func (s *Service) GetTask(ctx context.Context, id int64) (*task.Task, error) {
	return s.store.GetTask(ctx, id)
}

func (s *Service) ListTasks(ctx context.Context, status *task.Status, limit, offset int) ([]*task.Task, int, error) {
	return s.store.ListTasks(ctx, status, limit, offset)
}

func (s *Service) TaskStats(ctx context.Context) (map[task.Status]int, error) {
	return s.store.TaskStats(ctx)
}

// CancelTask cancels a pending or processing task, or deletes a
// finished one. Returns what happened: "cancelled" or "deleted".
func (s *Service) CancelTask(ctx context.Context, id int64) (string, error) {
	return s.store.CancelOrDelete(ctx, id)
}

func (s *Service) RetryTask(ctx context.Context, id int64) (bool, error) {
	return s.store.RetryTask(ctx, id)
}

func (s *Service) PauseAll(ctx context.Context) (int64, error) {
	return s.store.PauseAll(ctx)
}

func (s *Service) PauseSelected(ctx context.Context, ids []int64) (int64, error) {
	return s.store.PauseSelected(ctx, ids)
}

func (s *Service) DeleteAll(ctx context.Context) (cancelled, deleted int64, err error) {
	return s.store.DeleteAll(ctx)
}

func (s *Service) DeleteSelected(ctx context.Context, ids []int64) (cancelled, deleted int64, err error) {
	return s.store.DeleteSelected(ctx, ids)
}

// Watcher administration. Store rows and live fsnotify subscriptions
// are kept in step here.

// CreateWatcherRequest describes a new directory watch.
type CreateWatcherRequest struct {
	Path           string `json:"path"`
	TargetLanguage string `json:"target_language"`
	Provider       string `json:"llm_provider"`
	Enabled        *bool  `json:"enabled"`
}

func (s *Service) CreateWatcher(ctx context.Context, req CreateWatcherRequest) (*task.Watcher, error) {
	info, err := os.Stat(req.Path)
	if err != nil {
		return nil, fmt.Errorf("watch path unavailable: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch path is not a directory: %s", req.Path)
	}

	settings := s.Settings()
	if req.TargetLanguage == "" {
		req.TargetLanguage = settings.DefaultTargetLanguage
	}
	if req.Provider == "" {
		req.Provider = settings.DefaultProvider
	}
	if !provider.Known(req.Provider) {
		return nil, fmt.Errorf("unknown provider %q", req.Provider)
	}

	w := &task.Watcher{
		Path:           req.Path,
		Enabled:        req.Enabled == nil || *req.Enabled,
		TargetLanguage: req.TargetLanguage,
		Provider:       req.Provider,
	}
	id, err := s.store.CreateWatcher(ctx, w)
	if err != nil {
		return nil, err
	}
	w.ID = id

	if w.Enabled {
		if err := s.manager.AddWatch(*w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (s *Service) ListWatchers(ctx context.Context) ([]*task.Watcher, error) {
	return s.store.ListWatchers(ctx, false)
}

func (s *Service) GetWatcher(ctx context.Context, id int64) (*task.Watcher, error) {
	return s.store.GetWatcher(ctx, id)
}

func (s *Service) DeleteWatcher(ctx context.Context, id int64) error {
	w, err := s.store.GetWatcher(ctx, id)
	if err != nil {
		return err
	}
	if w == nil {
		return store.ErrNotFound
	}
	s.manager.RemoveWatch(id)
	return s.store.DeleteWatcher(ctx, id)
}

// SetWatcherEnabled toggles a watch without losing its configuration.
func (s *Service) SetWatcherEnabled(ctx context.Context, id int64, enabled bool) (*task.Watcher, error) {
	w, err := s.store.GetWatcher(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, store.ErrNotFound
	}
	if w.Enabled == enabled {
		return w, nil
	}

	if err := s.store.SetWatcherEnabled(ctx, id, enabled); err != nil {
		return nil, err
	}
	w.Enabled = enabled

	if enabled {
		if err := s.manager.AddWatch(*w); err != nil {
			return nil, err
		}
	} else {
		s.manager.RemoveWatch(id)
	}
	return w, nil
}

// ScanWatcher walks one watch tree on demand.
func (s *Service) ScanWatcher(ctx context.Context, id int64) (watcher.ScanResult, error) {
	w, err := s.store.GetWatcher(ctx, id)
	if err != nil {
		return watcher.ScanResult{}, err
	}
	if w == nil {
		return watcher.ScanResult{}, store.ErrNotFound
	}
	return s.manager.Scan(ctx, *w)
}

// Package service wires the queue, watcher, guard and pipeline into
// one orchestrator. Everything the HTTP layer does goes through here.
package service

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/subautotrans/subautotrans/internal/config"
	"github.com/subautotrans/subautotrans/internal/guard"
	"github.com/subautotrans/subautotrans/internal/media"
	"github.com/subautotrans/subautotrans/internal/pipeline"
	"github.com/subautotrans/subautotrans/internal/provider"
	"github.com/subautotrans/subautotrans/internal/queue"
	"github.com/subautotrans/subautotrans/internal/store"
	"github.com/subautotrans/subautotrans/internal/task"
	"github.com/subautotrans/subautotrans/internal/watcher"
	"github.com/subautotrans/subautotrans/pkg/file"
	"github.com/subautotrans/subautotrans/pkg/log"
)

// rescanSchedule re-walks every enabled watch so files that arrived
// while the process was down still get picked up.
const rescanSchedule = "@hourly"

type Service struct {
	cfg      *config.Config
	store    *store.Store
	queue    *queue.Queue
	pipeline *pipeline.Pipeline
	guard    *guard.Guard
	manager  *watcher.Manager
	cron     *cron.Cron

	mu       sync.RWMutex
	settings config.Settings
}

func New(cfg *config.Config, st *store.Store, tools *media.Tools) (*Service, error) {
	values, err := st.LoadSettings(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	settings := config.SettingsFromMap(values, config.DefaultSettings(cfg))

	s := &Service{
		cfg:      cfg,
		store:    st,
		pipeline: pipeline.New(tools),
		guard:    guard.New(st, tools),
		cron:     cron.New(),
		settings: settings,
	}
	s.queue = queue.NewQueue(st, settings.MaxConcurrentTasks)
	s.manager = watcher.NewManager(s.onNewFile)
	return s, nil
}

// Queue exposes the task queue for observer registration.
func (s *Service) Queue() *queue.Queue { return s.queue }

// Start brings the whole system up: orphan reporting, workers,
// filesystem watches and the periodic rescan.
func (s *Service) Start(ctx context.Context) error {
	s.reportOrphans(ctx)

	s.queue.Start(s.handleTask)

	if err := s.manager.Start(); err != nil {
		return err
	}

	watchers, err := s.store.ListWatchers(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to list watchers: %w", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range watchers {
		w := w
		g.Go(func() error {
			if err := s.manager.AddWatch(*w); err != nil {
				// A missing directory disables one watch, not startup.
				log.Error("Failed to watch %s: %v", w.Path, err)
				return nil
			}
			if _, err := s.manager.Scan(gctx, *w); err != nil {
				log.Error("Initial scan of %s failed: %v", w.Path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(rescanSchedule, s.rescanAll); err != nil {
		return fmt.Errorf("failed to schedule rescans: %w", err)
	}
	s.cron.Start()

	log.Info("Service started with %d watchers", len(watchers))
	return nil
}

// Stop shuts components down in dependency order.
func (s *Service) Stop() {
	s.cron.Stop()
	s.manager.Stop()
	s.queue.Stop()
}

// reportOrphans logs tasks stuck in processing from a previous run.
// They are left untouched for a manual retry decision.
func (s *Service) reportOrphans(ctx context.Context) {
	ids, err := s.store.OrphanedProcessing(ctx)
	if err != nil {
		log.Error("Failed to check for orphaned tasks: %v", err)
		return
	}
	for _, id := range ids {
		log.Warn("Task %d was processing when the service stopped; retry it manually", id)
	}
}

func (s *Service) rescanAll() {
	ctx := context.Background()
	watchers, err := s.store.ListWatchers(ctx, true)
	if err != nil {
		log.Error("Rescan failed to list watchers: %v", err)
		return
	}
	for _, w := range watchers {
		if _, err := s.manager.Scan(ctx, *w); err != nil {
			log.Error("Rescan of %s failed: %v", w.Path, err)
		}
	}
}

// onNewFile runs on the watcher dispatcher goroutine; task creation is
// handed off so a slow probe never blocks event handling.
func (s *Service) onNewFile(path string, w task.Watcher) {
	go func() {
		ctx := context.Background()
		_, skipReason, err := s.CreateTask(ctx, CreateTaskRequest{
			FilePath:       path,
			TargetLanguage: w.TargetLanguage,
			Provider:       w.Provider,
		})
		if err != nil {
			log.Error("Failed to create task for %s: %v", path, err)
			return
		}
		if skipReason != "" {
			log.Debug("Skipping %s: %s", path, skipReason)
		}
	}()
}

// CreateTaskRequest describes a translation request from the API or a
// watcher.
type CreateTaskRequest struct {
	FilePath       string `json:"file_path"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	Provider       string `json:"llm_provider"`
	SubtitleTrack  *int   `json:"subtitle_track"`
	ForceOverride  bool   `json:"force_override"`
}

// CreateTask validates the request, runs skip detection and enqueues.
// A non-empty skip reason with a nil task means nothing was queued.
func (s *Service) CreateTask(ctx context.Context, req CreateTaskRequest) (*task.Task, string, error) {
	if req.FilePath == "" {
		return nil, "", fmt.Errorf("file_path is required")
	}
	if !file.Exists(req.FilePath) {
		return nil, "", fmt.Errorf("file does not exist: %s", req.FilePath)
	}
	if !watcher.WatchedFile(req.FilePath) {
		return nil, "", fmt.Errorf("unsupported file type: %s", req.FilePath)
	}

	settings := s.Settings()
	if req.TargetLanguage == "" {
		req.TargetLanguage = settings.DefaultTargetLanguage
	}
	if req.Provider == "" {
		req.Provider = settings.DefaultProvider
	}
	if !provider.Known(req.Provider) {
		return nil, "", fmt.Errorf("unknown provider %q", req.Provider)
	}

	skip, reason, err := s.guard.ShouldSkip(ctx, req.FilePath, req.TargetLanguage, req.ForceOverride)
	if err != nil {
		return nil, "", err
	}
	if skip {
		return nil, reason, nil
	}

	t := &task.Task{
		FilePath:       req.FilePath,
		FileName:       filepath.Base(req.FilePath),
		Status:         task.StatusPending,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Provider:       req.Provider,
		SubtitleTrack:  req.SubtitleTrack,
		ForceOverride:  req.ForceOverride,
	}
	id, err := s.store.CreateTask(ctx, t)
	if err != nil {
		return nil, "", err
	}
	t.ID = id
	log.Info("Queued task %d for %s -> %s", id, t.FilePath, t.TargetLanguage)
	return t, "", nil
}

// CreateDirectoryTasks enqueues every translatable file under dir.
func (s *Service) CreateDirectoryTasks(ctx context.Context, dir string, req CreateTaskRequest) ([]*task.Task, int, error) {
	if !file.Exists(dir) {
		return nil, 0, fmt.Errorf("directory does not exist: %s", dir)
	}

	var created []*task.Task
	skipped := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !watcher.WatchedFile(path) {
			return nil
		}
		if !req.ForceOverride && pipeline.IsGeneratedOutput(path) {
			skipped++
			return nil
		}
		fileReq := req
		fileReq.FilePath = path
		t, reason, err := s.CreateTask(ctx, fileReq)
		if err != nil {
			log.Warn("Skipping %s: %v", path, err)
			skipped++
			return nil
		}
		if reason != "" {
			skipped++
			return nil
		}
		created = append(created, t)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return created, skipped, nil
}

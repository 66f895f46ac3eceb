package service

import (
	"context"
	"fmt"

	"github.com/subautotrans/subautotrans/internal/config"
	"github.com/subautotrans/subautotrans/internal/pipeline"
	"github.com/subautotrans/subautotrans/internal/provider"
	"github.com/subautotrans/subautotrans/internal/task"
	"github.com/subautotrans/subautotrans/pkg/log"
)

// handleTask is the queue handler: it turns one claimed task row into
// a finished translation.
func (s *Service) handleTask(ctx context.Context, taskID int64) error {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to load task: %w", err)
	}
	if t == nil {
		return fmt.Errorf("task %d disappeared", taskID)
	}

	// Conditions may have changed since enqueue: another task may have
	// produced the output, or the user dropped a sidecar in place.
	skip, reason, err := s.guard.Recheck(ctx, t.FilePath, t.TargetLanguage, t.ForceOverride)
	if err != nil {
		return err
	}
	if skip {
		log.Info("Task %d no longer needed: %s", taskID, reason)
		return nil
	}

	settings := s.Settings()
	prov, err := provider.New(t.Provider, settings.ProviderConfig(t.Provider))
	if err != nil {
		return err
	}

	req := pipeline.Request{
		Provider:       prov,
		FilePath:       t.FilePath,
		SourceLanguage: t.SourceLanguage,
		TargetLanguage: t.TargetLanguage,
		SubtitleTrack:  t.SubtitleTrack,
		Bilingual:      settings.BilingualOutput,
		OutputFormat:   settings.OutputFormat,
		OverwriteMKV:   settings.OverwriteMKV,
		Progress: func(progress int) {
			if err := s.queue.UpdateProgress(ctx, taskID, progress); err != nil {
				log.Warn("Failed to update progress for task %d: %v", taskID, err)
			}
		},
		Cancelled: func() bool {
			status, err := s.store.TaskStatus(ctx, taskID)
			return err == nil && status == task.StatusCancelled
		},
	}

	result, err := s.pipeline.Run(ctx, req)
	if err != nil {
		return err
	}

	if err := s.store.RecordTranslatedFile(ctx, t.FilePath, t.TargetLanguage, result.OutputPath); err != nil {
		// The translation is on disk; a bookkeeping failure must not
		// fail the task.
		log.Error("Failed to record translated file for task %d: %v", taskID, err)
	}
	log.Info("Task %d wrote %s", taskID, result.OutputPath)
	return nil
}

// Settings returns a snapshot of the current runtime settings.
func (s *Service) Settings() config.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings normalizes, persists and applies new settings. The
// worker pool resizes immediately; in-flight tasks keep the settings
// they started with.
func (s *Service) UpdateSettings(ctx context.Context, settings config.Settings) (config.Settings, error) {
	settings.Normalize()
	if err := s.store.SaveSettings(ctx, settings.ToMap()); err != nil {
		return config.Settings{}, fmt.Errorf("failed to save settings: %w", err)
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	s.queue.SetWorkerCount(settings.MaxConcurrentTasks)
	log.Info("Settings updated: provider=%s format=%s workers=%d",
		settings.DefaultProvider, settings.OutputFormat, settings.MaxConcurrentTasks)
	return settings, nil
}

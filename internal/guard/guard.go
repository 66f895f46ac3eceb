// Package guard decides whether a file still needs translation. Checks
// run cheapest first; the active-task check also holds under force so
// the same work is never queued twice.
package guard

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/subautotrans/subautotrans/internal/lang"
	"github.com/subautotrans/subautotrans/internal/media"
	"github.com/subautotrans/subautotrans/internal/pipeline"
	"github.com/subautotrans/subautotrans/internal/store"
	"github.com/subautotrans/subautotrans/pkg/file"
	"github.com/subautotrans/subautotrans/pkg/log"
)

type Guard struct {
	store *store.Store
	tools *media.Tools
}

func New(st *store.Store, tools *media.Tools) *Guard {
	return &Guard{store: st, tools: tools}
}

// ShouldSkip reports whether translating path into targetLang would be
// redundant, and why. force bypasses every check except the duplicate
// task one.
func (g *Guard) ShouldSkip(ctx context.Context, path, targetLang string, force bool) (bool, string, error) {
	active, err := g.store.ActiveTask(ctx, path, targetLang)
	if err != nil {
		return false, "", fmt.Errorf("failed to check active tasks: %w", err)
	}
	if active != nil {
		return true, fmt.Sprintf("task %d for this file is already %s", active.ID, active.Status), nil
	}

	if force {
		return false, "", nil
	}

	return g.shouldSkipRedundant(ctx, path, targetLang)
}

// Recheck re-runs skip detection for a task that is already claimed,
// so the duplicate-task check is omitted. Conditions may have changed
// between enqueue and processing.
func (g *Guard) Recheck(ctx context.Context, path, targetLang string, force bool) (bool, string, error) {
	if force {
		return false, "", nil
	}
	return g.shouldSkipRedundant(ctx, path, targetLang)
}

func (g *Guard) shouldSkipRedundant(ctx context.Context, path, targetLang string) (bool, string, error) {

	done, err := g.store.HasTranslatedFile(ctx, path, targetLang)
	if err != nil {
		return false, "", fmt.Errorf("failed to check translation history: %w", err)
	}
	if done {
		return true, "already translated according to history", nil
	}

	if strings.EqualFold(filepath.Ext(path), ".mkv") {
		skip, reason, err := g.hasEmbeddedTarget(ctx, path, targetLang)
		if err != nil {
			// A probe failure should not hide the file from the queue;
			// the pipeline will surface the real error.
			log.Warn("Failed to probe %s for existing tracks: %v", path, err)
		} else if skip {
			return true, reason, nil
		}
	}

	if outPath, ok := existingOutput(path, targetLang); ok {
		return true, fmt.Sprintf("output already exists: %s", outPath), nil
	}

	return false, "", nil
}

// hasEmbeddedTarget checks whether the container already carries a
// subtitle track in the target language.
func (g *Guard) hasEmbeddedTarget(ctx context.Context, path, targetLang string) (bool, string, error) {
	tracks, err := g.tools.ListSubtitleTracks(ctx, path)
	if err != nil {
		return false, "", err
	}

	code := lang.Code(targetLang)
	if code == lang.UndCode {
		return false, "", nil
	}
	for _, t := range tracks {
		if t.Language == code {
			return true, fmt.Sprintf("container already has a %s subtitle track", targetLang), nil
		}
	}
	return false, "", nil
}

// existingOutput checks the on-disk locations a previous run would have
// written to.
func existingOutput(path, targetLang string) (string, bool) {
	var candidates []string
	if strings.EqualFold(filepath.Ext(path), ".mkv") {
		candidates = []string{
			pipeline.SidecarPath(path, targetLang, "srt"),
			pipeline.SidecarPath(path, targetLang, "ass"),
			pipeline.ContainerOutputPath(path),
		}
	} else {
		// The output keeps the input's extension unless a format
		// conversion was requested, so both sidecar formats count.
		base := pipeline.TranslatedSubtitlePath(path, targetLang)
		candidates = []string{
			file.ReplaceExt(base, "srt"),
			file.ReplaceExt(base, "ass"),
		}
	}

	for _, c := range candidates {
		if file.Exists(c) {
			return c, true
		}
	}
	return "", false
}

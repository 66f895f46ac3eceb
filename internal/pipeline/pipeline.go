// Package pipeline executes one translation end to end: parse or
// extract the subtitle, translate it line by line through an LLM
// provider, compose the output and place it according to the output
// policy.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/subautotrans/subautotrans/internal/config"
	"github.com/subautotrans/subautotrans/internal/lang"
	"github.com/subautotrans/subautotrans/internal/media"
	"github.com/subautotrans/subautotrans/internal/provider"
	"github.com/subautotrans/subautotrans/internal/subtitle"
	"github.com/subautotrans/subautotrans/pkg/file"
	"github.com/subautotrans/subautotrans/pkg/log"
)

// Pipeline runs translations. Safe for concurrent use; each Run is
// independent.
type Pipeline struct {
	tools     *media.Tools
	batchSize int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatchSize overrides how many lines go into one LLM request.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) { p.batchSize = n }
}

func New(tools *media.Tools, opts ...Option) *Pipeline {
	p := &Pipeline{
		tools:     tools,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Request describes one translation run.
type Request struct {
	Provider       provider.Provider
	FilePath       string
	SourceLanguage string
	TargetLanguage string
	SubtitleTrack  *int
	Bilingual      bool
	OutputFormat   string
	OverwriteMKV   bool

	// Progress receives monotonic percentages. Optional.
	Progress func(progress int)
	// Cancelled is polled between batches. Optional.
	Cancelled func() bool
}

func (r *Request) report(progress int) {
	if r.Progress != nil {
		r.Progress(progress)
	}
}

// Result is the outcome of a successful run.
type Result struct {
	OutputPath string
}

// Run dispatches on the input type: standalone subtitle files are
// translated in place, containers go through extract and mux.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	switch strings.ToLower(filepath.Ext(req.FilePath)) {
	case ".srt", ".ass":
		return p.runSubtitle(ctx, req)
	case ".mkv":
		return p.runContainer(ctx, req)
	}
	return nil, fmt.Errorf("unsupported file type: %s", req.FilePath)
}

func (p *Pipeline) runSubtitle(ctx context.Context, req Request) (*Result, error) {
	f, err := subtitle.Parse(req.FilePath)
	if err != nil {
		return nil, err
	}
	req.report(10)

	sourceLang := resolveSourceLang(req.SourceLanguage, f)
	log.Info("Translating %s (%d lines) to %s", req.FilePath, len(f.Lines), req.TargetLanguage)

	if err := p.translateLines(ctx, req.Provider, f, sourceLang, req.TargetLanguage, req.Cancelled, req.report); err != nil {
		return nil, err
	}

	// "mkv" has no meaning for a standalone subtitle; keep the input
	// format then.
	switch req.OutputFormat {
	case config.OutputSRT, config.OutputASS:
		if err := subtitle.ConvertFormat(f, subtitle.Format(req.OutputFormat)); err != nil {
			return nil, err
		}
	}

	if req.Bilingual {
		subtitle.ComposeBilingual(f)
	}

	outPath := file.ReplaceExt(TranslatedSubtitlePath(req.FilePath, req.TargetLanguage), string(f.Format))
	if err := subtitle.Write(outPath, f); err != nil {
		return nil, err
	}
	req.report(95)

	return &Result{OutputPath: outPath}, nil
}

func (p *Pipeline) runContainer(ctx context.Context, req Request) (*Result, error) {
	tracks, err := p.tools.ListSubtitleTracks(ctx, req.FilePath)
	if err != nil {
		return nil, err
	}
	track, err := media.SelectTrack(tracks, req.SubtitleTrack)
	if err != nil {
		return nil, err
	}
	req.report(5)

	tmpDir, err := os.MkdirTemp("", "subautotrans-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	extracted := filepath.Join(tmpDir, "extracted.srt")
	if err := p.tools.ExtractTrack(ctx, req.FilePath, track, extracted); err != nil {
		return nil, err
	}
	req.report(10)

	f, err := subtitle.Parse(extracted)
	if err != nil {
		return nil, err
	}

	sourceLang := req.SourceLanguage
	if sourceLang == "" && track.Language != "" && track.Language != lang.UndCode {
		sourceLang = track.Language
	}
	sourceLang = resolveSourceLang(sourceLang, f)
	log.Info("Translating track %d of %s (%d lines) to %s", track.Index, req.FilePath, len(f.Lines), req.TargetLanguage)

	if err := p.translateLines(ctx, req.Provider, f, sourceLang, req.TargetLanguage, req.Cancelled, req.report); err != nil {
		return nil, err
	}

	if req.Bilingual {
		subtitle.ComposeBilingual(f)
	}

	if req.OutputFormat == config.OutputMKV {
		return p.muxOutput(ctx, req, f, tmpDir)
	}
	return p.sidecarOutput(req, f)
}

// sidecarOutput writes the translated track next to the video. The
// extracted track is SRT, so the sidecar is always SRT regardless of
// the configured sidecar format.
func (p *Pipeline) sidecarOutput(req Request, f *subtitle.File) (*Result, error) {
	outPath := SidecarPath(req.FilePath, req.TargetLanguage, string(subtitle.FormatSRT))
	if err := subtitle.Write(outPath, f); err != nil {
		return nil, err
	}
	req.report(95)
	return &Result{OutputPath: outPath}, nil
}

// muxOutput merges the translated track into an MKV, either as a new
// file or replacing the original.
func (p *Pipeline) muxOutput(ctx context.Context, req Request, f *subtitle.File, tmpDir string) (*Result, error) {
	translated := filepath.Join(tmpDir, "translated.srt")
	if err := subtitle.Write(translated, f); err != nil {
		return nil, err
	}

	langCode := lang.Code(req.TargetLanguage)
	trackName := req.TargetLanguage
	if req.Bilingual {
		trackName += " (bilingual)"
	}

	if req.OverwriteMKV {
		muxed := filepath.Join(tmpDir, "muxed.mkv")
		if err := p.tools.MuxSubtitle(ctx, req.FilePath, translated, muxed, langCode, trackName); err != nil {
			return nil, err
		}
		req.report(95)
		if err := file.Move(muxed, req.FilePath); err != nil {
			return nil, fmt.Errorf("failed to replace original container: %w", err)
		}
		return &Result{OutputPath: req.FilePath}, nil
	}

	outPath := ContainerOutputPath(req.FilePath)
	if err := p.tools.MuxSubtitle(ctx, req.FilePath, translated, outPath, langCode, trackName); err != nil {
		return nil, err
	}
	req.report(95)
	return &Result{OutputPath: outPath}, nil
}

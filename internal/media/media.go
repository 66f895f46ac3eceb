// Package media wraps the external tools the container pipeline needs:
// ffprobe for stream inspection, ffmpeg for track extraction and
// mkvmerge for muxing translated subtitles back into MKV files.
package media

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/subautotrans/subautotrans/pkg/log"
)

// Tools invokes the external media binaries.
type Tools struct {
	runner   Runner
	ffmpeg   string
	ffprobe  string
	mkvmerge string
}

// Option configures Tools.
type Option func(*Tools)

// WithRunner substitutes the process runner, used by tests.
func WithRunner(r Runner) Option {
	return func(t *Tools) { t.runner = r }
}

// WithBinaries overrides the binary names or paths.
func WithBinaries(ffmpeg, ffprobe, mkvmerge string) Option {
	return func(t *Tools) {
		t.ffmpeg = ffmpeg
		t.ffprobe = ffprobe
		t.mkvmerge = mkvmerge
	}
}

func NewTools(opts ...Option) *Tools {
	t := &Tools{
		runner:   execRunner{},
		ffmpeg:   "ffmpeg",
		ffprobe:  "ffprobe",
		mkvmerge: "mkvmerge",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CheckDependencies verifies the external binaries are on PATH and
// returns the names of any that are missing.
func (t *Tools) CheckDependencies() []string {
	var missing []string
	for _, bin := range []string{t.ffmpeg, t.ffprobe, t.mkvmerge} {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	return missing
}

// ExtractTrack converts one text subtitle track of a container to an
// SRT file. The track must not be image-based.
func (t *Tools) ExtractTrack(ctx context.Context, videoPath string, track Track, outPath string) error {
	if track.ImageBased() {
		return fmt.Errorf("subtitle track %d is image-based (%s) and cannot be extracted as text", track.Index, track.CodecName)
	}

	log.Info("Extracting subtitle track %d from %s", track.Index, videoPath)
	_, err := t.runner.Run(ctx, t.ffmpeg,
		"-y",
		"-i", videoPath,
		"-map", fmt.Sprintf("0:s:%d", track.Index),
		"-c:s", "srt",
		outPath,
	)
	if err != nil {
		return fmt.Errorf("failed to extract subtitle track %d: %w", track.Index, err)
	}
	return nil
}

// MuxSubtitle adds a subtitle file as a new track of an MKV container.
// mkvmerge exits with 1 on warnings; the output file is still valid so
// that is treated as success.
func (t *Tools) MuxSubtitle(ctx context.Context, videoPath, subtitlePath, outPath, langCode, trackName string) error {
	log.Info("Muxing %s into %s", subtitlePath, outPath)
	_, err := t.runner.Run(ctx, t.mkvmerge,
		"-o", outPath,
		videoPath,
		"--language", "0:"+langCode,
		"--track-name", "0:"+trackName,
		"--default-track-flag", "0:no",
		subtitlePath,
	)
	if err != nil {
		if exitCode(err) == 1 {
			log.Warn("mkvmerge reported warnings muxing %s: %v", outPath, err)
			return nil
		}
		return fmt.Errorf("failed to mux subtitle: %w", err)
	}
	return nil
}

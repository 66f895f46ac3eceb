package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subautotrans/subautotrans/internal/config"
	"github.com/subautotrans/subautotrans/internal/subtitle"
)

// echoProvider translates by prefixing, so tests can assert alignment
// without a network.
type echoProvider struct {
	batchErr   error
	batchCalls int
	lineCalls  int
}

func (p *echoProvider) Name() string { return "echo" }

func (p *echoProvider) Translate(_ context.Context, text, _, _ string) (string, error) {
	p.lineCalls++
	return "T:" + text, nil
}

func (p *echoProvider) TranslateBatch(_ context.Context, texts []string, _, _ string) ([]string, error) {
	p.batchCalls++
	if p.batchErr != nil {
		return nil, p.batchErr
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = "T:" + t
	}
	return out, nil
}

func writeSRT(t *testing.T, dir string, lines int) string {
	t.Helper()
	var b strings.Builder
	for i := 1; i <= lines; i++ {
		fmt.Fprintf(&b, "%d\n00:00:%02d,000 --> 00:00:%02d,500\nline %d\n\n", i, i, i, i)
	}
	path := filepath.Join(dir, "input.srt")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestRun_SubtitleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := writeSRT(t, dir, 3)
	p := New(nil)

	result, err := p.Run(context.Background(), Request{
		Provider:       &echoProvider{},
		FilePath:       in,
		TargetLanguage: "Chinese",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "input.zh-Hans.translated.srt"), result.OutputPath)

	out, err := subtitle.Parse(result.OutputPath)
	require.NoError(t, err)
	require.Len(t, out.Lines, 3)
	assert.Equal(t, "T:line 1", out.Lines[0].Text)
	assert.Equal(t, "T:line 3", out.Lines[2].Text)
}

func TestRun_SubtitleBilingual(t *testing.T) {
	dir := t.TempDir()
	in := writeSRT(t, dir, 1)
	p := New(nil)

	result, err := p.Run(context.Background(), Request{
		Provider:       &echoProvider{},
		FilePath:       in,
		TargetLanguage: "Chinese",
		Bilingual:      true,
	})
	require.NoError(t, err)

	out, err := subtitle.Parse(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "T:line 1\nline 1", out.Lines[0].Text)
}

func TestRun_SubtitleConvertsToRequestedFormat(t *testing.T) {
	dir := t.TempDir()
	in := writeSRT(t, dir, 2)
	p := New(nil)

	result, err := p.Run(context.Background(), Request{
		Provider:       &echoProvider{},
		FilePath:       in,
		TargetLanguage: "Chinese",
		OutputFormat:   config.OutputASS,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "input.zh-Hans.translated.ass"), result.OutputPath)

	out, err := subtitle.Parse(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, subtitle.FormatASS, out.Format)
	require.Len(t, out.Lines, 2)
	assert.Equal(t, "T:line 1", out.Lines[0].Text)
}

func TestRun_SubtitleKeepsFormatForContainerOutput(t *testing.T) {
	dir := t.TempDir()
	in := writeSRT(t, dir, 1)
	p := New(nil)

	// Mux output only applies to containers; a standalone subtitle
	// keeps its own format.
	result, err := p.Run(context.Background(), Request{
		Provider:       &echoProvider{},
		FilePath:       in,
		TargetLanguage: "Chinese",
		OutputFormat:   config.OutputMKV,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "input.zh-Hans.translated.srt"), result.OutputPath)
}

func TestRun_UnsupportedExtension(t *testing.T) {
	p := New(nil)
	_, err := p.Run(context.Background(), Request{
		Provider:       &echoProvider{},
		FilePath:       "/media/movie.avi",
		TargetLanguage: "Chinese",
	})
	require.Error(t, err)
}

func TestTranslateLines_BatchFallsBackToLines(t *testing.T) {
	dir := t.TempDir()
	in := writeSRT(t, dir, 3)
	prov := &echoProvider{batchErr: assert.AnError}
	p := New(nil, WithBatchSize(2))

	result, err := p.Run(context.Background(), Request{
		Provider:       prov,
		FilePath:       in,
		TargetLanguage: "Chinese",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, prov.batchCalls)
	assert.Equal(t, 3, prov.lineCalls)

	out, err := subtitle.Parse(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "T:line 2", out.Lines[1].Text)
}

func TestRun_ProgressMonotonicWithin45Lines(t *testing.T) {
	dir := t.TempDir()
	in := writeSRT(t, dir, 45)
	p := New(nil, WithBatchSize(20))

	var progress []int
	_, err := p.Run(context.Background(), Request{
		Provider:       &echoProvider{},
		FilePath:       in,
		TargetLanguage: "Chinese",
		Progress:       func(v int) { progress = append(progress, v) },
	})
	require.NoError(t, err)

	require.NotEmpty(t, progress)
	last := 0
	for _, v := range progress {
		assert.GreaterOrEqual(t, v, last)
		assert.LessOrEqual(t, v, 95)
		last = v
	}
	// Translation updates never pass 90; the final write reports 95.
	assert.Equal(t, 95, progress[len(progress)-1])
}

func TestRun_CancelledBetweenBatches(t *testing.T) {
	dir := t.TempDir()
	in := writeSRT(t, dir, 5)
	p := New(nil, WithBatchSize(2))

	calls := 0
	_, err := p.Run(context.Background(), Request{
		Provider:       &echoProvider{},
		FilePath:       in,
		TargetLanguage: "Chinese",
		Cancelled: func() bool {
			calls++
			return calls > 1
		},
	})
	require.ErrorIs(t, err, ErrCancelled)
	assert.NoFileExists(t, TranslatedSubtitlePath(in, "Chinese"))
}

func TestTranslationProgress_Bounds(t *testing.T) {
	assert.Equal(t, 10, translationProgress(0, 100))
	assert.Equal(t, 50, translationProgress(50, 100))
	assert.Equal(t, 90, translationProgress(100, 100))
	assert.Equal(t, 90, translationProgress(120, 100))
	assert.Equal(t, 90, translationProgress(0, 0))
}

func TestOutputNaming(t *testing.T) {
	assert.Equal(t, "/m/movie.zh-Hans.srt", SidecarPath("/m/movie.mkv", "Chinese", "srt"))
	assert.Equal(t, "/m/movie.ja.srt", SidecarPath("/m/movie.mkv", "Japanese", "srt"))
	assert.Equal(t, "/m/sub.zh-Hans.translated.srt", TranslatedSubtitlePath("/m/sub.srt", "Chinese"))
	// Muxed containers carry the translated marker, not a language tag.
	assert.Equal(t, "/m/movie.translated.mkv", ContainerOutputPath("/m/movie.mkv"))
	// Unknown languages fall back to the undetermined tag.
	assert.Equal(t, "/m/movie.und.srt", SidecarPath("/m/movie.mkv", "Klingon", "srt"))
}

func TestIsGeneratedOutput(t *testing.T) {
	assert.True(t, IsGeneratedOutput("/m/sub.zh-Hans.translated.srt"))
	assert.True(t, IsGeneratedOutput("/m/movie.translated.mkv"))
	assert.True(t, IsGeneratedOutput("/m/movie.zh-Hans.srt"))
	assert.True(t, IsGeneratedOutput("/m/movie.en.srt"))
	assert.False(t, IsGeneratedOutput("/m/movie.srt"))
	assert.False(t, IsGeneratedOutput("/m/movie.mkv"))
	assert.False(t, IsGeneratedOutput("/m/japanese.drama.srt"))
}

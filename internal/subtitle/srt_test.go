package subtitle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:03,500
Hello there.

2
00:00:04,000 --> 00:00:06,000
Two lines
of dialogue.

3
00:00:07,250 --> 00:00:09,000
Goodbye.
`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse_SRT(t *testing.T) {
	path := writeTempFile(t, "sample.srt", sampleSRT)

	f, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, f.Lines, 3)
	assert.Equal(t, FormatSRT, f.Format)

	assert.Equal(t, 1, f.Lines[0].Index)
	assert.Equal(t, time.Second, f.Lines[0].StartTime)
	assert.Equal(t, 3500*time.Millisecond, f.Lines[0].EndTime)
	assert.Equal(t, "Hello there.", f.Lines[0].Text)
	assert.Equal(t, "Two lines\nof dialogue.", f.Lines[1].Text)
}

func TestParse_SRT_SkipsGarbageBetweenBlocks(t *testing.T) {
	content := "WEBVTT-like garbage\n\n" + sampleSRT
	path := writeTempFile(t, "noisy.srt", content)

	f, err := Parse(path)
	require.NoError(t, err)
	assert.Len(t, f.Lines, 3)
}

func TestParse_SRT_Empty(t *testing.T) {
	path := writeTempFile(t, "empty.srt", "")

	_, err := Parse(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no subtitle lines")
}

func TestParse_UnsupportedExtension(t *testing.T) {
	path := writeTempFile(t, "sample.vtt", sampleSRT)

	_, err := Parse(path)
	require.Error(t, err)
}

func TestWrite_SRT_PrefersTranslation(t *testing.T) {
	in := writeTempFile(t, "sample.srt", sampleSRT)
	f, err := Parse(in)
	require.NoError(t, err)

	f.Lines[0].TranslatedText = "你好。"

	out := filepath.Join(t.TempDir(), "out.srt")
	require.NoError(t, Write(out, f))

	g, err := Parse(out)
	require.NoError(t, err)
	require.Len(t, g.Lines, 3)
	assert.Equal(t, "你好。", g.Lines[0].Text)
	// Untranslated lines keep the original text.
	assert.Equal(t, "Goodbye.", g.Lines[2].Text)
}

func TestParseSRTTime_Invalid(t *testing.T) {
	_, _, err := parseSRTTime("not a time")
	require.Error(t, err)
}

func TestFormatSRTDuration(t *testing.T) {
	d := time.Hour + 2*time.Minute + 3*time.Second + 45*time.Millisecond
	assert.Equal(t, "01:02:03,045", formatSRTDuration(d))
}

func TestTextsAndSetTranslations(t *testing.T) {
	path := writeTempFile(t, "sample.srt", sampleSRT)
	f, err := Parse(path)
	require.NoError(t, err)

	texts := f.Texts()
	require.Len(t, texts, 3)
	assert.Equal(t, "Hello there.", texts[0])

	f.SetTranslations([]string{"a", "b"})
	assert.Equal(t, "a", f.Lines[0].TranslatedText)
	assert.Equal(t, "b", f.Lines[1].TranslatedText)
	assert.Empty(t, f.Lines[2].TranslatedText)
}

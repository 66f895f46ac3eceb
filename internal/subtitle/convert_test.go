package subtitle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertFormat_SRTToASS(t *testing.T) {
	in := writeTempFile(t, "sample.srt", sampleSRT)
	f, err := Parse(in)
	require.NoError(t, err)

	require.NoError(t, ConvertFormat(f, FormatASS))
	assert.Equal(t, FormatASS, f.Format)

	out := filepath.Join(t.TempDir(), "out.ass")
	require.NoError(t, Write(out, f))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "[Script Info]")
	assert.Contains(t, content, "Style: Default,Arial,20")
	assert.Contains(t, content, "Dialogue: 0,0:00:01.00,0:00:03.50,Default,,0,0,0,,")

	g, err := Parse(out)
	require.NoError(t, err)
	require.Len(t, g.Lines, len(f.Lines))
	for i := range f.Lines {
		assert.Equal(t, f.Lines[i].Text, g.Lines[i].Text)
		assert.Equal(t, f.Lines[i].StartTime, g.Lines[i].StartTime)
	}
}

func TestConvertFormat_ASSToSRT(t *testing.T) {
	in := writeTempFile(t, "sample.ass", sampleASS)
	f, err := Parse(in)
	require.NoError(t, err)

	require.NoError(t, ConvertFormat(f, FormatSRT))
	assert.Equal(t, FormatSRT, f.Format)

	out := filepath.Join(t.TempDir(), "out.srt")
	require.NoError(t, Write(out, f))

	g, err := Parse(out)
	require.NoError(t, err)
	require.Len(t, g.Lines, len(f.Lines))
	assert.Equal(t, "Hello there.", g.Lines[0].Text)
	assert.Equal(t, "Two lines\nof dialogue.", g.Lines[1].Text)
	// Cues renumber from one so the SRT indexes are dense.
	assert.Equal(t, 1, g.Lines[0].Index)
	assert.Equal(t, 3, g.Lines[2].Index)
}

func TestConvertFormat_SameFormatIsNoop(t *testing.T) {
	in := writeTempFile(t, "sample.ass", sampleASS)
	f, err := Parse(in)
	require.NoError(t, err)
	header := len(f.assHeader)

	require.NoError(t, ConvertFormat(f, FormatASS))
	assert.Equal(t, header, len(f.assHeader))
}

func TestFormatASSTime(t *testing.T) {
	assert.Equal(t, "0:00:00.00", formatASSTime(0))
	assert.Equal(t, "0:01:02.50", formatASSTime(62500*time.Millisecond))
	assert.Equal(t, "1:02:03.04", formatASSTime(time.Hour+2*time.Minute+3*time.Second+40*time.Millisecond))
}

package subtitle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleASS = `[Script Info]
Title: Sample
ScriptType: v4.00+

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour
Style: Default,Arial,28,&H00FFFFFF
Style: Signs,Arial,36,&H00FFFFFF

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Comment: 0,0:00:00.00,0:00:01.00,Default,,0,0,0,,setup note
Dialogue: 0,0:00:01.00,0:00:03.50,Default,,0,0,0,,Hello there.
Dialogue: 0,0:00:04.00,0:00:06.00,Default,,0,0,0,,Two lines\Nof dialogue.
Dialogue: 0,0:00:07.00,0:00:09.00,Signs,,0,0,0,,{\pos(10,10)}Sign text, with comma
`

func TestParse_ASS(t *testing.T) {
	path := writeTempFile(t, "sample.ass", sampleASS)

	f, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, FormatASS, f.Format)
	require.Len(t, f.Lines, 3)

	assert.Equal(t, "Hello there.", f.Lines[0].Text)
	assert.Equal(t, "Two lines\nof dialogue.", f.Lines[1].Text)
	// Commas inside the text field must not split it.
	assert.Equal(t, `{\pos(10,10)}Sign text, with comma`, f.Lines[2].Text)
	// Default style wins even when a larger style exists.
	assert.Equal(t, 28, f.baseFontSize)
}

func TestWrite_ASS_PreservesStructure(t *testing.T) {
	in := writeTempFile(t, "sample.ass", sampleASS)
	f, err := Parse(in)
	require.NoError(t, err)

	f.Lines[0].TranslatedText = "你好。"
	f.Lines[1].TranslatedText = "两行\n对白。"

	out := filepath.Join(t.TempDir(), "out.ass")
	require.NoError(t, Write(out, f))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	content := string(raw)

	// Header, styles and comments survive verbatim.
	assert.Contains(t, content, "Title: Sample")
	assert.Contains(t, content, "Style: Signs,Arial,36,&H00FFFFFF")
	assert.Contains(t, content, "Comment: 0,0:00:00.00,0:00:01.00,Default,,0,0,0,,setup note")
	// Translated text replaces dialogue, breaks back in ASS form.
	assert.Contains(t, content, ",你好。")
	assert.Contains(t, content, `两行\N对白。`)
	// Untranslated dialogue keeps its text.
	assert.Contains(t, content, "Sign text, with comma")
}

func TestParse_ASS_RoundTripUnchangedWithoutTranslations(t *testing.T) {
	in := writeTempFile(t, "sample.ass", sampleASS)
	f, err := Parse(in)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.ass")
	require.NoError(t, Write(out, f))

	g, err := Parse(out)
	require.NoError(t, err)
	require.Len(t, g.Lines, len(f.Lines))
	for i := range f.Lines {
		assert.Equal(t, f.Lines[i].Text, g.Lines[i].Text)
	}
}

func TestParse_ASS_NoDefaultStyleFallsBackToFirst(t *testing.T) {
	content := strings.Replace(sampleASS, "Style: Default,Arial,28", "Style: Main,Arial,22", 1)
	path := writeTempFile(t, "nodefault.ass", content)

	f, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, 22, f.baseFontSize)
}

func TestParseASSTime(t *testing.T) {
	assert.Equal(t, "1m2.5s", parseASSTime("0:01:02.50").String())
	assert.Zero(t, parseASSTime("garbage"))
}

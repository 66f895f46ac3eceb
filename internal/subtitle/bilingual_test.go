package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeBilingual_SRT(t *testing.T) {
	f := &File{
		Format: FormatSRT,
		Lines: []Line{
			{Text: "Hello.", TranslatedText: "你好。"},
			{Text: "Untouched."},
		},
	}

	ComposeBilingual(f)

	assert.Equal(t, "你好。\nHello.", f.Lines[0].TranslatedText)
	assert.Empty(t, f.Lines[1].TranslatedText)
}

func TestComposeBilingual_ASS_UsesStyleFontSize(t *testing.T) {
	f := &File{
		Format:       FormatASS,
		baseFontSize: 28,
		Lines: []Line{
			{Text: "Hello.", TranslatedText: "你好。"},
		},
	}

	ComposeBilingual(f)

	assert.Equal(t, "你好。\n{\\fs22}Hello.{\\r}", f.Lines[0].TranslatedText)
}

func TestComposeBilingual_ASS_DefaultBase(t *testing.T) {
	f := &File{
		Format: FormatASS,
		Lines: []Line{
			{Text: "Hello.", TranslatedText: "你好。"},
		},
	}

	ComposeBilingual(f)

	// No style information: base 20, secondary 16.
	assert.Equal(t, "你好。\n{\\fs16}Hello.{\\r}", f.Lines[0].TranslatedText)
}

func TestComposeBilingual_IdenticalTranslationLeftAlone(t *testing.T) {
	f := &File{
		Format: FormatSRT,
		Lines: []Line{
			{Text: "OK", TranslatedText: "OK"},
		},
	}

	ComposeBilingual(f)

	assert.Equal(t, "OK", f.Lines[0].TranslatedText)
}

func TestSecondaryFontSize_Floor(t *testing.T) {
	assert.Equal(t, 10, secondaryFontSize(8))
	assert.Equal(t, 10, secondaryFontSize(12))
	assert.Equal(t, 16, secondaryFontSize(20))
}

package subtitle

import (
	"time"

	"golang.org/x/text/language"
)

// Format identifies the on-disk subtitle format.
type Format string

const (
	FormatSRT Format = "srt"
	FormatASS Format = "ass"
)

// Line represents a single subtitle cue. Text uses "\n" for line breaks
// regardless of format; the writers convert back to the format's own
// break convention.
type Line struct {
	Index          int
	StartTime      time.Duration
	EndTime        time.Duration
	Text           string
	TranslatedText string

	// ASS only: the raw dialogue prefix up to and including the comma
	// before the text field, preserved verbatim on write.
	assPrefix string
}

// assEvent is one raw line of the [Events] section. lineIdx points into
// File.Lines for dialogue events and is -1 for passthrough lines such
// as comments.
type assEvent struct {
	raw     string
	lineIdx int
}

// File represents a parsed subtitle file. For ASS files the header and
// event structure are preserved verbatim so that styles, comments and
// field ordering survive a read/translate/write round trip.
type File struct {
	Path     string
	Format   Format
	Encoding Encoding
	Language language.Tag
	Lines    []Line

	assHeader    []string
	assEvents    []assEvent
	baseFontSize int
}

// Texts returns the original text of every line in order.
func (f *File) Texts() []string {
	texts := make([]string, len(f.Lines))
	for i, l := range f.Lines {
		texts[i] = l.Text
	}
	return texts
}

// SetTranslations assigns translated texts by position. Extra
// translations are ignored; missing ones leave the line untranslated.
func (f *File) SetTranslations(texts []string) {
	for i := range f.Lines {
		if i >= len(texts) {
			break
		}
		f.Lines[i].TranslatedText = texts[i]
	}
}

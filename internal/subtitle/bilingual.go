package subtitle

import "fmt"

const (
	defaultBaseFontSize = 20
	minSecondaryFont    = 10
)

// ComposeBilingual rewrites every translated line so the output shows
// the translation above the original. SRT stacks the two plainly; ASS
// shrinks the original with an inline font-size override and resets the
// style afterwards.
func ComposeBilingual(f *File) {
	secondary := secondaryFontSize(f.baseFontSize)

	for i := range f.Lines {
		line := &f.Lines[i]
		if line.TranslatedText == "" || line.TranslatedText == line.Text {
			continue
		}

		switch f.Format {
		case FormatASS:
			line.TranslatedText = fmt.Sprintf(
				"%s\n{\\fs%d}%s{\\r}",
				line.TranslatedText, secondary, line.Text,
			)
		default:
			line.TranslatedText = line.TranslatedText + "\n" + line.Text
		}
	}
}

// secondaryFontSize derives the size for the original-text row from the
// style's base size, floored so it stays legible.
func secondaryFontSize(base int) int {
	if base <= 0 {
		base = defaultBaseFontSize
	}
	size := int(float64(base) * 0.8)
	if size < minSecondaryFont {
		size = minSecondaryFont
	}
	return size
}

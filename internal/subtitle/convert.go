package subtitle

import (
	"fmt"
	"time"
)

// ConvertFormat rewrites the in-memory representation so Write emits
// the requested format. Converting to the current format is a no-op.
// ASS to SRT keeps text and timing and drops styling; SRT to ASS
// synthesizes a minimal script with a single Default style.
func ConvertFormat(f *File, to Format) error {
	if f == nil || len(f.Lines) == 0 {
		return fmt.Errorf("subtitle data is empty")
	}
	if f.Format == to {
		return nil
	}

	switch to {
	case FormatSRT:
		f.assHeader = nil
		f.assEvents = nil
		f.baseFontSize = 0
		for i := range f.Lines {
			f.Lines[i].Index = i + 1
			f.Lines[i].assPrefix = ""
		}
	case FormatASS:
		f.assHeader = assScriptHeader()
		f.baseFontSize = defaultBaseFontSize
		f.assEvents = make([]assEvent, len(f.Lines))
		for i := range f.Lines {
			line := &f.Lines[i]
			line.assPrefix = fmt.Sprintf(
				"Dialogue: 0,%s,%s,Default,,0,0,0,,",
				formatASSTime(line.StartTime), formatASSTime(line.EndTime),
			)
			f.assEvents[i] = assEvent{lineIdx: i}
		}
	default:
		return fmt.Errorf("unsupported subtitle format: %s", to)
	}

	f.Format = to
	return nil
}

// assScriptHeader is the header for scripts we synthesize ourselves.
func assScriptHeader() []string {
	return []string{
		"[Script Info]",
		"ScriptType: v4.00+",
		"",
		"[V4+ Styles]",
		"Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding",
		fmt.Sprintf("Style: Default,Arial,%d,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,0,2,10,10,10,1", defaultBaseFontSize),
		"",
		"[Events]",
		"Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text",
	}
}

// formatASSTime renders a duration as "H:MM:SS.CC".
func formatASSTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	cs := int(d / (10 * time.Millisecond))
	h := cs / 360000
	cs %= 360000
	m := cs / 6000
	cs %= 6000
	s := cs / 100
	cs %= 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

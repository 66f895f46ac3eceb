package subtitle

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseASS parses Advanced SubStation content. Only dialogue text is
// lifted into Lines; styles, comments and every other line are kept
// verbatim so the written file differs from the input in dialogue text
// only.
func parseASS(content string, f *File) error {
	var (
		section      string
		eventFields  []string
		styleFields  []string
		inEvents     bool
		defaultFound bool
	)

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			section = strings.ToLower(strings.Trim(trimmed, "[]"))
			inEvents = section == "events"
			f.assHeader = append(f.assHeader, line)
			continue
		}

		if !inEvents {
			f.assHeader = append(f.assHeader, line)

			switch {
			case strings.Contains(section, "styles") && strings.HasPrefix(trimmed, "Format:"):
				styleFields = splitFormatFields(trimmed)
			case strings.Contains(section, "styles") && strings.HasPrefix(trimmed, "Style:"):
				name, size, ok := parseStyleLine(trimmed, styleFields)
				if !ok {
					continue
				}
				if name == "Default" {
					f.baseFontSize = size
					defaultFound = true
				} else if !defaultFound && f.baseFontSize == 0 {
					f.baseFontSize = size
				}
			}
			continue
		}

		// Events section.
		switch {
		case strings.HasPrefix(trimmed, "Format:"):
			eventFields = splitFormatFields(trimmed)
			f.assHeader = append(f.assHeader, line)
		case strings.HasPrefix(trimmed, "Dialogue:"):
			if len(eventFields) == 0 {
				return fmt.Errorf("dialogue before events format line")
			}
			ln, prefix, err := parseDialogue(line, eventFields)
			if err != nil {
				return err
			}
			ln.Index = len(f.Lines) + 1
			ln.assPrefix = prefix
			f.Lines = append(f.Lines, ln)
			f.assEvents = append(f.assEvents, assEvent{raw: line, lineIdx: len(f.Lines) - 1})
		default:
			// Comment lines, empty lines, unknown event types.
			f.assEvents = append(f.assEvents, assEvent{raw: line, lineIdx: -1})
		}
	}

	return nil
}

// formatASS reassembles the document: the header verbatim, then the
// event lines with dialogue text swapped for its translation.
func formatASS(f *File) string {
	var b strings.Builder
	for _, line := range f.assHeader {
		b.WriteString(line)
		b.WriteString("\n")
	}
	for _, ev := range f.assEvents {
		if ev.lineIdx < 0 {
			b.WriteString(ev.raw)
			b.WriteString("\n")
			continue
		}
		line := f.Lines[ev.lineIdx]
		text := line.TranslatedText
		if text == "" {
			text = line.Text
		}
		b.WriteString(line.assPrefix)
		b.WriteString(strings.ReplaceAll(text, "\n", `\N`))
		b.WriteString("\n")
	}
	return b.String()
}

// splitFormatFields parses "Format: Name, Fontname, ..." into field names.
func splitFormatFields(line string) []string {
	rest := strings.TrimPrefix(line, "Format:")
	parts := strings.Split(rest, ",")
	fields := make([]string, len(parts))
	for i, p := range parts {
		fields[i] = strings.TrimSpace(p)
	}
	return fields
}

func parseStyleLine(line string, fields []string) (name string, fontsize int, ok bool) {
	rest := strings.TrimPrefix(line, "Style:")
	parts := strings.Split(rest, ",")
	if len(parts) < len(fields) {
		return "", 0, false
	}
	for i, field := range fields {
		value := strings.TrimSpace(parts[i])
		switch field {
		case "Name":
			name = value
		case "Fontsize":
			// Fontsize may be fractional in the wild.
			size, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return "", 0, false
			}
			fontsize = int(size)
		}
	}
	return name, fontsize, name != "" && fontsize > 0
}

// parseDialogue splits a dialogue line into its text (last field) and
// the verbatim prefix that precedes it.
func parseDialogue(line string, fields []string) (Line, string, error) {
	rest := strings.TrimPrefix(line, "Dialogue:")
	parts := strings.SplitN(rest, ",", len(fields))
	if len(parts) < len(fields) {
		return Line{}, "", fmt.Errorf("malformed dialogue line: %s", line)
	}

	text := parts[len(parts)-1]
	prefix := line[:len(line)-len(text)]

	ln := Line{Text: strings.ReplaceAll(text, `\N`, "\n")}
	for i, field := range fields[:len(fields)-1] {
		value := strings.TrimSpace(parts[i])
		switch field {
		case "Start":
			ln.StartTime = parseASSTime(value)
		case "End":
			ln.EndTime = parseASSTime(value)
		}
	}
	return ln, prefix, nil
}

// parseASSTime parses "H:MM:SS.CC". Malformed values yield zero rather
// than failing the file; timing is informational for ASS since the
// prefix is written back verbatim.
func parseASSTime(s string) time.Duration {
	var h, m int
	var sec float64
	if _, err := fmt.Sscanf(s, "%d:%d:%f", &h, &m, &sec); err != nil {
		return 0
	}
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec*float64(time.Second))
}

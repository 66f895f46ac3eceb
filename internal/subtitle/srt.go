package subtitle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var srtTimeRe = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2}),(\d{3}) --> (\d{2}):(\d{2}):(\d{2}),(\d{3})`)

// parseSRT parses SubRip content into lines. Malformed index lines are
// skipped rather than failing the whole file; a malformed time line is
// an error because everything after it would be misattributed.
func parseSRT(content string) ([]Line, error) {
	var lines []Line

	currentLine := Line{}
	state := "index" // possible values: "index", "time", "text"
	var textLines []string

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)

		switch state {
		case "index":
			if line == "" {
				continue
			}
			index, err := strconv.Atoi(line)
			if err != nil {
				continue // skip non-index lines
			}
			currentLine.Index = index
			state = "time"

		case "time":
			if line == "" {
				continue
			}
			startTime, endTime, err := parseSRTTime(line)
			if err != nil {
				return nil, fmt.Errorf("failed to parse time: %w", err)
			}
			currentLine.StartTime = startTime
			currentLine.EndTime = endTime
			state = "text"
			textLines = []string{}

		case "text":
			if line == "" {
				// subtitle text ends
				if len(textLines) > 0 {
					currentLine.Text = strings.Join(textLines, "\n")
					lines = append(lines, currentLine)
					currentLine = Line{}
				}
				state = "index"
				textLines = []string{}
			} else {
				textLines = append(textLines, line)
			}
		}
	}

	// handle last subtitle group
	if state == "text" && len(textLines) > 0 {
		currentLine.Text = strings.Join(textLines, "\n")
		lines = append(lines, currentLine)
	}

	return lines, nil
}

// formatSRT serializes the file, preferring translated text and falling
// back to the original where no translation exists.
func formatSRT(f *File) string {
	var b strings.Builder
	for _, line := range f.Lines {
		fmt.Fprintf(&b, "%d\n", line.Index)
		fmt.Fprintf(&b, "%s --> %s\n", formatSRTDuration(line.StartTime), formatSRTDuration(line.EndTime))
		text := line.TranslatedText
		if text == "" {
			text = line.Text
		}
		fmt.Fprintf(&b, "%s\n\n", text)
	}
	return b.String()
}

// parseSRTTime parses SRT time format
func parseSRTTime(timeString string) (time.Duration, time.Duration, error) {
	// SRT time format: 00:02:16,612 --> 00:02:19,376
	matches := srtTimeRe.FindStringSubmatch(timeString)
	if len(matches) != 9 {
		return 0, 0, fmt.Errorf("invalid time format: %s", timeString)
	}

	parseTime := func(hours, minutes, seconds, milliseconds string) time.Duration {
		h, _ := strconv.Atoi(hours)
		m, _ := strconv.Atoi(minutes)
		s, _ := strconv.Atoi(seconds)
		ms, _ := strconv.Atoi(milliseconds)

		return time.Duration(h)*time.Hour +
			time.Duration(m)*time.Minute +
			time.Duration(s)*time.Second +
			time.Duration(ms)*time.Millisecond
	}

	return parseTime(matches[1], matches[2], matches[3], matches[4]),
		parseTime(matches[5], matches[6], matches[7], matches[8]),
		nil
}

// formatSRTDuration formats time.Duration to SRT time format
func formatSRTDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}

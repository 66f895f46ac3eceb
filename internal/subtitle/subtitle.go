// Package subtitle reads and writes SubRip (.srt) and Advanced
// SubStation (.ass) files. Parsed text always uses UTF-8 with "\n"
// breaks; encoding and format conventions are restored on write.
package subtitle

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// Parse reads and parses a subtitle file, detecting format from the
// extension and the text encoding from the content.
func Parse(path string) (*File, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	content, enc, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}

	f := &File{
		Path:     path,
		Format:   format,
		Encoding: enc,
	}

	switch format {
	case FormatSRT:
		lines, err := parseSRT(content)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		f.Lines = lines
	case FormatASS:
		if err := parseASS(content, f); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if len(f.Lines) == 0 {
		return nil, fmt.Errorf("no subtitle lines found in %s", path)
	}

	f.Language = detectLanguage(f.Lines)
	return f, nil
}

// Write serializes the file to path in its original format and
// encoding, using translated text where present.
func Write(path string, f *File) error {
	if f == nil || len(f.Lines) == 0 {
		return fmt.Errorf("subtitle data is empty")
	}

	var content string
	switch f.Format {
	case FormatSRT:
		content = formatSRT(f)
	case FormatASS:
		content = formatASS(f)
	default:
		return fmt.Errorf("unsupported subtitle format: %s", f.Format)
	}

	return EncodeFile(path, content, f.Encoding)
}

// FormatForPath maps a file extension onto a subtitle format.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".srt":
		return FormatSRT, nil
	case ".ass":
		return FormatASS, nil
	}
	return "", fmt.Errorf("unsupported subtitle file: %s", path)
}

// detectLanguage picks the dominant language across all lines.
func detectLanguage(lines []Line) language.Tag {
	if len(lines) == 0 {
		return language.Und
	}

	langMap := make(map[string]int)
	for _, line := range lines {
		lang := whatlanggo.DetectLang(line.Text).Iso6391()
		langMap[lang]++
	}

	var topLang string
	var topCount int
	for lang, count := range langMap {
		if count > topCount {
			topLang = lang
			topCount = count
		}
	}

	return language.All.Make(topLang)
}

package provider

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// batchLineRe matches one numbered line of a batch response.
var batchLineRe = regexp.MustCompile(`^\[(\d+)\]\s*(.*)$`)

// systemPrompt instructs the model to translate without commentary.
// Keeping formatting tags intact matters for ASS dialogue.
func systemPrompt(sourceLang, targetLang string) string {
	source := sourceLang
	if source == "" {
		source = "the original language"
	}
	return fmt.Sprintf(
		"You are a professional subtitle translator. Translate subtitle text from %s to %s. "+
			"Keep the tone natural and conversational. Preserve any formatting tags exactly as they appear. "+
			"Output only the translation, no explanations.",
		source, targetLang,
	)
}

// batchUserPrompt numbers each line so the response can be realigned.
func batchUserPrompt(texts []string) string {
	var b strings.Builder
	b.WriteString("Translate each numbered line. Reply with the same numbering, one line per entry:\n\n")
	for i, text := range texts {
		// Inner line breaks collapse to spaces so one entry stays one line.
		fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.ReplaceAll(text, "\n", " "))
	}
	return b.String()
}

// ParseBatchResponse realigns a numbered batch response to the input
// order. Each input entry is a single prompt line, so an unnumbered
// line after entry n is entry n+1 with its number dropped, not a
// wrapped continuation of entry n. The result always has exactly count
// entries; missing ones are empty.
func ParseBatchResponse(response string, count int) []string {
	out := make([]string, count)
	next := -1

	for _, raw := range strings.Split(response, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if m := batchLineRe.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 || n > count {
				next = -1
				continue
			}
			out[n-1] = m[2]
			next = n
			continue
		}

		// Bracketed but unparseable lines are model noise, not content.
		if strings.HasPrefix(line, "[") {
			continue
		}

		if next >= 0 && next < count && out[next] == "" {
			out[next] = line
			next++
		}
	}

	return out
}

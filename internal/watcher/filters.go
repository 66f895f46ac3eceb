package watcher

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/subautotrans/subautotrans/internal/lang"
	"github.com/subautotrans/subautotrans/internal/pipeline"
	"github.com/subautotrans/subautotrans/pkg/file"
)

// watchedExts are the file types a watch reacts to.
var watchedExts = map[string]bool{
	".mkv": true,
	".srt": true,
	".ass": true,
}

// WatchedFile reports whether the extension is one we translate.
func WatchedFile(path string) bool {
	return watchedExts[strings.ToLower(filepath.Ext(path))]
}

// ShouldEnqueue applies every filename-level filter: watched extension,
// not an output we generated, not already in the target language, and
// for containers no existing sidecar subtitle.
func ShouldEnqueue(path, targetLang string) bool {
	if !WatchedFile(path) {
		return false
	}
	if pipeline.IsGeneratedOutput(path) {
		return false
	}
	if InTargetLanguage(path, targetLang) {
		return false
	}
	if strings.EqualFold(filepath.Ext(path), ".mkv") && hasSiblingSubtitle(path, targetLang) {
		return false
	}
	return true
}

// InTargetLanguage guesses from the filename whether the file is
// already in the target language. Short tokens like "zh" only match in
// delimited positions; longer tokens match as plain substrings.
func InTargetLanguage(path, targetLang string) bool {
	name := strings.ToLower(filepath.Base(path))
	base := file.StripExt(name) + "."

	for _, token := range lang.Tokens(targetLang) {
		if len(token) <= 2 {
			if matchesShortToken(base, token) {
				return true
			}
			continue
		}
		if strings.Contains(name, token) {
			return true
		}
	}
	return false
}

// matchesShortToken requires a delimiter on both sides so "it" inside
// "title" never matches.
func matchesShortToken(base, token string) bool {
	patterns := []string{
		"." + token + ".",
		"_" + token + ".",
		"-" + token + ".",
		" " + token + ".",
		"(" + token + ")",
		"[" + token + "]",
		"." + token + "-",
		"." + token + "_",
	}
	for _, p := range patterns {
		if strings.Contains(base, p) {
			return true
		}
	}
	return false
}

// hasSiblingSubtitle reports whether a container already has a
// target-language subtitle file next to it sharing its base name. An
// untagged sibling is treated as source material, not as a result.
func hasSiblingSubtitle(videoPath, targetLang string) bool {
	dir := filepath.Dir(videoPath)
	base := file.StripExt(filepath.Base(videoPath)) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".srt" && ext != ".ass" {
			continue
		}
		if !strings.HasPrefix(name, base) {
			continue
		}
		if InTargetLanguage(name, targetLang) {
			return true
		}
	}
	return false
}

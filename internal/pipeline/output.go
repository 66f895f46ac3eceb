package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/subautotrans/subautotrans/internal/lang"
	"github.com/subautotrans/subautotrans/pkg/file"
)

// TranslatedMarker tags generated subtitle files so the watcher never
// queues an output as new work.
const TranslatedMarker = ".translated."

// SidecarPath names the subtitle written next to a video container,
// e.g. movie.mkv -> movie.zh-Hans.srt.
func SidecarPath(videoPath, targetLang, format string) string {
	base := file.StripExt(videoPath)
	return base + "." + lang.Tag(targetLang) + "." + format
}

// TranslatedSubtitlePath names the output for a standalone subtitle
// input, e.g. movie.srt -> movie.zh-Hans.translated.srt.
func TranslatedSubtitlePath(subtitlePath, targetLang string) string {
	ext := filepath.Ext(subtitlePath)
	base := strings.TrimSuffix(subtitlePath, ext)
	return base + "." + lang.Tag(targetLang) + ".translated" + ext
}

// ContainerOutputPath names the new MKV produced when muxing without
// overwriting the original, e.g. movie.mkv -> movie.translated.mkv.
func ContainerOutputPath(videoPath string) string {
	ext := filepath.Ext(videoPath)
	base := strings.TrimSuffix(videoPath, ext)
	return base + ".translated" + ext
}

// IsGeneratedOutput reports whether a path names a file this system
// produced, either via the translated marker or a language-tag suffix.
func IsGeneratedOutput(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	if strings.Contains(name, TranslatedMarker) {
		return true
	}
	base := file.StripExt(name)
	for _, tag := range lang.KnownTags() {
		if strings.HasSuffix(base, "."+strings.ToLower(tag)) {
			return true
		}
	}
	return false
}

package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReplaceExt swaps the extension of path with ext ("" removes it).
func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}

	dir := filepath.Dir(path)
	filename := filepath.Base(path)

	lastDot := strings.LastIndex(filename, ".")

	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	if lastDot <= 0 {
		return filepath.Join(dir, filename+ext)
	}

	return filepath.Join(dir, filename[:lastDot]+ext)
}

// StripExt returns path without its extension.
func StripExt(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext)
}

// Exists reports whether path exists on disk.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Move renames src to dst, falling back to copy+remove when rename
// fails across filesystems (temp dir and media library often differ).
func Move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	return os.Remove(src)
}

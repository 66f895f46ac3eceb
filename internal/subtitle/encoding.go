package subtitle

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Encoding is the detected file encoding. UTF-16 inputs are written
// back as UTF-16 with BOM; everything else is written as UTF-8.
type Encoding int

const (
	EncodingUTF8 Encoding = iota
	EncodingUTF16LE
	EncodingUTF16BE
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DecodeFile reads a subtitle file and returns its content as UTF-8
// text along with the encoding to use when writing results back.
func DecodeFile(path string) (string, Encoding, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", EncodingUTF8, fmt.Errorf("failed to read subtitle file: %w", err)
	}

	switch {
	case bytes.HasPrefix(raw, bomUTF16LE):
		text, err := decodeUTF16(raw, unicode.LittleEndian)
		return text, EncodingUTF16LE, err
	case bytes.HasPrefix(raw, bomUTF16BE):
		text, err := decodeUTF16(raw, unicode.BigEndian)
		return text, EncodingUTF16BE, err
	case bytes.HasPrefix(raw, bomUTF8):
		return string(raw[len(bomUTF8):]), EncodingUTF8, nil
	}

	if utf8.Valid(raw) {
		return string(raw), EncodingUTF8, nil
	}

	text, err := decodeLegacy(raw)
	if err != nil {
		return "", EncodingUTF8, err
	}
	return text, EncodingUTF8, nil
}

// EncodeFile writes UTF-8 text to path in the given encoding.
func EncodeFile(path, content string, enc Encoding) error {
	var data []byte
	switch enc {
	case EncodingUTF16LE:
		encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(content))
		if err != nil {
			return fmt.Errorf("failed to encode UTF-16: %w", err)
		}
		data = encoded
	case EncodingUTF16BE:
		encoded, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(content))
		if err != nil {
			return fmt.Errorf("failed to encode UTF-16: %w", err)
		}
		data = encoded
	default:
		data = []byte(content)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write subtitle file: %w", err)
	}
	return nil
}

func decodeUTF16(raw []byte, endianness unicode.Endianness) (string, error) {
	decoded, err := unicode.UTF16(endianness, unicode.UseBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode UTF-16: %w", err)
	}
	return string(decoded), nil
}

// decodeLegacy handles non-Unicode inputs such as GBK or Big5 by
// detecting the charset and converting to UTF-8.
func decodeLegacy(raw []byte) (string, error) {
	result, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil {
		return "", fmt.Errorf("failed to detect encoding: %w", err)
	}

	enc, err := htmlindex.Get(charsetName(result.Charset))
	if err != nil {
		return "", fmt.Errorf("unsupported encoding %q: %w", result.Charset, err)
	}

	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", result.Charset, err)
	}
	return string(decoded), nil
}

// charsetName maps detector names onto the names htmlindex understands.
func charsetName(name string) string {
	switch name {
	case "GB-18030":
		return "gb18030"
	case "ISO-2022-JP":
		return "iso-2022-jp"
	}
	return strings.ToLower(name)
}

// Package lang maps human language names onto the identifiers the rest
// of the system needs: ISO 639-2 codes for container track tags,
// short filename tags for sidecar naming, and the alias tokens the
// watcher uses to recognize already-translated files.
package lang

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

type mapping struct {
	code    string   // ISO 639-2, used for mkvmerge --language
	tag     string   // filename tag, e.g. "zh-Hans"
	aliases []string // extra filename tokens beyond code/tag
}

var byName = map[string]mapping{
	"chinese":    {code: "chi", tag: "zh-Hans", aliases: []string{"zh", "zh-hans", "zh-cn", "chs", "sc", "simplified", "简", "简体"}},
	"english":    {code: "eng", tag: "en", aliases: []string{"en", "eng", "english"}},
	"japanese":   {code: "jpn", tag: "ja", aliases: []string{"ja", "jpn", "japanese", "jp"}},
	"korean":     {code: "kor", tag: "ko", aliases: []string{"ko", "kor", "korean", "kr"}},
	"french":     {code: "fre", tag: "fr", aliases: []string{"fr", "fra", "fre", "french"}},
	"german":     {code: "ger", tag: "de", aliases: []string{"de", "deu", "ger", "german"}},
	"spanish":    {code: "spa", tag: "es", aliases: []string{"es", "spa", "spanish"}},
	"russian":    {code: "rus", tag: "ru", aliases: []string{"ru", "rus", "russian"}},
	"portuguese": {code: "por", tag: "pt", aliases: []string{"pt", "por", "portuguese"}},
	"italian":    {code: "ita", tag: "it", aliases: []string{"it", "ita", "italian"}},
}

// UndCode is the ISO 639-2 code for an undetermined language.
const UndCode = "und"

// UndTag is the filename tag for an undetermined language.
const UndTag = "und"

// Code returns the ISO 639-2 code for a language name, "und" when unknown.
func Code(name string) string {
	if m, ok := byName[normalize(name)]; ok {
		return m.code
	}
	return UndCode
}

// Tag returns the filename tag for a language name, "und" when unknown.
func Tag(name string) string {
	if m, ok := byName[normalize(name)]; ok {
		return m.tag
	}
	return UndTag
}

// KnownTags returns every filename tag an output file may carry,
// including the undetermined fallback.
func KnownTags() []string {
	tags := make([]string, 0, len(byName)+1)
	for _, m := range byName {
		tags = append(tags, m.tag)
	}
	tags = append(tags, UndTag)
	sort.Strings(tags)
	return tags
}

// Tokens returns every lowercase filename token that marks a file as
// being in the given target language: the name itself, its aliases, and
// all known output tags (a generated file may carry any of them).
func Tokens(name string) []string {
	set := map[string]struct{}{normalize(name): {}}
	if m, ok := byName[normalize(name)]; ok {
		for _, a := range m.aliases {
			set[a] = struct{}{}
		}
	}
	for _, t := range KnownTags() {
		set[strings.ToLower(t)] = struct{}{}
	}

	tokens := make([]string, 0, len(set))
	for t := range set {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

// Parse normalizes an arbitrary language token (BCP 47, ISO 639-1/-2)
// to a language.Tag, language.Und when unrecognized.
func Parse(token string) language.Tag {
	tag, err := language.Parse(token)
	if err != nil {
		return language.Und
	}
	return tag
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

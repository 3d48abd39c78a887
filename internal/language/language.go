package language

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Parse resolves a BCP 47 tag, ISO 639 code or English word ("chinese")
// into a language tag. Unknown input yields language.Und.
func Parse(code string) language.Tag {
	code = strings.TrimSpace(code)
	if code == "" {
		return language.Und
	}
	if tag, err := language.Parse(code); err == nil {
		return tag
	}
	if tag, ok := byWord[strings.ToLower(code)]; ok {
		return tag
	}
	return language.Und
}

var byWord = map[string]language.Tag{
	"english":    language.English,
	"chinese":    language.Chinese,
	"japanese":   language.Japanese,
	"korean":     language.Korean,
	"russian":    language.Russian,
	"french":     language.French,
	"german":     language.German,
	"spanish":    language.Spanish,
	"arabic":     language.Arabic,
	"portuguese": language.Portuguese,
}

// ToISO2 converts a recognised code to ISO 639-1. Empty when unknown.
func ToISO2(code string) string {
	tag := Parse(code)
	if tag == language.Und {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

// ToISO3 converts a recognised code to ISO 639-2. "und" when unknown.
func ToISO3(code string) string {
	tag := Parse(code)
	if tag == language.Und {
		return "und"
	}
	base, _ := tag.Base()
	return base.ISO3()
}

// DisplayName returns the English name of a language, e.g. "Simplified
// Chinese" for zh-CN.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	tag := Parse(code)
	if tag == language.Und {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return tag.String()
}

// Script returns the ISO 15924 script the language is most likely written in
// ("Hans" for zh-CN, "Latn" for en).
func Script(code string) string {
	script, _ := Parse(code).Script()
	return script.String()
}

var scriptTables = map[string][]*unicode.RangeTable{
	"Hans": {unicode.Han},
	"Hant": {unicode.Han},
	"Hani": {unicode.Han},
	"Jpan": {unicode.Han, unicode.Hiragana, unicode.Katakana},
	"Kore": {unicode.Hangul, unicode.Han},
	"Hang": {unicode.Hangul},
	"Cyrl": {unicode.Cyrillic},
	"Latn": {unicode.Latin},
	"Arab": {unicode.Arabic},
	"Hebr": {unicode.Hebrew},
	"Grek": {unicode.Greek},
	"Thai": {unicode.Thai},
	"Deva": {unicode.Devanagari},
}

// InLocalScript reports whether text contains at least one letter of the
// script the target language is written in. Unknown scripts never match.
func InLocalScript(text, target string) bool {
	tables, ok := scriptTables[Script(target)]
	if !ok {
		return false
	}
	for _, r := range text {
		if unicode.IsOneOf(tables, r) {
			return true
		}
	}
	return false
}

// NormalizeList deduplicates and normalizes a list of language codes to ISO 639-1.
func NormalizeList(languages []string) []string {
	if len(languages) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(languages))
	seen := make(map[string]struct{}, len(languages))
	for _, lang := range languages {
		code := ToISO2(lang)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		normalized = append(normalized, code)
	}
	return normalized
}

// Package normalize provides utilities for normalizing and sanitizing data.
package normalize

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is used when a language value cannot be interpreted.
const DefaultLanguage = "en"

// Language canonicalizes a language value to a BCP-47 tag.
//
// Imported books and early records carry languages in whatever form the
// user typed ("en", "English", "eng", "pt-BR"). Downstream code (the
// extraction prompt, the UI locale) wants one canonical form, so
// everything funnels through here on create, import, and settings save.
// Unrecognizable input falls back to DefaultLanguage rather than failing;
// a book with an odd language label is still a readable book.
func Language(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultLanguage
	}

	tag, err := language.Parse(value)
	if err != nil {
		// language.Parse handles tags, not English names ("French").
		// Try matching a display name before giving up.
		if code, ok := nameToTag[strings.ToLower(value)]; ok {
			return code
		}
		return DefaultLanguage
	}

	return tag.String()
}

// nameToTag maps common English language names to BCP-47 tags.
// Deliberately short: this is a convenience for hand-typed input,
// not an exhaustive registry.
var nameToTag = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"dutch":      "nl",
	"russian":    "ru",
	"japanese":   "ja",
	"chinese":    "zh",
	"korean":     "ko",
	"arabic":     "ar",
	"polish":     "pl",
	"swedish":    "sv",
	"turkish":    "tr",
	"ukrainian":  "uk",
	"vietnamese": "vi",
}

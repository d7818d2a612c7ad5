package models

import "strings"

// Language is a two-letter caption language code.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageSpanish Language = "es"
	LanguageFrench  Language = "fr"
	LanguageGerman  Language = "de"
	LanguageHindi   Language = "hi"
	LanguageChinese Language = "zh"
)

// DefaultLanguage is used when an upload does not name a target language.
const DefaultLanguage = LanguageEnglish

// SupportedLanguages lists every language with a caption column, English first.
var SupportedLanguages = []Language{
	LanguageEnglish,
	LanguageSpanish,
	LanguageFrench,
	LanguageGerman,
	LanguageHindi,
	LanguageChinese,
}

var languageNames = map[Language]string{
	LanguageEnglish: "English",
	LanguageSpanish: "Spanish",
	LanguageFrench:  "French",
	LanguageGerman:  "German",
	LanguageHindi:   "Hindi",
	LanguageChinese: "Chinese",
}

// ParseLanguage normalizes a form value; empty input maps to DefaultLanguage.
// unsupported codes are returned as-is so callers can still attempt translation.
func ParseLanguage(raw string) Language {
	code := strings.ToLower(strings.TrimSpace(raw))
	if code == "" {
		return DefaultLanguage
	}
	return Language(code)
}

func (l Language) IsSupported() bool {
	_, ok := languageNames[l]
	return ok
}

// DisplayName returns the English name of the language, or the code itself when unknown.
func (l Language) DisplayName() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return string(l)
}

func (l Language) String() string {
	return string(l)
}

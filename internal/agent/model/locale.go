package model

import "strings"

// Locale is the closed set of languages the agent answers in.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleAR Locale = "ar"
)

// ParseLocale maps free-form input ("ar-SA", "EN") onto a supported locale.
// Anything unrecognised is English.
func ParseLocale(v string) Locale {
	v = strings.ToLower(strings.TrimSpace(v))
	if strings.HasPrefix(v, "ar") {
		return LocaleAR
	}
	return LocaleEN
}

func (l Locale) IsArabic() bool { return l == LocaleAR }

// Localized holds one string per locale.
type Localized map[Locale]string

// Get returns the value for l, falling back to English, then any value.
func (t Localized) Get(l Locale) string {
	if v := t[l]; v != "" {
		return v
	}
	if v := t[LocaleEN]; v != "" {
		return v
	}
	for _, v := range t {
		if v != "" {
			return v
		}
	}
	return ""
}

package intent

import (
	"regexp"
	"strings"
	"unicode"
)

var arabicFolder = strings.NewReplacer(
	"أ", "ا", "إ", "ا", "آ", "ا", "ٱ", "ا",
	"ى", "ي", "ة", "ه", "ؤ", "و", "ئ", "ي",
	"ـ", "", // tatweel
)

var thousandsSep = regexp.MustCompile(`(\d),(\d{3})`)

// FoldArabic unifies the letter variants users type interchangeably and drops
// diacritics and tatweel. Non-Arabic text is returned unchanged.
func FoldArabic(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 0x064B && r <= 0x065F, r == 0x0670: // harakat, superscript alef
			return -1
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r == '،':
			return ','
		case r == '؟':
			return '?'
		}
		return r
	}, s)
	return arabicFolder.Replace(s)
}

// clean lowercases and folds text but keeps punctuation, for entity regexes.
func clean(s string) string {
	s = FoldArabic(strings.ToLower(strings.TrimSpace(s)))
	s = thousandsSep.ReplaceAllString(s, "$1$2")
	return strings.Join(strings.Fields(s), " ")
}

// Normalize is the form keyword and pattern rules match against: lowercase,
// Arabic folded, punctuation replaced by spaces, whitespace collapsed.
func Normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\'' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return ' '
	}, clean(s))
	return strings.Join(strings.Fields(s), " ")
}

// Singular strips common English plural endings from a single word.
func Singular(w string) string {
	n := len(w)
	switch {
	case n > 4 && strings.HasSuffix(w, "ies"):
		return w[:n-3] + "y"
	case n > 4 && (strings.HasSuffix(w, "ches") || strings.HasSuffix(w, "shes") ||
		strings.HasSuffix(w, "sses") || strings.HasSuffix(w, "xes")):
		return w[:n-2]
	case n > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us"):
		return w[:n-1]
	}
	return w
}

// arabicPrefixes are clitics stripped before vocabulary lookup, longest first.
var arabicPrefixes = []string{"وال", "بال", "فال", "كال", "لل", "ال", "و", "ب"}

// stem reduces a token for vocabulary and search matching.
func stem(tok string) string {
	if isArabic(tok) {
		for _, p := range arabicPrefixes {
			if strings.HasPrefix(tok, p) && len([]rune(tok))-len([]rune(p)) >= 3 {
				return tok[len(p):]
			}
		}
		return tok
	}
	return Singular(tok)
}

// Stems returns the stemmed tokens of already normalized text.
func Stems(normalized string) []string {
	toks := strings.Fields(normalized)
	for i, t := range toks {
		toks[i] = stem(t)
	}
	return toks
}

func isArabic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Arabic, r) {
			return true
		}
	}
	return false
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
// Arabic phrases match as substrings so attached clitics do not hide them.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	if isArabic(phrase) {
		return strings.Contains(text, phrase)
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}

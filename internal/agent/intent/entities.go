package intent

import (
	"regexp"
	"strings"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

const num = `(\d+(?:\.\d+)?)`

var (
	betweenRe = []*regexp.Regexp{
		regexp.MustCompile(`between\s+\$?` + num + `\s*(?:and|to|-)\s*\$?` + num),
		regexp.MustCompile(`from\s+\$?` + num + `\s*(?:to|-)\s*\$?` + num),
		regexp.MustCompile(`بين\s*` + num + `\s*(?:و|الى|-)\s*` + num),
		regexp.MustCompile(`من\s*` + num + `\s*(?:الى|لحد|-)\s*` + num),
	}
	maxPriceRe = []*regexp.Regexp{
		regexp.MustCompile(`(?:under|below|less\s+than|cheaper\s+than|up\s+to|at\s+most|max(?:imum)?|within)\s+\$?` + num),
		regexp.MustCompile(`(?:اقل\s+من|تحت|ارخص\s+من|لحد|حتى|اقصى)\s*` + num),
	}
	minPriceRe = []*regexp.Regexp{
		regexp.MustCompile(`(?:over|above|more\s+than|at\s+least|min(?:imum)?|starting\s+(?:at|from))\s+\$?` + num),
		regexp.MustCompile(`(?:اكثر\s+من|فوق|اعلى\s+من|ابتداء\s+من)\s*` + num),
	}
	quantityRe = []*regexp.Regexp{
		regexp.MustCompile(`(?:qty|quantity)\s*:?\s*(\d+)`),
		regexp.MustCompile(`(\d+)\s*(?:x\b|pcs\b|pieces?\b|units?\b)`),
		regexp.MustCompile(`(\d+)\s*(?:قطع|قطعه|حبات|حبه)`),
	}
	itemIDRe = []*regexp.Regexp{
		regexp.MustCompile(`#([a-z0-9][a-z0-9_-]*)`),
		regexp.MustCompile(`\b(?:item|product|id)\s*(?:#|no\.?|number)?\s*(\d[a-z0-9_-]*)`),
		regexp.MustCompile(`(?:رقم|منتج)\s*(\d+)`),
	}
	emailRe = regexp.MustCompile(`[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\s-]{6,}\d`)
	nameRe  = regexp.MustCompile(`(?i)(?:my\s+name\s+is|اسمي)\s+([\p{L}]+(?:\s+[\p{L}]+)?)`)
)

var leadTypeKeywords = []struct {
	leadType string
	phrases  []string
}{
	{"booking", []string{"book", "booking", "reserve", "reservation", "appointment", "schedule", "visit", "احجز", "حجز", "موعد", "زياره"}},
	{"callback", []string{"call me", "call back", "callback", "call me back", "اتصل بي", "اتصلوا", "كلمني"}},
	{"quote", []string{"quote", "quotation", "عرض سعر"}},
}

var stopwords = map[string]bool{
	"show": true, "me": true, "the": true, "a": true, "an": true, "i": true, "want": true,
	"need": true, "looking": true, "for": true, "find": true, "do": true, "you": true,
	"have": true, "any": true, "some": true, "please": true, "what": true, "is": true,
	"are": true, "of": true, "in": true, "with": true, "to": true, "can": true, "get": true,
	"see": true, "under": true, "over": true, "below": true, "above": true, "less": true,
	"more": true, "than": true, "between": true, "and": true, "or": true, "it": true,
	"this": true, "that": true, "my": true, "your": true, "there": true, "something": true,
	"like": true, "would": true, "could": true, "let": true, "give": true, "which": true,
	"how": true, "much": true, "up": true, "from": true, "at": true, "least": true, "most": true,
	"egp": true, "usd": true, "sar": true, "aed": true, "pound": true, "pounds": true,
	"في": true, "من": true, "على": true, "عن": true, "الى": true, "هل": true, "عندكم": true,
	"عندك": true, "ابي": true, "ابغى": true, "اريد": true, "عايز": true, "ممكن": true,
	"لو": true, "سمحت": true, "شو": true, "وش": true, "ايش": true, "ما": true, "هو": true,
	"هي": true, "انا": true, "لي": true, "اللي": true, "و": true, "بين": true, "اقل": true,
	"اكثر": true, "تحت": true, "فوق": true, "جنيه": true, "ريال": true, "درهم": true,
}

// extractEntities fills the typed slots found in the message. cleaned keeps
// punctuation; plain is the rule-matching form.
func (c *Classifier) extractEntities(cleaned, plain string) model.Entities {
	ents := model.Entities{}
	stemmed := strings.Join(Stems(plain), " ")

	for _, v := range match(c.lexicon.categories, stemmed) {
		ents.Add(model.EntityCategory, v)
	}
	for _, v := range match(c.lexicon.colors, stemmed) {
		ents.Add(model.EntityColor, v)
	}

	rest := cleaned
	if m := emailRe.FindString(rest); m != "" {
		ents.Add(model.EntityEmail, m)
		rest = strings.Replace(rest, m, " ", 1)
	}
	for _, m := range phoneRe.FindAllString(rest, -1) {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' || r == '+' {
				return r
			}
			return -1
		}, m)
		if n := len(strings.TrimPrefix(digits, "+")); n >= 9 && n <= 15 {
			ents.Add(model.EntityPhone, digits)
			rest = strings.Replace(rest, m, " ", 1)
		}
	}

	for _, re := range itemIDRe {
		for _, m := range re.FindAllStringSubmatch(rest, -1) {
			ents.Add(model.EntityItemID, m[1])
		}
	}

	priced := false
	for _, re := range betweenRe {
		if m := re.FindStringSubmatch(rest); m != nil {
			ents.Add(model.EntityMinPrice, m[1])
			ents.Add(model.EntityMaxPrice, m[2])
			priced = true
			break
		}
	}
	if !priced {
		for _, re := range maxPriceRe {
			if m := re.FindStringSubmatch(rest); m != nil {
				ents.Add(model.EntityMaxPrice, m[1])
				break
			}
		}
		for _, re := range minPriceRe {
			if m := re.FindStringSubmatch(rest); m != nil {
				ents.Add(model.EntityMinPrice, m[1])
				break
			}
		}
	}
	for _, re := range quantityRe {
		if m := re.FindStringSubmatch(rest); m != nil {
			ents.Add(model.EntityQuantity, m[1])
			break
		}
	}
	for _, lt := range leadTypeKeywords {
		if containsAny(plain, lt.phrases) {
			ents.Add(model.EntityLeadType, lt.leadType)
			break
		}
	}
	return ents
}

func hasItemRef(s string) bool {
	for _, re := range itemIDRe {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if containsPhrase(text, p) {
			return true
		}
	}
	return false
}

// extractName reads a self-introduced name from the raw message so its case survives.
func extractName(raw string) string {
	m := nameRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	parts := strings.Fields(m[1])
	for len(parts) > 0 && stopwords[FoldArabic(strings.ToLower(parts[len(parts)-1]))] {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, " ")
}

// residual strips stopwords, rule keywords and numbers from text, leaving the
// words that describe what the visitor is after.
func residual(text string, keywords []string) string {
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			text = strings.ReplaceAll(" "+text+" ", " "+kw+" ", " ")
		}
	}
	skip := map[string]bool{}
	for _, kw := range keywords {
		if !strings.Contains(kw, " ") {
			skip[kw] = true
		}
	}
	var out []string
	for _, tok := range strings.Fields(text) {
		if stopwords[tok] || skip[tok] || isNumber(tok) {
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

func isNumber(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return s != ""
}

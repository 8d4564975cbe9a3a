package tools

import (
	"sort"
	"strconv"
	"strings"

	"github.com/vtour-agent-core/server/internal/agent/intent"
	"github.com/vtour-agent-core/server/internal/agent/model"
)

const (
	scoreTitle    = 3
	scoreCategory = 2
	scoreBody     = 1
)

// synonyms groups words visitors use for the same kind of item. Entries are
// stored in their stemmed, folded form.
var synonyms = expandGroups([][]string{
	{"fridge", "refrigerator", "freezer", "ثلاجه", "براد", "فريزر"},
	{"tv", "television", "screen", "display", "تلفزيون", "تلفاز", "شاشه"},
	{"ac", "air conditioner", "cooling", "مكيف", "تكييف"},
	{"oven", "stove", "cooker", "microwave", "فرن", "بوتاجاز", "ميكروويف"},
	{"washer", "washing machine", "laundry", "غساله"},
	{"heater", "water heater", "سخان"},
	{"sofa", "couch", "كنبه", "كنب"},
	{"wardrobe", "closet", "دولاب", "خزانه"},
})

func expandGroups(groups [][]string) map[string][]string {
	out := make(map[string][]string)
	for _, g := range groups {
		stemmed := make([]string, 0, len(g))
		for _, w := range g {
			stemmed = append(stemmed, stemPhrase(w))
		}
		for _, w := range stemmed {
			out[w] = stemmed
		}
	}
	return out
}

func stemPhrase(s string) string {
	return strings.Join(intent.Stems(intent.Normalize(s)), " ")
}

// hasPhrase matches on word boundaries; Arabic falls back to substrings
// because prefixes attach to the word.
func hasPhrase(text, phrase string) bool {
	if phrase == "" || text == "" {
		return false
	}
	if strings.Contains(" "+text+" ", " "+phrase+" ") {
		return true
	}
	for _, r := range phrase {
		if r >= 0x0600 && r <= 0x06FF {
			return strings.Contains(text, phrase)
		}
	}
	return false
}

// expand returns phrase plus its synonyms.
func expand(phrase string) []string {
	if group, ok := synonyms[phrase]; ok {
		return group
	}
	return []string{phrase}
}

// terms turns free text into the stemmed phrases a search matches on: the
// whole query, then each word, each with its synonym group.
func terms(query string) []string {
	q := stemPhrase(query)
	if q == "" {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	add := func(ts []string) {
		for _, t := range ts {
			if t != "" && !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	add(expand(q))
	words := strings.Fields(q)
	for i := range words {
		add(expand(words[i]))
		if i+1 < len(words) {
			add(expand(words[i] + " " + words[i+1]))
		}
	}
	return out
}

type indexedItem struct {
	item     model.TourItem
	titles   []string
	category string
	body     string
	colors   string
}

func indexItem(it model.TourItem) indexedItem {
	ix := indexedItem{item: it, category: stemPhrase(it.Category)}
	for _, t := range it.Title {
		if s := stemPhrase(t); s != "" {
			ix.titles = append(ix.titles, s)
		}
	}
	var body []string
	for _, d := range it.Description {
		body = append(body, d)
	}
	body = append(body, it.Tags...)
	for k, v := range it.Attributes {
		body = append(body, v)
		lk := strings.ToLower(k)
		if strings.Contains(lk, "color") || strings.Contains(lk, "colour") || strings.Contains(k, "لون") {
			ix.colors += " " + stemPhrase(v)
		}
	}
	ix.body = stemPhrase(strings.Join(body, " "))
	return ix
}

func (ix indexedItem) inTitle(ts []string) bool {
	for _, title := range ix.titles {
		for _, t := range ts {
			if hasPhrase(title, t) {
				return true
			}
		}
	}
	return false
}

func (ix indexedItem) inCategory(ts []string) bool {
	for _, t := range ts {
		if hasPhrase(ix.category, t) {
			return true
		}
	}
	return false
}

func (ix indexedItem) inBody(ts []string) bool {
	for _, t := range ts {
		if hasPhrase(ix.body, t) {
			return true
		}
	}
	return false
}

// score ranks an item against the query terms: a title hit beats a category
// hit, which beats a description, tag or attribute hit.
func (ix indexedItem) score(ts []string) int {
	switch {
	case len(ts) == 0:
		return 0
	case ix.inTitle(ts):
		return scoreTitle
	case ix.inCategory(ts):
		return scoreCategory
	case ix.inBody(ts):
		return scoreBody
	}
	return 0
}

func (ix indexedItem) hasColor(color string) bool {
	c := stemPhrase(color)
	return hasPhrase(ix.colors, c) || ix.inTitle([]string{c}) || ix.inBody([]string{c})
}

type scored struct {
	item  model.TourItem
	score int
}

// searchItems filters the catalog by the structured criteria, scores the
// survivors against the free text and returns them best first.
func searchItems(cat *model.Catalog, p Params, limit int) ([]model.TourItem, int) {
	catTerms := terms(p.Category)
	queryTerms := terms(p.Query)
	structured := len(catTerms) > 0 || p.Color != ""
	allTerms := append(append([]string(nil), queryTerms...), catTerms...)

	var hits []scored
	for _, it := range cat.Items {
		if p.OnlyAvailable && !it.Available {
			continue
		}
		if (p.MinPrice > 0 || p.MaxPrice > 0) && it.Price <= 0 {
			continue
		}
		if p.MinPrice > 0 && it.Price < p.MinPrice {
			continue
		}
		if p.MaxPrice > 0 && it.Price > p.MaxPrice {
			continue
		}
		ix := indexItem(it)
		if len(catTerms) > 0 && !ix.inCategory(catTerms) && !ix.inTitle(catTerms) && !ix.inBody(catTerms) {
			continue
		}
		if p.Color != "" && !ix.hasColor(p.Color) {
			continue
		}
		s := ix.score(allTerms)
		if len(queryTerms) > 0 && !structured && s == 0 {
			continue
		}
		hits = append(hits, scored{item: it, score: s})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.item.Price != b.item.Price {
			return a.item.Price < b.item.Price
		}
		return idLess(a.item.ID, b.item.ID)
	})

	total := len(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	items := make([]model.TourItem, len(hits))
	for i, h := range hits {
		items[i] = h.item
	}
	return items, total
}

// idLess orders numeric ids numerically and everything else lexically.
func idLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

// bestTitleMatch resolves a free-form item name to the closest catalog item.
func bestTitleMatch(cat *model.Catalog, name string) (model.TourItem, bool) {
	if it, ok := cat.ItemByName(name); ok {
		return it, true
	}
	items, _ := searchItems(cat, Params{Query: name}, 1)
	if len(items) == 0 {
		return model.TourItem{}, false
	}
	if indexItem(items[0]).score(terms(name)) < scoreTitle {
		return model.TourItem{}, false
	}
	return items[0], true
}

// Match returns the catalog items most relevant to the given category and
// free text, best first. Nothing is returned when neither is set.
func Match(cat *model.Catalog, category, query string, limit int) []model.TourItem {
	if cat == nil || (strings.TrimSpace(category) == "" && strings.TrimSpace(query) == "") {
		return nil
	}
	items, _ := searchItems(cat, Params{Category: category, Query: query}, limit)
	return items
}

package intent

import (
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

//go:embed rules/*.yaml
var rulesFS embed.FS

type ruleFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	Intent     string   `yaml:"intent"`
	Confidence float64  `yaml:"confidence"`
	Keywords   []string `yaml:"keywords"`
	Patterns   []string `yaml:"patterns"`
	Capture    string   `yaml:"capture"`
}

type rule struct {
	intent     model.IntentType
	confidence float64
	keywords   []string
	stems      []string // keywords in stemmed form, index-aligned
	patterns   []*regexp.Regexp
	capture    model.EntityKey
}

type vocabularyFile struct {
	Categories map[string][]string `yaml:"categories"`
	Colors     map[string][]string `yaml:"colors"`
}

type term struct {
	phrase    string
	canonical string
}

type lexicon struct {
	categories []term
	colors     []term
}

func loadRules(locale model.Locale) ([]rule, error) {
	name := fmt.Sprintf("rules/%s.yaml", locale)
	raw, err := rulesFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	var f ruleFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	rules := make([]rule, 0, len(f.Rules))
	for i, spec := range f.Rules {
		it, ok := model.ParseIntentType(spec.Intent)
		if !ok || it == model.IntentUnknown {
			return nil, fmt.Errorf("%s rule %d: unknown intent %q", name, i, spec.Intent)
		}
		if spec.Confidence <= 0 || spec.Confidence > 1 {
			return nil, fmt.Errorf("%s rule %d: confidence %v out of range", name, i, spec.Confidence)
		}
		r := rule{intent: it, confidence: spec.Confidence, capture: model.EntityKey(spec.Capture)}
		for _, kw := range spec.Keywords {
			if n := Normalize(kw); n != "" {
				r.keywords = append(r.keywords, n)
				r.stems = append(r.stems, strings.Join(Stems(n), " "))
			}
		}
		for _, p := range spec.Patterns {
			re, err := regexp.Compile(FoldArabic(p))
			if err != nil {
				return nil, fmt.Errorf("%s rule %d: pattern %q: %w", name, i, p, err)
			}
			r.patterns = append(r.patterns, re)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func loadLexicon() (*lexicon, error) {
	raw, err := rulesFS.ReadFile("rules/vocabulary.yaml")
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	var f vocabularyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	return &lexicon{
		categories: buildTerms(f.Categories),
		colors:     buildTerms(f.Colors),
	}, nil
}

// hits counts the keywords found in either the plain or the stemmed text.
// An empty stemmed text matches on plain words only.
func (r *rule) hits(plain, stemmed string) int {
	n := 0
	for i, kw := range r.keywords {
		if containsPhrase(plain, kw) || (stemmed != "" && containsPhrase(stemmed, r.stems[i])) {
			n++
		}
	}
	return n
}

// buildTerms flattens canonical -> spellings into terms, longest phrase first
// so "washing machine" is tried before "washer".
func buildTerms(m map[string][]string) []term {
	var out []term
	for canonical, spellings := range m {
		for _, s := range append([]string{canonical}, spellings...) {
			phrase := strings.Join(Stems(Normalize(s)), " ")
			if phrase != "" {
				out = append(out, term{phrase: phrase, canonical: canonical})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].phrase) != len(out[j].phrase) {
			return len(out[i].phrase) > len(out[j].phrase)
		}
		return out[i].phrase < out[j].phrase
	})
	return out
}

// match returns the canonical values found in stemmed text, without repeats.
func match(terms []term, stemmed string) []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range terms {
		if seen[t.canonical] || !containsPhrase(stemmed, t.phrase) {
			continue
		}
		seen[t.canonical] = true
		out = append(out, t.canonical)
	}
	return out
}

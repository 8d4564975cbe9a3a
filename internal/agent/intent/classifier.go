package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/vtour-agent-core/server/internal/agent/graph/parsers"
	"github.com/vtour-agent-core/server/internal/agent/graph/prompts"
	"github.com/vtour-agent-core/server/internal/agent/model"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

const (
	patternThreshold = 0.8
	keywordThreshold = 0.5
)

// Completer answers a prompt through the external model chain.
type Completer interface {
	Complete(ctx context.Context, req *model.ModelRequest) (*model.ModelResult, error)
}

// Classifier maps a message onto an IntentType with entities. It is
// stateless and safe for concurrent use.
type Classifier struct {
	cfg       model.ClassifierConfig
	rules     map[model.Locale][]rule
	lexicon   *lexicon
	completer Completer
}

// New loads the embedded rule tables. completer may be nil, which disables
// the model tier.
func New(cfg model.ClassifierConfig, completer Completer) (*Classifier, error) {
	c := &Classifier{cfg: cfg, rules: map[model.Locale][]rule{}, completer: completer}
	for _, l := range []model.Locale{model.LocaleEN, model.LocaleAR} {
		rs, err := loadRules(l)
		if err != nil {
			return nil, err
		}
		c.rules[l] = rs
	}
	lex, err := loadLexicon()
	if err != nil {
		return nil, err
	}
	c.lexicon = lex
	return c, nil
}

// Classify never fails: model tier errors fall back to the fast guess, and no
// guess at all is IntentUnknown.
func (c *Classifier) Classify(ctx context.Context, text string, locale model.Locale) model.IntentResult {
	start := time.Now()
	res := c.Fast(text)

	if c.smartEnabled() && res.Confidence < c.cfg.SmartThreshold {
		smart, err := c.smart(ctx, text, locale)
		switch {
		case err != nil:
			logx.Debug().Err(err).Str("fast_intent", string(res.Type)).Msg("model classification failed, keeping fast guess")
		case smart.Confidence < c.cfg.SmartThreshold && res.Type != model.IntentUnknown:
			logx.Debug().
				Str("model_intent", string(smart.Type)).
				Float64("model_confidence", smart.Confidence).
				Msg("model classification not confident, keeping fast guess")
		default:
			ents := model.Entities{}
			ents.Merge(res.Entities)
			ents.Merge(smart.Entities)
			smart.Entities = ents
			res = smart
		}
	}

	res.Latency = time.Since(start)
	res.Validate()
	logx.Debug().
		Str("intent", string(res.Type)).
		Float64("confidence", res.Confidence).
		Str("tier", string(res.Tier)).
		Dur("latency", res.Latency).
		Msg("intent classified")
	return res
}

func (c *Classifier) smartEnabled() bool {
	return c.completer != nil && c.cfg.SmartEnabled
}

// Fast runs the local rule tables only.
func (c *Classifier) Fast(text string) model.IntentResult {
	cleaned := clean(text)
	plain := Normalize(text)
	stemmed := strings.Join(Stems(plain), " ")
	rules := c.rulesFor(plain)
	ents := c.extractEntities(cleaned, plain)
	if name := extractName(text); name != "" {
		ents.Add(model.EntityName, name)
	}

	res := model.IntentResult{Type: model.IntentUnknown, Entities: ents, Tier: model.TierFast}
	if plain == "" {
		return res
	}

	// out_of_scope is checked before anything else, on exact words only
	for _, r := range rules {
		if r.intent == model.IntentOutOfScope && r.hits(plain, "") > 0 {
			res.Type, res.Confidence = r.intent, r.confidence
			return res
		}
	}

	if r, groups := matchPatterns(rules, plain); r != nil && r.confidence >= patternThreshold {
		res.Type, res.Confidence = r.intent, r.confidence
		c.addCaptures(ents, r, groups)
		c.addQuery(ents, r, plain)
		return res
	}

	if r, score := matchKeywords(rules, plain, stemmed); r != nil && score >= keywordThreshold {
		res.Type, res.Confidence = r.intent, score
		c.addQuery(ents, r, plain)
		return res
	}

	if q := residual(plain, nil); q != "" && (ents.First(model.EntityCategory) != "" || ents.First(model.EntityItemID) != "") {
		ents.Add(model.EntityQuery, q)
	}
	return res
}

// rulesFor picks the table by script, so an Arabic message in an English
// session (or the reverse) still classifies.
func (c *Classifier) rulesFor(plain string) []rule {
	if isArabic(plain) {
		return c.rules[model.LocaleAR]
	}
	return c.rules[model.LocaleEN]
}

// matchPatterns returns the most confident rule with a matching pattern; ties
// go to the earlier rule.
func matchPatterns(rules []rule, plain string) (*rule, []string) {
	var (
		best   *rule
		groups []string
	)
	for i := range rules {
		r := &rules[i]
		if best != nil && r.confidence <= best.confidence {
			continue
		}
		for _, re := range r.patterns {
			if m := re.FindStringSubmatch(plain); m != nil {
				best, groups = r, m[1:]
				break
			}
		}
	}
	return best, groups
}

// matchKeywords scores conf*(0.5+0.5*min(1, hits/2)) per rule and keeps the best.
func matchKeywords(rules []rule, plain, stemmed string) (*rule, float64) {
	var (
		best      *rule
		bestScore float64
	)
	for i := range rules {
		r := &rules[i]
		hits := r.hits(plain, stemmed)
		if hits == 0 {
			continue
		}
		score := r.confidence * (0.5 + 0.5*min(1, float64(hits)/2))
		if score > bestScore {
			best, bestScore = r, score
		}
	}
	return best, bestScore
}

func (c *Classifier) addCaptures(ents model.Entities, r *rule, groups []string) {
	if r.capture == "" || r.capture == model.EntityQuery {
		return
	}
	for _, g := range groups {
		if hasItemRef(g) {
			continue
		}
		if g = residual(g, nil); g != "" {
			ents.Add(r.capture, g)
		}
	}
}

func (c *Classifier) addQuery(ents model.Entities, r *rule, plain string) {
	switch r.intent {
	case model.IntentSearch, model.IntentAvailability, model.IntentDetail, model.IntentPrice:
	default:
		return
	}
	if q := residual(plain, r.keywords); q != "" {
		ents.Add(model.EntityQuery, q)
	}
}

func (c *Classifier) smart(ctx context.Context, text string, locale model.Locale) (model.IntentResult, error) {
	system, err := prompts.RenderClassify(ctx)
	if err != nil {
		return model.IntentResult{}, err
	}
	out, err := c.completer.Complete(ctx, &model.ModelRequest{
		Tier:        model.TierStandard,
		Intent:      model.IntentUnknown,
		Locale:      locale,
		Messages:    []*schema.Message{schema.SystemMessage(system), schema.UserMessage(text)},
		Temperature: 0.1,
		MaxTokens:   200,
	})
	if err != nil {
		return model.IntentResult{}, err
	}
	parsed, err := parsers.ParseClassification(out.Text)
	if err != nil {
		return model.IntentResult{}, fmt.Errorf("parse classification from %s: %w", out.Provider, err)
	}
	for k, vs := range parsed.Entities {
		for i, v := range vs {
			vs[i] = strings.TrimSpace(v)
		}
		parsed.Entities[k] = vs
	}
	return model.IntentResult{
		Type:       parsed.Intent,
		Confidence: parsed.Confidence,
		Entities:   parsed.Entities,
		Tier:       model.TierModel,
	}, nil
}

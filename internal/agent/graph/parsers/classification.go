package parsers

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vtour-agent-core/server/internal/agent/model"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

const (
	recDelim = "##"
	tupDelim = "<||>"
	endDelim = "<|COMPLETE|>"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 16 * 1024
	maxRecords    = 64
	maxTupleLen   = 1024
	maxErrSnippet = 200
)

// Classification is a parsed model answer to the classification prompt.
type Classification struct {
	Intent     model.IntentType
	Confidence float64
	Entities   model.Entities
	// Errors lists records that were skipped.
	Errors []string
}

type rawTuple struct {
	Type  string
	Parts []string
}

func parseRawTuple(s string) (*rawTuple, error) {
	if s == "" {
		return nil, fmt.Errorf("empty tuple")
	}
	if len(s) > maxTupleLen {
		return nil, fmt.Errorf("tuple too large")
	}
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, fmt.Errorf("invalid tuple parens")
	}
	// remove the outermost parens only; values may contain delimiters
	parts := strings.SplitN(s[1:len(s)-1], tupDelim, 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid tuple parts")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return &rawTuple{Type: parts[0], Parts: parts}, nil
}

func parseConfidence(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("confidence parse: %w", err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
		return 0, fmt.Errorf("confidence out of range")
	}
	return v, nil
}

// ParseClassification reads the tuple answer format. When no intent tuple is
// found it falls back to a (possibly broken) JSON object of the form
// {"intent": "...", "confidence": 0.8, "entities": {...}}.
func ParseClassification(content string) (*Classification, error) {
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "classification_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, "")
	}

	res := parseTuples(content)
	if res.Intent != "" {
		return res, nil
	}
	if js, ok := parseJSON(content); ok {
		return js, nil
	}
	return nil, fmt.Errorf("no intent in answer: %q", safeSnippet(content))
}

func parseTuples(content string) *Classification {
	if idx := strings.Index(content, endDelim); idx >= 0 {
		content = content[:idx]
	}
	res := &Classification{Entities: model.Entities{}}
	processed := 0
	for _, rec := range strings.Split(content, recDelim) {
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		// drop prose the model put before the tuple
		if i := strings.Index(rec, "("); i > 0 {
			rec = rec[i:]
		}
		if processed >= maxRecords {
			res.Errors = append(res.Errors, "records capped")
			break
		}
		processed++

		rt, err := parseRawTuple(rec)
		if err != nil {
			res.Errors = append(res.Errors, "bad_record: "+safeSnippet(rec))
			continue
		}
		switch rt.Type {
		case "intent":
			if len(rt.Parts) < 3 {
				res.Errors = append(res.Errors, "intent: insufficient parts")
				continue
			}
			it, ok := model.ParseIntentType(rt.Parts[1])
			if !ok {
				res.Errors = append(res.Errors, "intent: unknown label "+safeSnippet(rt.Parts[1]))
				continue
			}
			conf, err := parseConfidence(rt.Parts[2])
			if err != nil {
				res.Errors = append(res.Errors, "intent: invalid confidence")
				continue
			}
			// keep the most confident intent tuple
			if res.Intent == "" || conf > res.Confidence {
				res.Intent, res.Confidence = it, conf
			}
		case "entity":
			if len(rt.Parts) < 3 || rt.Parts[1] == "" || rt.Parts[2] == "" {
				res.Errors = append(res.Errors, "entity: insufficient parts")
				continue
			}
			res.Entities.Add(model.EntityKey(strings.ToLower(rt.Parts[1])), rt.Parts[2])
		default:
			res.Errors = append(res.Errors, "unknown tuple type")
		}
	}
	return res
}

type jsonClassification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Entities   any     `json:"entities"`
}

func parseJSON(content string) (*Classification, bool) {
	raw, ok := ExtractJSONObject(content)
	if !ok {
		return nil, false
	}
	var jc jsonClassification
	if err := UnmarshalRepaired([]byte(raw), &jc); err != nil {
		return nil, false
	}
	it, ok := model.ParseIntentType(jc.Intent)
	if !ok {
		return nil, false
	}
	res := &Classification{Intent: it, Confidence: jc.Confidence, Entities: model.Entities{}}
	if res.Confidence <= 0 || res.Confidence > 1 {
		res.Confidence = 0.7
	}
	switch ents := jc.Entities.(type) {
	case map[string]any:
		for k, v := range ents {
			switch vv := v.(type) {
			case string:
				res.Entities.Add(model.EntityKey(strings.ToLower(k)), vv)
			case float64:
				res.Entities.Add(model.EntityKey(strings.ToLower(k)), strconv.FormatFloat(vv, 'f', -1, 64))
			case []any:
				for _, x := range vv {
					if s, ok := x.(string); ok {
						res.Entities.Add(model.EntityKey(strings.ToLower(k)), s)
					}
				}
			}
		}
	case []any:
		// bare list of mentions
		for _, x := range ents {
			if s, ok := x.(string); ok {
				res.Entities.Add(model.EntityQuery, s)
			}
		}
	}
	return res, true
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}

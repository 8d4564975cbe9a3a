package parsers

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// UnmarshalRepaired decodes data into v. Syntactically broken JSON, as models
// tend to produce, is repaired once before giving up.
func UnmarshalRepaired(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	var syn *json.SyntaxError
	if !errors.As(err, &syn) {
		return err
	}
	fixed, rerr := jsonrepair.JSONRepair(string(data))
	if rerr != nil {
		return rerr
	}
	return json.Unmarshal([]byte(fixed), v)
}

// ExtractJSONObject returns the outermost {...} span of s, tolerating a
// missing closing brace and markdown fences around it.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", false
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		rest := s[start:]
		if i := strings.Index(rest, "```"); i >= 0 {
			rest = rest[:i]
		}
		return strings.TrimSpace(rest), true
	}
	return s[start : end+1], true
}

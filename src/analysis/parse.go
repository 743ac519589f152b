package analysis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type reply struct {
	Score   *float64       `json:"score"`
	Issues  []Issue        `json:"issues"`
	Summary string         `json:"summary"`
	Fields  map[string]any `json:"fields"`
}

// ParseReply extracts the outermost JSON object from raw and decodes it.
func ParseReply(raw string) (*Result, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object", errMalformed)
	}

	var r reply
	if err := json.Unmarshal([]byte(raw[start:end+1]), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if r.Score == nil {
		return nil, fmt.Errorf("%w: score missing", errMalformed)
	}
	// A reply on another scale (0-100, percentages) is not clamped into a
	// confident 1.0.
	if *r.Score < 0 || *r.Score > 1 {
		return nil, fmt.Errorf("%w: score %v outside [0,1]", errMalformed, *r.Score)
	}

	res := &Result{
		Score:   *r.Score,
		Summary: strings.TrimSpace(r.Summary),
	}
	for _, is := range r.Issues {
		if strings.TrimSpace(is.Message) == "" && strings.TrimSpace(is.Code) == "" {
			continue
		}
		res.Issues = append(res.Issues, is)
	}
	if len(r.Fields) > 0 {
		res.Extracted = make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			if v == nil {
				continue
			}
			res.Extracted[k] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return res, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

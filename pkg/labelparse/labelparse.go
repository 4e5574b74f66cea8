// Package labelparse extracts label strings from the free-form text a
// generative model returns when asked for labels.
//
// Models answer in many shapes: a JSON array, a JSON object with a "tags"
// field, a brace list like "{long hair, blue eyes}", a numbered or bulleted
// list, or plain comma- or newline-separated text, often wrapped in a
// Markdown code fence and sometimes with broken JSON. [Parse] accepts all of
// them.
package labelparse

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/haivivi/tagmatch/pkg/normalize"
)

var (
	fenceRe  = regexp.MustCompile("```[a-zA-Z]*\\n?")
	braceRe  = regexp.MustCompile(`\{\s*([^{}]+?)\s*\}`)
	numberRe = regexp.MustCompile(`(?m)^\s*\d+[.)]\s*`)
	bulletRe = regexp.MustCompile(`(?m)^\s*[-*•]\s*`)
)

// objectKeys are the fields searched, in order, when the model answers
// with a JSON object.
var objectKeys = []string{"tags", "labels", "items"}

// Parse returns the labels found in raw, in order of appearance, without
// duplicates (two labels that normalize alike count as one). It never
// fails: text that yields no labels returns nil.
func Parse(raw string) []string {
	text := strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))
	if text == "" {
		return nil
	}
	if labels, ok := parseJSON(text); ok {
		return dedupe(labels)
	}
	return dedupe(parseText(text))
}

// parseJSON handles array and object answers. Objects without a colon are
// brace lists, not JSON, and are left to parseText.
func parseJSON(text string) ([]string, bool) {
	switch {
	case strings.HasPrefix(text, "["):
	case strings.HasPrefix(text, "{") && strings.Contains(text, ":"):
	default:
		return nil, false
	}
	var v any
	if err := unmarshalJSON([]byte(text), &v); err != nil {
		return nil, false
	}
	labels, ok := collect(v)
	return labels, ok
}

// unmarshalJSON unmarshals data into v, repairing malformed JSON on a
// syntax error.
func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, err := jsonrepair.JSONRepair(string(data))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

func collect(v any) ([]string, bool) {
	switch x := v.(type) {
	case []any:
		var out []string
		for _, item := range x {
			switch it := item.(type) {
			case string:
				out = append(out, it)
			case map[string]any:
				// [{"tag": "long_hair"}, ...]
				for _, k := range []string{"tag", "name", "label"} {
					if s, ok := it[k].(string); ok {
						out = append(out, s)
						break
					}
				}
			}
		}
		return out, true
	case map[string]any:
		for _, k := range objectKeys {
			if inner, ok := x[k]; ok {
				return collect(inner)
			}
		}
	case string:
		return parseText(x), true
	}
	return nil, false
}

func parseText(text string) []string {
	if m := braceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = numberRe.ReplaceAllString(text, "")
	text = bulletRe.ReplaceAllString(text, "")

	sep := "\n"
	if strings.Contains(text, ",") {
		sep = ","
	}
	var out []string
	for _, part := range strings.Split(text, sep) {
		if s := strings.Trim(strings.TrimSpace(part), "\"'`"); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func dedupe(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	var out []string
	for _, l := range labels {
		l = strings.TrimSpace(l)
		key := normalize.Normalize(l)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}

package extraction

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

var errNoJSONObject = errors.New("no JSON object found in model response")

// Recovery names the tier that produced the JSON object.
type Recovery string

const (
	RecoveryDirect Recovery = "direct"
	RecoveryFenced Recovery = "fenced"
	RecoveryBraces Recovery = "braces"
)

// recoverJSONObject pulls a JSON object out of model output. It tries the
// whole text, then a ```json fenced block, then the span from the first '{'
// to the last '}'.
func recoverJSONObject(raw string) (map[string]any, Recovery, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, "", errors.New("empty response from model")
	}

	if obj, ok := decodeObject(s); ok {
		return obj, RecoveryDirect, nil
	}

	if m := fencedJSON.FindStringSubmatch(s); m != nil {
		if obj, ok := decodeObject(m[1]); ok {
			return obj, RecoveryFenced, nil
		}
	}

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			if obj, ok := decodeObject(s[start : end+1]); ok {
				return obj, RecoveryBraces, nil
			}
		}
	}

	return nil, "", errNoJSONObject
}

// decodeObject accepts a JSON object, or an array holding exactly one object.
// Numbers stay json.Number so long digit strings keep every digit.
func decodeObject(s string) (map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case []any:
		if len(t) == 1 {
			if obj, ok := t[0].(map[string]any); ok {
				return obj, true
			}
		}
	}
	return nil, false
}

package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// GradeAnswer compares a submitted answer against the catalog's
// correct-answer key using the equality rule for the question format:
// exact normalized match for single-choice and true/false, and
// order-independent pair equality for matching questions.
func GradeAnswer(format QuestionFormat, correctKey json.RawMessage, selected interface{}) bool {
	if len(correctKey) == 0 || selected == nil {
		return false
	}

	var correct interface{}
	if err := json.Unmarshal(correctKey, &correct); err != nil {
		return false
	}

	switch format {
	case FormatMatching:
		correctPairs, ok := toPairSet(correct)
		if !ok {
			return false
		}
		selectedPairs, ok := toPairSet(selected)
		if !ok {
			return false
		}
		return pairSetsEqual(correctPairs, selectedPairs)
	default:
		return normalizeScalar(correct) == normalizeScalar(selected)
	}
}

// normalizeScalar renders a scalar answer value into a canonical string
// so "2", 2 and 2.0 compare equal, as do true and "true".
func normalizeScalar(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case nil:
		return ""
	default:
		// Composite values for a scalar format never match.
		raw, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// toPairSet normalizes a matching answer into left → right form.
// Accepted shapes: {"a":"1","b":"2"} or [{"left":"a","right":"1"}, ...].
func toPairSet(v interface{}) (map[string]string, bool) {
	switch val := v.(type) {
	case map[string]interface{}:
		pairs := make(map[string]string, len(val))
		for left, right := range val {
			pairs[strings.TrimSpace(left)] = normalizeScalar(right)
		}
		return pairs, true
	case []interface{}:
		pairs := make(map[string]string, len(val))
		for _, item := range val {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return nil, false
			}
			left, ok := obj["left"]
			if !ok {
				return nil, false
			}
			pairs[normalizeScalar(left)] = normalizeScalar(obj["right"])
		}
		return pairs, true
	default:
		return nil, false
	}
}

func pairSetsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for left, right := range a {
		if other, ok := b[left]; !ok || other != right {
			return false
		}
	}
	return true
}

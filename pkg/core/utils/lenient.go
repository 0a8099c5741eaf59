package utils

import (
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// Strategy names the decoder that accepted a document.
type Strategy string

const (
	StrategyJSON     Strategy = "json"
	StrategyRepaired Strategy = "json-repair"
	StrategyHJSON    Strategy = "hjson"
)

// RepairJSON fixes the usual hand-editing mistakes in exported survey files:
// unquoted keys, single quotes, trailing commas, comments, unclosed
// brackets and markdown code fences.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("json repair: %w", err)
	}
	return repaired, nil
}

// HJSONToJSON converts a Human JSON document (comments, unquoted keys and
// strings, optional commas) into standard JSON.
func HJSONToJSON(data string) (string, error) {
	var doc interface{}
	if err := hjson.Unmarshal([]byte(data), &doc); err != nil {
		return "", fmt.Errorf("hjson parse: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("hjson re-encode: %w", err)
	}
	return string(out), nil
}

// DecodeLenient decodes input into v, trying in order:
//  1. encoding/json
//  2. hjson → JSON, then encoding/json
//  3. json-repair, then encoding/json
//
// HJSON has a strict grammar and runs before the heuristic repair. Both
// fallbacks go back through encoding/json so that struct tags behave the
// same on every path.
func DecodeLenient(input string, v interface{}) (Strategy, error) {
	firstErr := json.Unmarshal([]byte(input), v)
	if firstErr == nil {
		return StrategyJSON, nil
	}

	if converted, err := HJSONToJSON(input); err == nil {
		if err := json.Unmarshal([]byte(converted), v); err == nil {
			return StrategyHJSON, nil
		}
	}

	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return StrategyRepaired, nil
		}
	}

	return "", fmt.Errorf("lenient decode: no strategy accepted the input: %w", firstErr)
}

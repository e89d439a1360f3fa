package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/agentic-research/dirworld/api"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Generic converts a payload into plain maps and slices, the form JSONPath
// expressions run against.
func Generic(p *api.Payload) (any, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	data, err := oj.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse payload json: %w", err)
	}
	return data, nil
}

// Select evaluates a JSONPath expression against a payload.
func Select(p *api.Payload, selector string) ([]any, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	data, err := Generic(p)
	if err != nil {
		return nil, err
	}
	return x.Get(data), nil
}

package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Holdings maps a shareholder name to its raw percentage value, in the
// order the acquisition layer reported them. Values are typically float64
// or string and are coerced when loaded into an ownership graph.
type Holdings = orderedmap.OrderedMap[string, any]

// NewHoldings creates an empty Holdings map
func NewHoldings() *Holdings {
	return orderedmap.New[string, any]()
}

// Payload is the raw ownership graph handed over by the acquisition layer:
//
//	{"direct_shareholders": {name: pct}, "entity_structure": {entity: {name: pct}}}
type Payload struct {
	DirectShareholders *Holdings                                 `json:"direct_shareholders"`
	EntityStructure    *orderedmap.OrderedMap[string, *Holdings] `json:"entity_structure"`
}

// NewPayload creates an empty payload
func NewPayload() *Payload {
	return &Payload{
		DirectShareholders: NewHoldings(),
		EntityStructure:    orderedmap.New[string, *Holdings](),
	}
}

// UnmarshalJSON decodes a payload preserving key order. Entity structure
// entries whose value is not a JSON object are skipped.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var raw struct {
		DirectShareholders *Holdings                                       `json:"direct_shareholders"`
		EntityStructure    *orderedmap.OrderedMap[string, json.RawMessage] `json:"entity_structure"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	p.DirectShareholders = raw.DirectShareholders
	if p.DirectShareholders == nil {
		p.DirectShareholders = NewHoldings()
	}

	p.EntityStructure = orderedmap.New[string, *Holdings]()
	if raw.EntityStructure == nil {
		return nil
	}
	for pair := raw.EntityStructure.Oldest(); pair != nil; pair = pair.Next() {
		trimmed := bytes.TrimSpace(pair.Value)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		holders := NewHoldings()
		if err := json.Unmarshal(trimmed, holders); err != nil {
			continue
		}
		p.EntityStructure.Set(pair.Key, holders)
	}
	return nil
}

// Fingerprint returns a canonical encoding used to key cached analyses
func (p *Payload) Fingerprint() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	return json.Marshal(p)
}

// ParsePayload decodes either a bare payload or a crawl result that wraps
// the payload under "calculator_input".
func ParsePayload(data []byte) (*Payload, error) {
	var envelope struct {
		CalculatorInput json.RawMessage `json:"calculator_input"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if len(envelope.CalculatorInput) > 0 && !bytes.Equal(bytes.TrimSpace(envelope.CalculatorInput), []byte("null")) {
		data = envelope.CalculatorInput
	}

	payload := NewPayload()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

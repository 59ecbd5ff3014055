package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON writes the graph as an object keyed by institution name,
// in iteration order.
func (g *Graph) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range g.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(g.nodes[name])
		if err != nil {
			return nil, fmt.Errorf("failed to encode %q: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the object written by MarshalJSON, keeping key
// order. The first legend found becomes the shared legend.
func (g *Graph) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("graph must be a JSON object")
	}

	fresh := New()
	var legend *Legend
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name := tok.(string)

		var decoded Institution
		if err := dec.Decode(&decoded); err != nil {
			return fmt.Errorf("failed to decode %q: %w", name, err)
		}
		if legend == nil && decoded.Legend != nil {
			legend = decoded.Legend
		}

		inst := fresh.Ensure(name)
		inst.Coords = decoded.Coords
		inst.Geocoding = decoded.Geocoding
		for neighbour, rows := range decoded.Neighbours {
			if rows == nil {
				rows = NewRowSet()
			}
			inst.Neighbours[neighbour] = rows
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	if legend != nil {
		fresh.SetLegend(*legend)
	}
	*g = *fresh
	return nil
}

// UnmarshalJSON accepts both the current entry form and the older
// {"name", "value"} form.
func (e *LegendEntry) UnmarshalJSON(data []byte) error {
	var aux struct {
		Label    *string `json:"label"`
		RowIndex *int    `json:"row_index"`
		Name     string  `json:"name"`
		Value    int     `json:"value"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Label, e.RowIndex = aux.Name, aux.Value
	if aux.Label != nil {
		e.Label = *aux.Label
	}
	if aux.RowIndex != nil {
		e.RowIndex = *aux.RowIndex
	}
	return nil
}

// UnmarshalJSON accepts stored results and raw provider records that
// carry their coordinates under geometry.location.
func (p *PlaceResult) UnmarshalJSON(data []byte) error {
	type plain PlaceResult
	var aux struct {
		plain
		Location *Coords `json:"location"`
		Geometry *struct {
			Location Coords `json:"location"`
		} `json:"geometry"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = PlaceResult(aux.plain)
	switch {
	case aux.Location != nil:
		p.Location = *aux.Location
	case aux.Geometry != nil:
		p.Location = aux.Geometry.Location
		if p.Raw == nil {
			p.Raw = append(json.RawMessage(nil), data...)
		}
	}
	return nil
}

// Validate checks that every neighbour exists and that relationships are
// symmetric with identical rows.
func (g *Graph) Validate() error {
	for _, name := range g.order {
		inst := g.nodes[name]
		for neighbour, rows := range inst.Neighbours {
			other, ok := g.nodes[neighbour]
			if !ok {
				return fmt.Errorf("%q references unknown institution %q", name, neighbour)
			}
			back, ok := other.Neighbours[name]
			if !ok || !back.Equal(rows) {
				return fmt.Errorf("relationship %q - %q is not symmetric", name, neighbour)
			}
		}
		if inst.Legend != g.legend {
			return fmt.Errorf("%q does not share the graph legend", name)
		}
	}
	return nil
}

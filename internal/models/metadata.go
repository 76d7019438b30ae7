package models

import (
	"encoding/json"
	"fmt"
)

// Metadata is the record kept for every index entry: a fixed core plus an open
// extension map for collaborator-supplied fields. It serializes as one flat
// JSON object, e.g. {"id":0,"text":"...","source":"book","chunk_index":3}.
type Metadata struct {
	ID     int64
	Text   string
	Source string
	Extra  map[string]any
}

const (
	metaKeyID     = "id"
	metaKeyText   = "text"
	metaKeySource = "source"
)

// Fields returns the flat field map, including id, text and source.
func (m Metadata) Fields() map[string]any {
	out := make(map[string]any, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	out[metaKeyID] = m.ID
	out[metaKeyText] = m.Text
	out[metaKeySource] = m.Source
	return out
}

// Clone returns a copy whose Extra map is not shared with m.
func (m Metadata) Clone() Metadata {
	c := m
	if m.Extra != nil {
		c.Extra = make(map[string]any, len(m.Extra))
		for k, v := range m.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// MarshalJSON flattens the core fields and Extra into one object.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Fields())
}

// UnmarshalJSON splits a flat object back into core fields and Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	if v, ok := raw[metaKeyID]; ok {
		if err := json.Unmarshal(v, &m.ID); err != nil {
			return fmt.Errorf("metadata id: %w", err)
		}
		delete(raw, metaKeyID)
	}
	if v, ok := raw[metaKeyText]; ok {
		if err := json.Unmarshal(v, &m.Text); err != nil {
			return fmt.Errorf("metadata text: %w", err)
		}
		delete(raw, metaKeyText)
	}
	if v, ok := raw[metaKeySource]; ok {
		if err := json.Unmarshal(v, &m.Source); err != nil {
			return fmt.Errorf("metadata source: %w", err)
		}
		delete(raw, metaKeySource)
	}
	if len(raw) == 0 {
		return nil
	}
	m.Extra = make(map[string]any, len(raw))
	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("metadata %s: %w", k, err)
		}
		m.Extra[k] = val
	}
	return nil
}

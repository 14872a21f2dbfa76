package models

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"slices"
)

// TextKey is a map key with a canonical text form, used as the JSON object key
type TextKey interface {
	comparable
	encoding.TextMarshaler
}

// OrderedMap is a map that remembers insertion order. Re-setting an existing
// key keeps its position. It encodes to a JSON object in that order.
// The zero value is an empty map ready to use.
type OrderedMap[K TextKey, V any] struct {
	keys   []K
	values map[K]V
}

func (m OrderedMap[K, V]) Len() int {
	return len(m.keys)
}

func (m OrderedMap[K, V]) Get(key K) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m OrderedMap[K, V]) Has(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Set inserts or replaces the value for key
func (m *OrderedMap[K, V]) Set(key K, value V) {
	if m.values == nil {
		m.values = make(map[K]V)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *OrderedMap[K, V]) Delete(key K) {
	if _, exists := m.values[key]; !exists {
		return
	}
	delete(m.values, key)
	m.keys = slices.DeleteFunc(m.keys, func(k K) bool { return k == key })
}

// Clear removes every entry
func (m *OrderedMap[K, V]) Clear() {
	m.keys = nil
	m.values = make(map[K]V)
}

// Keys returns a copy of the keys in insertion order
func (m OrderedMap[K, V]) Keys() []K {
	return slices.Clone(m.keys)
}

// Values returns the values in insertion order
func (m OrderedMap[K, V]) Values() []V {
	out := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.values[k])
	}
	return out
}

// Clone returns a shallow copy; values are copied by assignment
func (m OrderedMap[K, V]) Clone() OrderedMap[K, V] {
	out := OrderedMap[K, V]{
		keys:   slices.Clone(m.keys),
		values: make(map[K]V, len(m.values)),
	}
	for k, v := range m.values {
		out.values[k] = v
	}
	return out
}

func (m OrderedMap[K, V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyText, err := k.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("marshal key: %w", err)
		}
		keyJSON, err := json.Marshal(string(keyText))
		if err != nil {
			return nil, err
		}
		valueJSON, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for %s: %w", keyText, err)
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valueJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *OrderedMap[K, V]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		m.Clear()
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("ordered map: expected object, got %v", tok)
	}

	m.Clear()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		keyText, ok := tok.(string)
		if !ok {
			return fmt.Errorf("ordered map: expected string key, got %v", tok)
		}
		var key K
		unmarshaler, ok := any(&key).(encoding.TextUnmarshaler)
		if !ok {
			return fmt.Errorf("ordered map: key type %T cannot be decoded", key)
		}
		if err := unmarshaler.UnmarshalText([]byte(keyText)); err != nil {
			return err
		}
		var value V
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("ordered map value for %s: %w", keyText, err)
		}
		m.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package ordered

// Map is an insertion-ordered map. The zero value is not usable, create one by New.
type Map[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

// New creates an empty Map.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		values: make(map[K]V),
	}
}

// Len returns the amount of entries.
func (m *Map[K, V]) Len() int {
	return len(m.values)
}

// Has checks if a key is present.
func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.values[key]
	return ok
}

// Get the value for a key. The second return value indicates its presence.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	value, ok = m.values[key]
	return
}

// Set a key's value. An existing key keeps its position.
func (m *Map[K, V]) Set(key K, value V) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// GetOrSet returns the present value for key or stores and returns the one created by fn.
func (m *Map[K, V]) GetOrSet(key K, fn func() V) V {
	if value, ok := m.values[key]; ok {
		return value
	}

	value := fn()
	m.Set(key, value)
	return value
}

// Delete a key and return its former value, if any.
func (m *Map[K, V]) Delete(key K) (value V, ok bool) {
	if value, ok = m.values[key]; !ok {
		return
	}

	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return
}

// Clear removes all entries.
func (m *Map[K, V]) Clear() {
	m.keys = nil
	m.values = make(map[K]V)
}

// Keys in insertion order.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Values in insertion order.
func (m *Map[K, V]) Values() []V {
	values := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		values = append(values, m.values[k])
	}
	return values
}

// Each calls fn for every entry in insertion order until fn returns false.
// Entries deleted during the walk are skipped.
func (m *Map[K, V]) Each(fn func(key K, value V) bool) {
	for _, k := range m.Keys() {
		value, ok := m.values[k]
		if !ok {
			continue
		}
		if !fn(k, value) {
			return
		}
	}
}

// Copy returns a shallow copy.
func (m *Map[K, V]) Copy() *Map[K, V] {
	c := &Map[K, V]{
		keys:   m.Keys(),
		values: make(map[K]V, len(m.values)),
	}
	for k, v := range m.values {
		c.values[k] = v
	}
	return c
}

// FilterMap transforms each entry in insertion order by fn. Entries for which fn reports false are ignored.
func FilterMap[K comparable, V any, R any](m *Map[K, V], fn func(key K, value V) (R, bool)) []R {
	var results []R
	m.Each(func(key K, value V) bool {
		if r, ok := fn(key, value); ok {
			results = append(results, r)
		}
		return true
	})
	return results
}

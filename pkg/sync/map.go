package sync

import "sync"

// TypedSyncMap is a type-safe wrapper around sync.Map.
type TypedSyncMap[K comparable, V any] struct {
	m sync.Map
}

func (m *TypedSyncMap[K, V]) Load(key K) (V, bool) {
	v, ok := m.m.Load(key)
	if !ok {
		return *new(V), ok
	}

	if vv, ok := v.(V); ok {
		return vv, true
	}
	return *new(V), false
}

func (m *TypedSyncMap[K, V]) Store(key K, value V) { m.m.Store(key, value) }

// Range calls f sequentially for each key and value present in the map. If f
// returns false, range stops the iteration.
func (m *TypedSyncMap[K, V]) Range(f func(key K, value V) bool) {
	m.m.Range(func(k, v any) bool {
		kk, kOk := k.(K)
		vv, vOk := v.(V)
		if !kOk || !vOk {
			return true
		}

		return f(kk, vv)
	})
}

// Values returns every value currently held in the map, in no particular order.
func (m *TypedSyncMap[K, V]) Values() []V {
	out := make([]V, 0)
	m.Range(func(_ K, v V) bool {
		out = append(out, v)
		return true
	})

	return out
}

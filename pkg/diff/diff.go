// Package diff computes the one-level difference between two mappings.
//
// Values are compared loosely, so a string read back from the URL equals the
// number it was written from ("1" and 1 are the same). Nested structures do
// not exist in a mapping, so the diff is never recursive.
package diff

import (
	"encoding/json"
	"sort"

	"github.com/vango-dev/hashsync/pkg/mapping"
)

// Op classifies a difference.
type Op string

const (
	// OpAdd marks a key present only in the new mapping.
	OpAdd Op = "add"

	// OpRemove marks a key present only in the old mapping.
	OpRemove Op = "remove"

	// OpChange marks a key present in both with loosely unequal values.
	OpChange Op = "change"
)

// Entry describes one key's difference. Add and remove entries carry Value;
// change entries carry Old and New.
type Entry struct {
	Op    Op
	Value mapping.Value
	Old   mapping.Value
	New   mapping.Value
}

// Diff maps keys to their differences. A nil Diff means "no difference".
type Diff map[string]Entry

// Compute returns the difference from a to b:
//   - keys of a missing from b are removed
//   - keys in both whose values are loosely unequal are changed
//   - keys of b missing from a are added
//
// It returns nil when a and b are loosely equal.
func Compute(a, b *mapping.Mapping) Diff {
	d := Diff{}
	a.Range(func(k string, av mapping.Value) bool {
		bv, ok := b.Get(k)
		switch {
		case !ok:
			d[k] = Entry{Op: OpRemove, Value: av}
		case !mapping.LooseEqual(av, bv):
			d[k] = Entry{Op: OpChange, Old: av, New: bv}
		}
		return true
	})
	b.Range(func(k string, bv mapping.Value) bool {
		if !a.Has(k) {
			d[k] = Entry{Op: OpAdd, Value: bv}
		}
		return true
	})
	if len(d) == 0 {
		return nil
	}
	return d
}

// Keys returns the changed keys in lexicographic order.
func (d Diff) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether key changed.
func (d Diff) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Count returns the number of entries per op.
func (d Diff) Count() map[Op]int {
	out := make(map[Op]int, 3)
	for _, e := range d {
		out[e.Op]++
	}
	return out
}

// MarshalJSON encodes the entry as {"op": ..., "value": ...}. A change
// carries [old, new] as its value.
func (e Entry) MarshalJSON() ([]byte, error) {
	var value any = e.Value
	if e.Op == OpChange {
		value = [2]mapping.Value{e.Old, e.New}
	}
	return json.Marshal(struct {
		Op    Op  `json:"op"`
		Value any `json:"value"`
	}{e.Op, value})
}

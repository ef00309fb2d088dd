package columns

import (
	"github.com/komsit37/screener/pkg/screener/types"
)

// Compute reconciles a stored column order against the canonical set.
// Unknown and repeated keys are dropped (first occurrence wins) and any
// canonical key missing from explicit is appended in declaration order, so
// the result is always a permutation of canonical.
func Compute(explicit, canonical []types.ColumnKey) []types.ColumnKey {
	known := make(map[types.ColumnKey]struct{}, len(canonical))
	for _, k := range canonical {
		known[k] = struct{}{}
	}
	seen := make(map[types.ColumnKey]struct{}, len(canonical))
	out := make([]types.ColumnKey, 0, len(canonical))
	for _, k := range explicit {
		if _, ok := known[k]; !ok {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for _, k := range canonical {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// ComputeHidden keeps the known, unlocked keys of hidden, deduplicated and in
// canonical order.
func ComputeHidden(hidden, canonical, locked []types.ColumnKey) []types.ColumnKey {
	want := make(map[types.ColumnKey]struct{}, len(hidden))
	for _, k := range hidden {
		want[k] = struct{}{}
	}
	for _, k := range locked {
		delete(want, k)
	}
	out := make([]types.ColumnKey, 0, len(want))
	for _, k := range canonical {
		if _, ok := want[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// IsPermutation reports whether order holds every key of set exactly once
// and nothing else.
func IsPermutation(order, set []types.ColumnKey) bool {
	if len(order) != len(set) {
		return false
	}
	want := make(map[types.ColumnKey]int, len(set))
	for _, k := range set {
		want[k]++
	}
	for _, k := range order {
		n, ok := want[k]
		if !ok || n == 0 {
			return false
		}
		want[k] = n - 1
	}
	return true
}

// Move returns a copy of order with the key at from moved to the position of
// to, shifting the keys in between (drag-and-drop semantics). Unknown keys
// return an unchanged copy.
func Move(order []types.ColumnKey, from, to types.ColumnKey) []types.ColumnKey {
	out := append([]types.ColumnKey(nil), order...)
	fi, ti := IndexOf(out, from), IndexOf(out, to)
	if fi < 0 || ti < 0 || fi == ti {
		return out
	}
	k := out[fi]
	if fi < ti {
		copy(out[fi:ti], out[fi+1:ti+1])
	} else {
		copy(out[ti+1:fi+1], out[ti:fi])
	}
	out[ti] = k
	return out
}

// Visible filters order by the hidden set; locked keys always stay visible.
func Visible(order, hidden, locked []types.ColumnKey) []types.ColumnKey {
	h := make(map[types.ColumnKey]struct{}, len(hidden))
	for _, k := range hidden {
		h[k] = struct{}{}
	}
	for _, k := range locked {
		delete(h, k)
	}
	out := make([]types.ColumnKey, 0, len(order))
	for _, k := range order {
		if _, ok := h[k]; ok {
			continue
		}
		out = append(out, k)
	}
	return out
}

// Contains reports whether s holds v.
func Contains(s []types.ColumnKey, v types.ColumnKey) bool {
	return IndexOf(s, v) >= 0
}

// IndexOf returns the position of v in s or -1.
func IndexOf(s []types.ColumnKey, v types.ColumnKey) int {
	for i, e := range s {
		if e == v {
			return i
		}
	}
	return -1
}

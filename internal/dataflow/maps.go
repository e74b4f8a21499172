package dataflow

// MapsEqual reports key-wise equality of two environments.
func MapsEqual[V comparable](a, b map[string]V) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		ov, ok := b[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// CloneMap copies an environment.
func CloneMap[V comparable](m map[string]V) map[string]V {
	c := make(map[string]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// MergeCommon keeps exactly the key/value pairs present and agreeing in
// every slot, empty slots included. This is the strict join constant
// propagation uses: a disagreeing or partial key is dropped.
func MergeCommon[V comparable](dicts []map[string]V) map[string]V {
	out := map[string]V{}
	seeded := false
	for _, d := range dicts {
		if len(d) > 0 {
			for k, v := range d {
				out[k] = v
			}
			seeded = true
			break
		}
	}
	if !seeded {
		return out
	}
	for _, d := range dicts {
		for k, v := range out {
			ov, ok := d[k]
			if !ok || ov != v {
				delete(out, k)
			}
		}
	}
	return out
}

// MergePermissive is the join SSA renaming uses: empty slots are skipped,
// keys agreeing across every non-empty slot keep their value, keys unique to
// some slots are injected with the first observed value, and keys every slot
// defines with disagreeing values are dropped (a phi carries them instead).
func MergePermissive[V comparable](dicts []map[string]V) map[string]V {
	agreed := map[string]V{}
	inAll := map[string]bool{}
	seeded := false
	for _, d := range dicts {
		if len(d) > 0 {
			for k, v := range d {
				agreed[k] = v
				inAll[k] = true
			}
			seeded = true
			break
		}
	}
	if !seeded {
		return agreed
	}
	for _, d := range dicts {
		if len(d) == 0 {
			continue
		}
		for k, v := range agreed {
			ov, ok := d[k]
			if !ok || ov != v {
				delete(agreed, k)
			}
		}
		for k := range inAll {
			if _, ok := d[k]; !ok {
				inAll[k] = false
			}
		}
	}
	out := agreed
	for _, d := range dicts {
		for k, v := range d {
			if _, ok := out[k]; ok {
				continue
			}
			if inAll[k] {
				// Defined everywhere but values disagree: dropped.
				continue
			}
			out[k] = v
		}
	}
	return out
}

package normalize

// accessor resolves one candidate location for a logical field in a raw
// provider record. The second return reports whether a non-nil value was
// present at that location.
type accessor func(raw map[string]any) (any, bool)

// roots are the containers a provider field may live under, highest
// precedence first. The provider has moved fields between these across API
// versions, so every logical field is probed at each root in order.
var roots = [][]string{
	{"properties", "fields"},
	{"fields"},
	{"properties"},
	{},
}

// atPath returns an accessor that descends the given key path.
func atPath(path ...string) accessor {
	return func(raw map[string]any) (any, bool) {
		cur := any(raw)
		for _, key := range path {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			cur, ok = m[key]
			if !ok {
				return nil, false
			}
		}
		if cur == nil {
			return nil, false
		}
		return cur, true
	}
}

// probesFor builds the full accessor list for a logical field: each candidate
// key name in order, probed at each root in order. The first present value
// wins.
func probesFor(names ...string) []accessor {
	out := make([]accessor, 0, len(names)*len(roots))
	for _, name := range names {
		for _, root := range roots {
			path := make([]string, 0, len(root)+1)
			path = append(path, root...)
			path = append(path, name)
			out = append(out, atPath(path...))
		}
	}
	return out
}

// firstMatch evaluates accessors in order and returns the first present value.
func firstMatch(raw map[string]any, probes []accessor) (any, bool) {
	for _, p := range probes {
		if v, ok := p(raw); ok {
			return v, true
		}
	}
	return nil, false
}

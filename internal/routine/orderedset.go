package routine

// OrderedSet is a string list that keeps insertion order and holds each
// value at most once. It marshals as a plain JSON array.
type OrderedSet []string

// NewOrderedSet builds a set from items, dropping repeats.
func NewOrderedSet(items ...string) OrderedSet {
	return OrderedSet(nil).Union(items...)
}

// Has reports whether item is in the set.
func (s OrderedSet) Has(item string) bool {
	for _, v := range s {
		if v == item {
			return true
		}
	}
	return false
}

// Union returns a new set holding s followed by the items not already seen.
// The receiver is never modified.
func (s OrderedSet) Union(items ...string) OrderedSet {
	out := make(OrderedSet, 0, len(s)+len(items))
	seen := make(map[string]struct{}, len(s)+len(items))
	for _, group := range [][]string{s, items} {
		for _, v := range group {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// Clone returns an independent copy; nil stays nil.
func (s OrderedSet) Clone() OrderedSet {
	if s == nil {
		return nil
	}
	out := make(OrderedSet, len(s))
	copy(out, s)
	return out
}

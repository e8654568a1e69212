package tokens

// Set is an unordered collection of tokens. The nil Set is empty and safe to read.
type Set map[string]struct{}

// NewSet builds a set from the given tokens
func NewSet(xs ...string) Set {
	s := make(Set, len(xs))
	for _, x := range xs {
		s[x] = struct{}{}
	}
	return s
}

// Has reports membership
func (s Set) Has(x string) bool {
	_, ok := s[x]
	return ok
}

// Add inserts x
func (s Set) Add(x string) {
	s[x] = struct{}{}
}

// Len returns the number of tokens
func (s Set) Len() int {
	return len(s)
}

// Union returns a new set holding the tokens of both sets
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for x := range s {
		out[x] = struct{}{}
	}
	for x := range other {
		out[x] = struct{}{}
	}
	return out
}

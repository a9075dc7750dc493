package refdata

// Set is a passthrough membership index for sources with no temporal
// dimension (known learner numbers, known postcodes).
type Set struct {
	m map[string]struct{}
}

// BuildSet constructs a Set from raw codes, normalizing each one. Empty
// codes are dropped and counted.
func BuildSet(source string, codes []string) (*Set, *Diagnostics) {
	diag := &Diagnostics{Source: source, Total: len(codes)}
	m := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		code := NormalizeCode(c)
		if code == "" {
			diag.Dropped++
			continue
		}
		m[code] = struct{}{}
	}
	return &Set{m: m}, diag
}

// Contains reports membership, case-insensitively.
func (s *Set) Contains(code string) bool {
	if s == nil {
		return false
	}
	_, ok := s.m[NormalizeCode(code)]
	return ok
}

// Len returns the number of distinct members.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.m)
}

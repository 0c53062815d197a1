package dnsproxy

import (
	"path"
	"strings"
)

// normalizeName lower-cases a query name and strips the root dot.
func normalizeName(name string) string {
	return strings.TrimSuffix(strings.ToLower(name), ".")
}

// TargetSet is an ordered set of domain suffixes.
type TargetSet struct {
	suffixes []string
}

// NewTargetSet normalizes domains, dropping empty and duplicate entries.
func NewTargetSet(domains []string) *TargetSet {
	s := &TargetSet{}
	seen := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
		if d == "" {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		s.suffixes = append(s.suffixes, d)
	}
	return s
}

// Match reports whether name equals an entry or is a subdomain of one.
func (s *TargetSet) Match(name string) bool {
	name = normalizeName(name)
	for _, suffix := range s.suffixes {
		if name == suffix || strings.HasSuffix(name, "."+suffix) {
			return true
		}
	}
	return false
}

// Domains returns the normalized entries in order.
func (s *TargetSet) Domains() []string {
	return append([]string(nil), s.suffixes...)
}

// PatternSet matches names against shell-style glob patterns.
type PatternSet struct {
	patterns []string
}

// NewPatternSet validates and normalizes patterns.
func NewPatternSet(patterns []string) (*PatternSet, error) {
	s := &PatternSet{}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, err := path.Match(p, ""); err != nil {
			return nil, err
		}
		s.patterns = append(s.patterns, p)
	}
	return s, nil
}

// Match reports whether name matches any pattern.
func (s *PatternSet) Match(name string) bool {
	name = normalizeName(name)
	for _, p := range s.patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

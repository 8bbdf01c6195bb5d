// Package prompts cleans, admits and loads raw prompt strings.
//
// Cleaning and admission are pluggable function values so a run can swap
// in its own rules. The defaults reproduce the rules the batch tool has
// always used: strip flag-like markers left over from other generators,
// trim stray quotes and commas, and drop fragments too short or too
// malformed to be worth a request.
package prompts

import "strings"

// CleanFunc rewrites a raw prompt. Implementations must be idempotent.
type CleanFunc func(string) string

// FilterFunc admits (true) or rejects (false) a cleaned prompt.
type FilterFunc func(string) bool

// DefaultMarkers are the flag tokens removed by the default cleaner.
var DefaultMarkers = []string{" -both ", " -h ", " -hd ", " -vivid "}

// trimCutset is stripped from both ends of a cleaned prompt.
const trimCutset = ",'\" \t\r\n"

// NewCleaner returns a CleanFunc that removes every marker and then trims
// commas, quotes and whitespace from both ends.
//
// Removal repeats until no marker remains, because cutting one marker can
// splice together the pieces of another (" -h -hd " -> " -hd "). That loop
// is what makes the cleaner idempotent.
//
// Example:
//
//	clean := prompts.NewCleaner(prompts.DefaultMarkers)
//	clean(`"a fox -hd in snow",`) // "a fox in snow"
func NewCleaner(markers []string) CleanFunc {
	active := make([]string, 0, len(markers))
	for _, m := range markers {
		if m != "" {
			active = append(active, m)
		}
	}

	return func(raw string) string {
		s := raw
		for {
			before := s
			for _, m := range active {
				// markers are delimited by spaces on both sides; replacing by
				// a single space keeps the neighbouring words apart
				s = strings.ReplaceAll(s, m, " ")
			}
			s = strings.Trim(s, trimCutset)
			if s == before {
				return s
			}
		}
	}
}

// DefaultCleaner is NewCleaner(DefaultMarkers).
func DefaultCleaner() CleanFunc {
	return NewCleaner(DefaultMarkers)
}

// Identity returns the prompt unchanged.
func Identity(s string) string { return s }

// AcceptAll admits every prompt.
func AcceptAll(string) bool { return true }

// FilterPolicy rejects prompts that are too short, have too few words or
// contain malformed template fragments.
type FilterPolicy struct {
	// MinChars is the minimum length in bytes.
	MinChars int

	// MinTokens is the minimum number of single-space separated tokens.
	MinTokens int

	// Rejects lists substrings that disqualify a prompt.
	Rejects []string
}

// DefaultFilterPolicy returns the policy used by the stock batch run.
func DefaultFilterPolicy() FilterPolicy {
	return FilterPolicy{
		MinChars:  10,
		MinTokens: 3,
		Rejects:   []string{",,", "[[", "{{"},
	}
}

// Admit reports whether s passes the policy.
func (p FilterPolicy) Admit(s string) bool {
	// split on single spaces, not strings.Fields: "a  b" is three tokens
	if len(strings.Split(s, " ")) < p.MinTokens {
		return false
	}
	if len(s) < p.MinChars {
		return false
	}
	for _, r := range p.Rejects {
		if r != "" && strings.Contains(s, r) {
			return false
		}
	}
	return true
}

// DefaultFilter is DefaultFilterPolicy().Admit.
func DefaultFilter() FilterFunc {
	return DefaultFilterPolicy().Admit
}

// Dedup removes exact duplicates, keeping the first occurrence of each.
func Dedup(prompts []string) []string {
	seen := make(map[string]struct{}, len(prompts))
	out := make([]string, 0, len(prompts))
	for _, p := range prompts {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Package matching implements name, document and date comparison used by
// sanctions screening.
package matching

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/agnivade/levenshtein"
)

// Class is the strength of a name match
type Class int

const (
	NoMatch Class = iota
	Fuzzy
	Potential
	Exact
)

func (c Class) String() string {
	switch c {
	case Exact:
		return "EXACT"
	case Potential:
		return "POTENTIAL"
	case Fuzzy:
		return "FUZZY"
	default:
		return "NONE"
	}
}

var (
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespace = regexp.MustCompile(`\s+`)
	docStrip   = strings.NewReplacer(" ", "", "\t", "", "-", "", ".", "")
)

// NameMatcher compares names with a blend of edit-distance and token overlap
type NameMatcher struct {
	cfg      config.MatchingConfig
	prefixes []string
	suffixes []string
}

// NewNameMatcher creates a matcher from the matching configuration
func NewNameMatcher(cfg config.MatchingConfig) *NameMatcher {
	m := &NameMatcher{cfg: cfg}
	for _, p := range cfg.Prefixes {
		m.prefixes = append(m.prefixes, strings.ToUpper(p))
	}
	for _, s := range cfg.Suffixes {
		m.suffixes = append(m.suffixes, strings.ToUpper(s))
	}
	return m
}

// NormalizeName uppercases the name, removes honorifics and generational
// suffixes, turns punctuation into spaces and collapses whitespace.
func (m *NameMatcher) NormalizeName(name string) string {
	n := strings.TrimSpace(strings.ToUpper(name))
	if n == "" {
		return ""
	}

	for _, p := range m.prefixes {
		if rest, ok := strings.CutPrefix(n, p); ok && rest != "" &&
			(strings.HasSuffix(p, ".") || rest[0] == ' ') {
			n = strings.TrimSpace(rest)
		}
	}
	for _, s := range m.suffixes {
		if rest, ok := strings.CutSuffix(n, s); ok && rest != "" &&
			strings.ContainsAny(rest[len(rest)-1:], " ,") {
			n = strings.TrimRight(rest, " ,")
		}
	}

	n = nonWord.ReplaceAllString(n, " ")
	n = whitespace.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// NormalizeDocument uppercases a document number and drops whitespace,
// hyphens and dots.
func NormalizeDocument(doc string) string {
	return docStrip.Replace(strings.ToUpper(strings.TrimSpace(doc)))
}

// Similarity scores two normalized names in [0,1]. It is symmetric, returns
// 1 for identical non-empty input and 0 when either side is empty.
func (m *NameMatcher) Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	score := m.cfg.SequenceWeight*sequenceRatio(a, b) + m.cfg.TokenWeight*tokenJaccard(a, b)
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}

// Classify maps a similarity score onto a match class
func (m *NameMatcher) Classify(score float64) Class {
	switch {
	case score >= m.cfg.ExactThreshold:
		return Exact
	case score >= m.cfg.PotentialThreshold:
		return Potential
	case score >= m.cfg.FuzzyThreshold:
		return Fuzzy
	default:
		return NoMatch
	}
}

// CompareNames normalizes both names and returns their score and class
func (m *NameMatcher) CompareNames(a, b string) (float64, Class) {
	score := m.Similarity(m.NormalizeName(a), m.NormalizeName(b))
	return score, m.Classify(score)
}

// SameDocument reports whether two document numbers are equal after normalization
func SameDocument(a, b string) bool {
	na, nb := NormalizeDocument(a), NormalizeDocument(b)
	return na != "" && na == nb
}

// SameDay reports whether two dates fall on the same calendar day in UTC
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// sequenceRatio is the normalized Levenshtein similarity over runes
func sequenceRatio(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}

// tokenJaccard is the word-set overlap of two names
func tokenJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

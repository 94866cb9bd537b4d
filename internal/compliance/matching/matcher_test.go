package matching

import (
	"testing"
	"time"

	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMatcher() *NameMatcher {
	return NewNameMatcher(config.DefaultEngine().Matching)
}

func TestNormalizeName(t *testing.T) {
	m := newMatcher()

	cases := map[string]string{
		"  john   smith ":     "JOHN SMITH",
		"Dr. John Smith":      "JOHN SMITH",
		"Prof. John Smith":    "JOHN SMITH",
		"Mrs. Jane O'Neil":    "JANE O NEIL",
		"John Smith Jr.":      "JOHN SMITH",
		"Henry Ford III":      "HENRY FORD",
		"SMITH, John":         "SMITH JOHN",
		"Müller-Lüdenscheidt": "MÜLLER LÜDENSCHEIDT",
		"Ivan Petrov":         "IVAN PETROV",
		"":                    "",
	}
	for in, want := range cases {
		assert.Equal(t, want, m.NormalizeName(in), "input %q", in)
	}
}

func TestNormalizeNameKeepsSuffixInsideWord(t *testing.T) {
	m := newMatcher()
	assert.Equal(t, "YAROSLAV", m.NormalizeName("Yaroslav"))
	assert.Equal(t, "VIKTOR KOVIV", m.NormalizeName("Viktor Koviv"))
}

func TestNormalizeDocument(t *testing.T) {
	assert.Equal(t, "AB123456", NormalizeDocument(" ab-123.456 "))
	assert.Equal(t, "X1", NormalizeDocument("x 1"))
	assert.True(t, SameDocument("ab-123 456", "AB123.456"))
	assert.False(t, SameDocument("", ""))
}

func TestSimilarityProperties(t *testing.T) {
	m := newMatcher()
	names := []string{"JOHN SMITH", "SMITH JOHN", "JON SMYTH", "OSAMA BIN LADEN", "A", "VLADIMIR PUTIN"}

	for _, a := range names {
		assert.Equal(t, 1.0, m.Similarity(a, a), "reflexive %q", a)
		assert.Equal(t, 0.0, m.Similarity(a, ""))
		assert.Equal(t, 0.0, m.Similarity("", a))
		for _, b := range names {
			s := m.Similarity(a, b)
			assert.Equal(t, s, m.Similarity(b, a), "symmetric %q %q", a, b)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
	}
}

func TestSimilarityTokenOrder(t *testing.T) {
	m := newMatcher()
	swapped := m.Similarity("JOHN SMITH", "SMITH JOHN")
	unrelated := m.Similarity("JOHN SMITH", "MARIA GARCIA")
	assert.Greater(t, swapped, unrelated)
	assert.GreaterOrEqual(t, swapped, 0.3)
}

func TestClassify(t *testing.T) {
	m := newMatcher()
	assert.Equal(t, Exact, m.Classify(1))
	assert.Equal(t, Exact, m.Classify(0.85))
	assert.Equal(t, Potential, m.Classify(0.84))
	assert.Equal(t, Potential, m.Classify(0.70))
	assert.Equal(t, Fuzzy, m.Classify(0.69))
	assert.Equal(t, Fuzzy, m.Classify(0.60))
	assert.Equal(t, NoMatch, m.Classify(0.59))
	assert.Equal(t, "POTENTIAL", Potential.String())
}

func TestCompareNamesAlias(t *testing.T) {
	m := newMatcher()

	score, class := m.CompareNames("John Smith", "John Smith")
	require.Equal(t, Exact, class)
	assert.Equal(t, 1.0, score)

	score, class = m.CompareNames("Jon Smith", "JOHN SMITH")
	assert.GreaterOrEqual(t, score, 0.70)
	assert.Contains(t, []Class{Potential, Exact}, class)
}

func TestSameDay(t *testing.T) {
	a := time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)
	b := time.Date(1970, 1, 2, 23, 59, 0, 0, time.UTC)
	assert.True(t, SameDay(a, b))
	assert.False(t, SameDay(a, b.Add(time.Minute)))
}

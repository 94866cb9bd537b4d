package screening

import (
	"context"
	"math"
	"time"

	"github.com/Aidin1998/kycengine/internal/compliance/matching"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Target is the subject of one screening run
type Target struct {
	CheckType    models.CheckType
	CustomerID   *uuid.UUID
	OwnerID      *uuid.UUID
	Names        []string
	Documents    []string
	DatesOfBirth []time.Time
	InitiatedBy  string
}

// SearchName is the name recorded on the check
func (t Target) SearchName() string {
	if len(t.Names) == 0 {
		return ""
	}
	return t.Names[0]
}

// Reduce derives the aggregate status of a check from its hits: any exact
// kind of hit is a MATCH, any other hit a POTENTIAL_MATCH.
func Reduce(matches []models.SanctionsMatch) models.MatchStatus {
	if len(matches) == 0 {
		return models.NoMatch
	}
	for _, m := range matches {
		if m.MatchType.IsExact() {
			return models.Match
		}
	}
	return models.PotentialMatch
}

// MatchEntry compares a target with a single sanctions entry
func MatchEntry(m *matching.NameMatcher, t Target, entry *models.SanctionsEntry) []models.SanctionsMatch {
	var out []models.SanctionsMatch

	hit := func(mt models.MatchType, score float64, field, value string) {
		out = append(out, models.SanctionsMatch{
			EntryID:      entry.ID,
			MatchType:    mt,
			MatchScore:   int(math.Round(score * 100)),
			MatchedField: field,
			MatchedValue: value,
			ReviewStatus: models.ReviewPending,
		})
	}

	for _, name := range t.Names {
		normalized := m.NormalizeName(name)
		if normalized == "" {
			continue
		}
		if entry.PrimaryName != "" {
			score := m.Similarity(normalized, m.NormalizeName(entry.PrimaryName))
			if mt, ok := nameMatchType(m.Classify(score)); ok {
				hit(mt, score, "primary_name", entry.PrimaryName)
			}
		}
		for _, alias := range entry.Aliases {
			score := m.Similarity(normalized, m.NormalizeName(alias))
			if mt, ok := nameMatchType(m.Classify(score)); ok {
				hit(mt, score, "alias", alias)
			}
		}
	}

	for _, doc := range t.Documents {
		if matching.SameDocument(doc, entry.PassportNumber) {
			hit(models.MatchDocument, 1, "passport_number", entry.PassportNumber)
		}
		if matching.SameDocument(doc, entry.NationalID) {
			hit(models.MatchDocument, 1, "national_id", entry.NationalID)
		}
	}

	if entry.DateOfBirth != nil {
		for _, dob := range t.DatesOfBirth {
			if matching.SameDay(dob, *entry.DateOfBirth) {
				hit(models.MatchDateOfBirth, 1, "date_of_birth", entry.DateOfBirth.Format(time.DateOnly))
			}
		}
	}

	return out
}

func nameMatchType(c matching.Class) (models.MatchType, bool) {
	switch c {
	case matching.Exact:
		return models.MatchExactName, true
	case matching.Potential:
		return models.MatchPartialName, true
	case matching.Fuzzy:
		return models.MatchFuzzyName, true
	}
	return "", false
}

// scan matches the target against every entry. Large entry sets are split
// into chunks scanned concurrently; hits keep the entry order.
func scan(ctx context.Context, m *matching.NameMatcher, t Target, entries []models.SanctionsEntry, chunkSize, workers int) ([]models.SanctionsMatch, error) {
	if chunkSize <= 0 || len(entries) <= chunkSize {
		var out []models.SanctionsMatch
		for i := range entries {
			out = append(out, MatchEntry(m, t, &entries[i])...)
		}
		return out, nil
	}

	chunks := (len(entries) + chunkSize - 1) / chunkSize
	results := make([][]models.SanctionsMatch, chunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for c := 0; c < chunks; c++ {
		lo := c * chunkSize
		hi := min(lo+chunkSize, len(entries))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var out []models.SanctionsMatch
			for i := lo; i < hi; i++ {
				out = append(out, MatchEntry(m, t, &entries[i])...)
			}
			results[c] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []models.SanctionsMatch
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

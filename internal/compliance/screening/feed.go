package screening

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ListFeed is a pre-loaded sanctions list delivered as a whole
type ListFeed struct {
	Name                string          `yaml:"name" json:"name" validate:"required,max=100"`
	ListType            models.ListType `yaml:"list_type" json:"list_type" validate:"omitempty,oneof=OFAC UN EU UK NATIONAL OTHER"`
	SourceURL           string          `yaml:"source_url" json:"source_url" validate:"omitempty,url"`
	UpdateFrequencyDays int             `yaml:"update_frequency_days" json:"update_frequency_days" validate:"gte=0"`
	Entries             []FeedEntry     `yaml:"entries" json:"entries" validate:"dive"`
}

// FeedEntry is one sanctioned party in a feed
type FeedEntry struct {
	ExternalID     string           `yaml:"external_id" json:"external_id"`
	EntryType      models.EntryType `yaml:"entry_type" json:"entry_type" validate:"omitempty,oneof=INDIVIDUAL ENTITY VESSEL AIRCRAFT OTHER"`
	PrimaryName    string           `yaml:"primary_name" json:"primary_name" validate:"required"`
	Aliases        []string         `yaml:"aliases" json:"aliases"`
	PassportNumber string           `yaml:"passport_number" json:"passport_number"`
	NationalID     string           `yaml:"national_id" json:"national_id"`
	DateOfBirth    string           `yaml:"date_of_birth" json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Nationality    string           `yaml:"nationality" json:"nationality" validate:"omitempty,len=2"`
	Program        string           `yaml:"program" json:"program"`
}

var feedValidator = validator.New()

// Validate checks the feed's struct tags
func (f *ListFeed) Validate() error {
	err := feedValidator.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Invalid.Explain("invalid sanctions feed").Wrap(err)
	}
	out := errors.Invalid.Explain("sanctions feed %q is invalid", f.Name)
	for _, fe := range verrs {
		out = out.WithField(fe.Tag(), fe.Namespace(), fe.Error())
	}
	return out
}

// LoadFeed reads a YAML feed file
func LoadFeed(path string) (*ListFeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NotFound.Explain("failed to read sanctions feed %s", path).Wrap(err)
	}

	var feed ListFeed
	if err := yaml.Unmarshal(data, &feed); err != nil {
		return nil, errors.Invalid.Explain("failed to parse sanctions feed %s", path).Wrap(err)
	}
	if err := feed.Validate(); err != nil {
		return nil, err
	}
	return &feed, nil
}

// RefreshList replaces the entries of a list with the feed's entries.
// Existing entries are deactivated and those present in the feed are
// upserted by external id, all in one transaction.
func (e *Engine) RefreshList(ctx context.Context, feed *ListFeed) (*models.SanctionsList, error) {
	if err := feed.Validate(); err != nil {
		return nil, err
	}
	_, matcher := e.snapshot()

	var list *models.SanctionsList
	err := e.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		list, err = e.repo.GetListByName(ctx, feed.Name)
		switch {
		case errors.Is(err, errors.NotFound):
			list = &models.SanctionsList{Name: feed.Name, ListType: models.ListOther, UpdateFrequencyDays: 1}
		case err != nil:
			return err
		}

		now := e.clock.Now()
		list.IsActive = true
		list.LastUpdated = &now
		if feed.ListType != "" {
			list.ListType = feed.ListType
		}
		if feed.SourceURL != "" {
			list.SourceURL = feed.SourceURL
		}
		if feed.UpdateFrequencyDays > 0 {
			list.UpdateFrequencyDays = feed.UpdateFrequencyDays
		}
		if err := e.repo.SaveList(ctx, list); err != nil {
			return err
		}

		deactivated, err := e.repo.DeactivateEntries(ctx, list.ID)
		if err != nil {
			return err
		}

		for _, fe := range feed.Entries {
			entry, err := fe.toModel(list.ID, matcher.NormalizeName)
			if err != nil {
				return err
			}
			entry.UpdatedAt = now
			if err := e.repo.UpsertEntry(ctx, entry); err != nil {
				return err
			}
		}

		e.logger.Infow("Sanctions list refreshed",
			"list", list.Name,
			"entries", len(feed.Entries),
			"deactivated", deactivated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (fe FeedEntry) toModel(listID uuid.UUID, normalize func(string) string) (*models.SanctionsEntry, error) {
	entry := &models.SanctionsEntry{
		ListID:         listID,
		ExternalID:     fe.ExternalID,
		EntryType:      fe.EntryType,
		PrimaryName:    fe.PrimaryName,
		PassportNumber: fe.PassportNumber,
		NationalID:     fe.NationalID,
		Nationality:    strings.ToUpper(fe.Nationality),
		Program:        fe.Program,
		IsActive:       true,
	}
	for _, a := range fe.Aliases {
		if a = strings.TrimSpace(a); a != "" {
			entry.Aliases = append(entry.Aliases, a)
		}
	}
	if entry.ExternalID == "" {
		entry.ExternalID = normalize(fe.PrimaryName)
	}
	if entry.EntryType == "" {
		entry.EntryType = models.EntryIndividual
	}
	if fe.DateOfBirth != "" {
		dob, err := time.Parse(time.DateOnly, fe.DateOfBirth)
		if err != nil {
			return nil, errors.Invalid.Explain("invalid date of birth %q for %s", fe.DateOfBirth, fe.PrimaryName)
		}
		entry.DateOfBirth = &dob
	}
	return entry, nil
}

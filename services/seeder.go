package services

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/krshsl/medspa/backend/models"
	"github.com/krshsl/medspa/backend/repository"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed seed_content.yaml
var defaultSeedContent []byte

// SeedContent is the catalog and page content loaded on first start.
type SeedContent struct {
	Treatments []struct {
		Slug            string `yaml:"slug"`
		Name            string `yaml:"name"`
		Category        string `yaml:"category"`
		Summary         string `yaml:"summary"`
		PriceFrom       string `yaml:"price_from"`
		DurationMinutes int    `yaml:"duration_minutes"`
	} `yaml:"treatments"`
	Providers []struct {
		Slug        string   `yaml:"slug"`
		Name        string   `yaml:"name"`
		Title       string   `yaml:"title"`
		Bio         string   `yaml:"bio"`
		Specialties []string `yaml:"specialties"`
		SortOrder   int      `yaml:"sort_order"`
	} `yaml:"providers"`
	Locations []struct {
		Slug     string `yaml:"slug"`
		City     string `yaml:"city"`
		State    string `yaml:"state"`
		Headline string `yaml:"headline"`
		Intro    string `yaml:"intro"`
	} `yaml:"locations"`
	Pages map[string][]struct {
		Type    string                 `yaml:"type"`
		Title   string                 `yaml:"title"`
		Content map[string]interface{} `yaml:"content"`
	} `yaml:"pages"`
}

// ParseSeedContent decodes a seed document.
func ParseSeedContent(data []byte) (*SeedContent, error) {
	var content SeedContent
	if err := yaml.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("failed to parse seed content: %w", err)
	}
	return &content, nil
}

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	repo    *repository.GORMRepository
	cms     *CMSService
	content []byte
}

// NewDatabaseSeeder creates a seeder for the embedded content.
func NewDatabaseSeeder(repo *repository.GORMRepository) *DatabaseSeeder {
	return &DatabaseSeeder{
		repo:    repo,
		cms:     NewCMSService(repo, NewContentSanitizer()),
		content: defaultSeedContent,
	}
}

// WithContent replaces the embedded seed document.
func (s *DatabaseSeeder) WithContent(data []byte) *DatabaseSeeder {
	s.content = data
	return s
}

// SeedDatabase seeds the database with initial data (idempotent). Rows are
// matched by slug, and pages that already have sections are left alone.
func (s *DatabaseSeeder) SeedDatabase(ctx context.Context) error {
	content, err := ParseSeedContent(s.content)
	if err != nil {
		return err
	}

	for _, t := range content.Treatments {
		existing, err := s.repo.GetTreatment(ctx, t.Slug)
		if err != nil {
			return fmt.Errorf("error checking treatment %s: %w", t.Slug, err)
		}
		if existing != nil {
			continue
		}
		price, err := decimal.NewFromString(t.PriceFrom)
		if err != nil {
			return fmt.Errorf("invalid price for treatment %s: %w", t.Slug, err)
		}
		treatment := &models.Treatment{
			Slug:            t.Slug,
			Name:            t.Name,
			Category:        t.Category,
			Summary:         t.Summary,
			PriceFrom:       price,
			DurationMinutes: t.DurationMinutes,
			IsActive:        true,
		}
		if err := s.repo.CreateTreatment(ctx, treatment); err != nil {
			return fmt.Errorf("failed to create treatment %s: %w", t.Slug, err)
		}
		slog.Info("Created treatment", "slug", t.Slug)
	}

	for _, p := range content.Providers {
		existing, err := s.repo.GetProvider(ctx, p.Slug)
		if err != nil {
			return fmt.Errorf("error checking provider %s: %w", p.Slug, err)
		}
		if existing != nil {
			continue
		}
		provider := &models.Provider{
			Slug:        p.Slug,
			Name:        p.Name,
			Title:       p.Title,
			Bio:         s.cms.sanitizer.SanitizeHTML(p.Bio),
			Specialties: strings.Join(p.Specialties, ","),
			SortOrder:   p.SortOrder,
			IsActive:    true,
		}
		if err := s.repo.CreateProvider(ctx, provider); err != nil {
			return fmt.Errorf("failed to create provider %s: %w", p.Slug, err)
		}
	}

	for _, l := range content.Locations {
		existing, err := s.repo.GetLocationBySlug(ctx, l.Slug)
		if err != nil {
			return fmt.Errorf("error checking location %s: %w", l.Slug, err)
		}
		if existing != nil {
			continue
		}
		location := &models.Location{
			Slug:     l.Slug,
			City:     l.City,
			State:    l.State,
			Headline: l.Headline,
			Intro:    l.Intro,
			IsActive: true,
		}
		if err := s.repo.CreateLocation(ctx, location); err != nil {
			return fmt.Errorf("failed to create location %s: %w", l.Slug, err)
		}
		slog.Info("Created location", "slug", l.Slug)
	}

	for page, sections := range content.Pages {
		existing, err := s.repo.ListCMSSections(ctx, page, false)
		if err != nil {
			return fmt.Errorf("error checking page %s: %w", page, err)
		}
		if len(existing) > 0 {
			slog.Info("Page already has sections, skipping", "page", page)
			continue
		}
		for i, sec := range sections {
			raw, err := json.Marshal(sec.Content)
			if err != nil {
				return fmt.Errorf("failed to encode %s section %d: %w", page, i, err)
			}
			position := i
			if _, err := s.cms.Create(ctx, CMSSectionInput{
				Page:        page,
				SectionType: sec.Type,
				Title:       sec.Title,
				Position:    &position,
				Content:     raw,
				IsPublished: true,
			}); err != nil {
				return fmt.Errorf("failed to create %s section %d: %w", page, i, err)
			}
		}
		slog.Info("Seeded page", "page", page, "sections", len(sections))
	}

	slog.Info("Database seeding completed successfully")
	return nil
}

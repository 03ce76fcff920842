package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/krshsl/medspa/backend/models"
	"github.com/krshsl/medspa/backend/repository"
	"github.com/microcosm-cc/bluemonday"
)

// sectionSchema lists the content keys a section type must carry and which
// keys may hold HTML. Item keys apply to objects inside the "items" array.
type sectionSchema struct {
	Required []string
	HTML     []string
	ItemHTML []string
}

var sectionRegistry = map[string]sectionSchema{
	"hero":           {Required: []string{"heading"}},
	"rich_text":      {Required: []string{"html"}, HTML: []string{"html"}},
	"gallery":        {Required: []string{"items"}},
	"testimonials":   {Required: []string{"items"}, ItemHTML: []string{"quote"}},
	"faq":            {Required: []string{"items"}, ItemHTML: []string{"answer"}},
	"cta":            {Required: []string{"heading", "button_label", "button_href"}},
	"video":          {Required: []string{"video_id"}},
	"provider_grid":  {},
	"treatment_grid": {},
}

// SectionTypes returns the registered section types in name order.
func SectionTypes() []string {
	types := make([]string, 0, len(sectionRegistry))
	for t := range sectionRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ContentSanitizer validates section content against the registry and
// cleans every string in it.
type ContentSanitizer struct {
	ugc    *bluemonday.Policy
	strict *bluemonday.Policy
}

func NewContentSanitizer() *ContentSanitizer {
	return &ContentSanitizer{
		ugc:    bluemonday.UGCPolicy(),
		strict: bluemonday.StrictPolicy(),
	}
}

// SanitizeHTML applies the UGC policy to a standalone HTML fragment.
func (c *ContentSanitizer) SanitizeHTML(s string) string {
	return c.ugc.Sanitize(s)
}

// PlainText strips all markup. Entities the strict policy produces are
// decoded again since plain fields are rendered as text.
func (c *ContentSanitizer) PlainText(s string) string {
	return html.UnescapeString(c.strict.Sanitize(s))
}

// Clean checks content for sectionType and returns it re-encoded with HTML
// fields passed through the UGC policy and all other strings stripped of
// markup.
func (c *ContentSanitizer) Clean(sectionType string, content json.RawMessage) (string, error) {
	schema, ok := sectionRegistry[sectionType]
	if !ok {
		return "", fmt.Errorf("%w: unknown section type %q", ErrInvalidInput, sectionType)
	}

	var doc map[string]interface{}
	if len(content) == 0 {
		content = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(content, &doc); err != nil || doc == nil {
		return "", fmt.Errorf("%w: content must be a JSON object", ErrInvalidInput)
	}

	for _, key := range schema.Required {
		if isEmptyValue(doc[key]) {
			return "", fmt.Errorf("%w: %s section requires %q", ErrInvalidInput, sectionType, key)
		}
	}
	if _, ok := doc["items"]; ok {
		if _, isList := doc["items"].([]interface{}); !isList {
			return "", fmt.Errorf("%w: items must be an array", ErrInvalidInput)
		}
	}

	cleaned := c.cleanObject(doc, schema.HTML, schema.ItemHTML)
	out, err := json.Marshal(cleaned)
	if err != nil {
		return "", fmt.Errorf("failed to encode content: %w", err)
	}
	return string(out), nil
}

func (c *ContentSanitizer) cleanObject(doc map[string]interface{}, htmlKeys, itemHTMLKeys []string) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		switch val := v.(type) {
		case string:
			if contains(htmlKeys, k) {
				out[k] = c.ugc.Sanitize(val)
			} else {
				out[k] = c.PlainText(val)
			}
		case []interface{}:
			items := make([]interface{}, 0, len(val))
			for _, item := range val {
				switch iv := item.(type) {
				case map[string]interface{}:
					items = append(items, c.cleanObject(iv, itemHTMLKeys, nil))
				case string:
					items = append(items, c.PlainText(iv))
				default:
					items = append(items, iv)
				}
			}
			out[k] = items
		case map[string]interface{}:
			out[k] = c.cleanObject(val, nil, nil)
		default:
			out[k] = val
		}
	}
	return out
}

func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []interface{}:
		return len(val) == 0
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// CMSSectionInput creates or replaces a section.
type CMSSectionInput struct {
	Page        string          `json:"page" validate:"required,max=100,slug"`
	SectionType string          `json:"section_type" validate:"required"`
	Title       string          `json:"title" validate:"max=255"`
	Position    *int            `json:"position" validate:"omitempty,min=0"`
	Content     json.RawMessage `json:"content"`
	IsPublished bool            `json:"is_published"`
}

// SectionView is a section with its content decoded for clients.
type SectionView struct {
	ID          string          `json:"id"`
	Page        string          `json:"page"`
	SectionType string          `json:"section_type"`
	Title       string          `json:"title,omitempty"`
	Position    int             `json:"position"`
	Content     json.RawMessage `json:"content"`
	IsPublished bool            `json:"is_published"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func sectionView(s models.CMSSection) SectionView {
	content := json.RawMessage(s.Content)
	if !json.Valid(content) {
		content = json.RawMessage(`{}`)
	}
	return SectionView{
		ID:          s.ID,
		Page:        s.Page,
		SectionType: s.SectionType,
		Title:       s.Title,
		Position:    s.Position,
		Content:     content,
		IsPublished: s.IsPublished,
		UpdatedAt:   s.UpdatedAt,
	}
}

type CMSService struct {
	repo      *repository.GORMRepository
	sanitizer *ContentSanitizer
}

func NewCMSService(repo *repository.GORMRepository, sanitizer *ContentSanitizer) *CMSService {
	return &CMSService{repo: repo, sanitizer: sanitizer}
}

// Page returns the sections of page ordered by position.
func (s *CMSService) Page(ctx context.Context, page string, publishedOnly bool) ([]SectionView, error) {
	sections, err := s.repo.ListCMSSections(ctx, page, publishedOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	views := make([]SectionView, 0, len(sections))
	for _, sec := range sections {
		views = append(views, sectionView(sec))
	}
	return views, nil
}

func (s *CMSService) Pages(ctx context.Context) ([]string, error) {
	return s.repo.ListCMSPages(ctx)
}

func (s *CMSService) Create(ctx context.Context, in CMSSectionInput) (*SectionView, error) {
	content, err := s.sanitizer.Clean(in.SectionType, in.Content)
	if err != nil {
		return nil, err
	}
	position := 0
	if in.Position != nil {
		position = *in.Position
	} else {
		existing, err := s.repo.ListCMSSections(ctx, in.Page, false)
		if err != nil {
			return nil, fmt.Errorf("failed to list sections: %w", err)
		}
		position = len(existing)
	}

	section := &models.CMSSection{
		Page:        in.Page,
		SectionType: in.SectionType,
		Title:       s.sanitizer.PlainText(in.Title),
		Position:    position,
		Content:     content,
		IsPublished: in.IsPublished,
	}
	if err := s.repo.CreateCMSSection(ctx, section); err != nil {
		return nil, fmt.Errorf("failed to create section: %w", err)
	}
	view := sectionView(*section)
	return &view, nil
}

func (s *CMSService) Update(ctx context.Context, id string, in CMSSectionInput) (*SectionView, error) {
	section, err := s.repo.GetCMSSection(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get section: %w", err)
	}
	if section == nil {
		return nil, fmt.Errorf("%w: section", ErrNotFound)
	}
	content, err := s.sanitizer.Clean(in.SectionType, in.Content)
	if err != nil {
		return nil, err
	}

	section.Page = in.Page
	section.SectionType = in.SectionType
	section.Title = s.sanitizer.PlainText(in.Title)
	section.Content = content
	section.IsPublished = in.IsPublished
	if in.Position != nil {
		section.Position = *in.Position
	}
	if err := s.repo.UpdateCMSSection(ctx, section); err != nil {
		return nil, fmt.Errorf("failed to update section: %w", err)
	}
	view := sectionView(*section)
	return &view, nil
}

func (s *CMSService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteCMSSection(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: section", ErrNotFound)
		}
		return fmt.Errorf("failed to delete section: %w", err)
	}
	return nil
}

// Reorder sets positions on page to the order of ids. ids must name every
// section on the page exactly once.
func (s *CMSService) Reorder(ctx context.Context, page string, ids []string) error {
	existing, err := s.repo.ListCMSSections(ctx, page, false)
	if err != nil {
		return fmt.Errorf("failed to list sections: %w", err)
	}
	if len(existing) != len(ids) {
		return fmt.Errorf("%w: order must list all %d sections of %s", ErrInvalidInput, len(existing), page)
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return fmt.Errorf("%w: duplicate section %s", ErrInvalidInput, id)
		}
		seen[id] = true
	}
	if err := s.repo.ReorderCMSSections(ctx, page, ids); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: section not on page %s", ErrInvalidInput, page)
		}
		return fmt.Errorf("failed to reorder sections: %w", err)
	}
	return nil
}

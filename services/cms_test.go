package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/medspa/backend/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentSanitizer_Clean(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name        string
		sectionType string
		content     string
		wantErr     bool
		check       func(t *testing.T, doc map[string]interface{})
	}{
		{
			name:        "unknown type",
			sectionType: "marquee",
			content:     `{"heading":"x"}`,
			wantErr:     true,
		},
		{
			name:        "missing required key",
			sectionType: "cta",
			content:     `{"heading":"Book now","button_label":"Go"}`,
			wantErr:     true,
		},
		{
			name:        "not an object",
			sectionType: "hero",
			content:     `["heading"]`,
			wantErr:     true,
		},
		{
			name:        "items must be an array",
			sectionType: "faq",
			content:     `{"items":"q and a"}`,
			wantErr:     true,
		},
		{
			name:        "plain strings lose markup",
			sectionType: "hero",
			content:     `{"heading":"<b>Glow</b> <script>alert(1)</script>","subheading":"<i>up</i>"}`,
			check: func(t *testing.T, doc map[string]interface{}) {
				assert.Equal(t, "Glow ", doc["heading"])
				assert.Equal(t, "up", doc["subheading"])
			},
		},
		{
			name:        "plain strings keep ampersands and quotes",
			sectionType: "cta",
			content:     `{"heading":"Botox & Fillers","button_label":"Book Maya's slot","button_href":"https://spa.example.com/book?a=1&b=2"}`,
			check: func(t *testing.T, doc map[string]interface{}) {
				assert.Equal(t, "Botox & Fillers", doc["heading"])
				assert.Equal(t, "Book Maya's slot", doc["button_label"])
				assert.Equal(t, "https://spa.example.com/book?a=1&b=2", doc["button_href"])
			},
		},
		{
			name:        "html fields keep safe markup",
			sectionType: "rich_text",
			content:     `{"html":"<p onclick=\"x()\">Hi <a href=\"https://spa.example.com\">there</a></p><script>bad()</script>"}`,
			check: func(t *testing.T, doc map[string]interface{}) {
				html := doc["html"].(string)
				assert.Contains(t, html, "<p>Hi")
				assert.Contains(t, html, `href="https://spa.example.com"`)
				assert.NotContains(t, html, "onclick")
				assert.NotContains(t, html, "script")
			},
		},
		{
			name:        "item html keys",
			sectionType: "faq",
			content:     `{"items":[{"question":"<em>Does it hurt?</em>","answer":"<strong>Barely.</strong><img src=x onerror=alert(1)>"}]}`,
			check: func(t *testing.T, doc map[string]interface{}) {
				item := doc["items"].([]interface{})[0].(map[string]interface{})
				assert.Equal(t, "Does it hurt?", item["question"])
				assert.Contains(t, item["answer"], "<strong>Barely.</strong>")
				assert.NotContains(t, item["answer"], "onerror")
			},
		},
		{
			name:        "grid sections need nothing",
			sectionType: "provider_grid",
			content:     ``,
			check: func(t *testing.T, doc map[string]interface{}) {
				assert.Empty(t, doc)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := sanitizer.Clean(tt.sectionType, json.RawMessage(tt.content))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			var doc map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(out), &doc))
			tt.check(t, doc)
		})
	}
}

func TestCMSService_CreateAndReorder(t *testing.T) {
	repo := testutil.SetupTestRepo(t)
	service := NewCMSService(repo, NewContentSanitizer())
	ctx := context.Background()

	hero, err := service.Create(ctx, CMSSectionInput{
		Page: "home", SectionType: "hero", Content: json.RawMessage(`{"heading":"Glow"}`), IsPublished: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, hero.Position)

	cta, err := service.Create(ctx, CMSSectionInput{
		Page: "home", SectionType: "cta",
		Content: json.RawMessage(`{"heading":"Ready?","button_label":"Book","button_href":"/book"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, cta.Position, "appended after existing sections")

	published, err := service.Page(ctx, "home", true)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, hero.ID, published[0].ID)

	assert.ErrorIs(t, service.Reorder(ctx, "home", []string{cta.ID}), ErrInvalidInput, "must list every section")
	assert.ErrorIs(t, service.Reorder(ctx, "home", []string{cta.ID, cta.ID}), ErrInvalidInput)

	require.NoError(t, service.Reorder(ctx, "home", []string{cta.ID, hero.ID}))
	all, err := service.Page(ctx, "home", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, cta.ID, all[0].ID)
	assert.Equal(t, hero.ID, all[1].ID)

	require.NoError(t, service.Delete(ctx, hero.ID))
	assert.ErrorIs(t, service.Delete(ctx, hero.ID), ErrNotFound)
}

func TestCMSEndpoints_PublicPage(t *testing.T) {
	repo := testutil.SetupTestRepo(t)
	service := NewCMSService(repo, NewContentSanitizer())
	_, err := service.Create(context.Background(), CMSSectionInput{
		Page: "faq", SectionType: "faq", IsPublished: true,
		Content: json.RawMessage(`{"items":[{"question":"How long?","answer":"About an hour."}]}`),
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	NewCMSEndpoints(service).RegisterPublicRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cms/pages/faq", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))

	var body struct {
		Page     string        `json:"page"`
		Sections []SectionView `json:"sections"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Sections, 1)
	assert.JSONEq(t, `{"items":[{"question":"How long?","answer":"About an hour."}]}`, string(body.Sections[0].Content))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cms/pages/Bad_Page", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

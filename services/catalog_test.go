package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/medspa/backend/repository"
	"github.com/krshsl/medspa/backend/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededRepo(t *testing.T) *repository.GORMRepository {
	t.Helper()
	repo := testutil.SetupTestRepo(t)
	require.NoError(t, NewDatabaseSeeder(repo).SeedDatabase(context.Background()))
	return repo
}

func TestSeedDatabase_Idempotent(t *testing.T) {
	repo := seededRepo(t)
	ctx := context.Background()
	require.NoError(t, NewDatabaseSeeder(repo).SeedDatabase(ctx))

	treatments, err := repo.ListTreatments(ctx, false)
	require.NoError(t, err)
	assert.Len(t, treatments, 6)

	providers, err := repo.ListProviders(ctx, false)
	require.NoError(t, err)
	assert.Len(t, providers, 3)

	locations, err := repo.ListLocations(ctx, false)
	require.NoError(t, err)
	assert.Len(t, locations, 3)

	home, err := repo.ListCMSSections(ctx, "home", true)
	require.NoError(t, err)
	assert.Len(t, home, 5)

	botox, err := repo.GetTreatment(ctx, "botox")
	require.NoError(t, err)
	require.NotNil(t, botox)
	assert.Equal(t, "300", botox.PriceFrom.String())
}

func TestSeedDatabase_CustomContent(t *testing.T) {
	repo := testutil.SetupTestRepo(t)
	content := []byte(`
treatments:
  - slug: peel
    name: Chemical Peel
    price_from: "150.00"
pages:
  about:
    - type: rich_text
      content:
        html: "<p>Family owned</p>"
`)
	require.NoError(t, NewDatabaseSeeder(repo).WithContent(content).SeedDatabase(context.Background()))

	peel, err := repo.GetTreatment(context.Background(), "peel")
	require.NoError(t, err)
	require.NotNil(t, peel)
	assert.True(t, peel.IsActive)

	about, err := repo.ListCMSSections(context.Background(), "about", true)
	require.NoError(t, err)
	require.Len(t, about, 1)

	bad := NewDatabaseSeeder(repo).WithContent([]byte("treatments:\n  - slug: x\n    price_from: cheap\n"))
	assert.Error(t, bad.SeedDatabase(context.Background()))
}

func TestClosestSlug(t *testing.T) {
	candidates := []string{"austin", "round-rock", "san-antonio"}
	assert.Equal(t, "austin", closestSlug("austn", candidates))
	assert.Equal(t, "round-rock", closestSlug("roundrock", candidates))
	assert.Equal(t, "", closestSlug("houston", candidates))
	assert.Equal(t, "", closestSlug("austin", nil))
}

func TestCatalogService_Landing(t *testing.T) {
	repo := seededRepo(t)
	service := NewCatalogService(repo)
	ctx := context.Background()

	page, err := service.Landing(ctx, "austin", "microneedling")
	require.NoError(t, err)
	assert.Equal(t, "/landing/austin/microneedling", page.Path)
	require.Len(t, page.Providers, 1)
	assert.Equal(t, "maya-ortiz", page.Providers[0].Slug)

	_, err = service.Landing(ctx, "austn", "botox")
	require.ErrorIs(t, err, ErrNotFound)
	nf, ok := err.(*LandingNotFound)
	require.True(t, ok)
	assert.Equal(t, "/landing/austin/botox", nf.Suggestion)

	_, err = service.Landing(ctx, "houston", "tattoo-removal")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, err.(*LandingNotFound).Suggestion)
}

func TestCatalogEndpoints(t *testing.T) {
	repo := seededRepo(t)
	r := chi.NewRouter()
	NewCatalogEndpoints(repo, NewCatalogService(repo)).RegisterRoutes(r)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/treatments")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Treatments []map[string]interface{} `json:"treatments"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list.Treatments, 6)

	assert.Equal(t, http.StatusOK, get("/providers/jordan-lee-np").Code)
	assert.Equal(t, http.StatusNotFound, get("/providers/nobody").Code)
	assert.Equal(t, http.StatusOK, get("/treatments/hydrafacial").Code)
	assert.Equal(t, http.StatusOK, get("/locations").Code)

	rec = get("/landing/san-antonoi/botox")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var nf map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&nf))
	assert.Equal(t, "/landing/san-antonio/botox", nf["suggestion"])
}

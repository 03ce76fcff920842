package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/krshsl/medspa/backend/models"
	"github.com/krshsl/medspa/backend/repository"
	"github.com/krshsl/medspa/backend/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserWithClient_LinksRows(t *testing.T) {
	repo := testutil.SetupTestRepo(t)
	ctx := context.Background()

	user := &models.User{Email: "ana@example.com", Password: "x", Role: models.RoleClient}
	client := &models.Client{FirstName: "Ana", Email: "ana@example.com", Status: models.ClientStatusActive}
	require.NoError(t, repo.CreateUserWithClient(ctx, user, client))

	got, err := repo.GetClientByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, client.ID, got.ID)
}

func TestGetUserByEmail_NotFoundReturnsNil(t *testing.T) {
	repo := testutil.SetupTestRepo(t)

	user, err := repo.GetUserByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestArchiveClient(t *testing.T) {
	repo := testutil.SetupTestRepo(t)
	ctx := context.Background()
	client := testutil.CreateClient(t, repo, "Bea")

	require.NoError(t, repo.ArchiveClient(ctx, client.ID))

	got, err := repo.GetClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClientStatusArchived, got.Status)

	archived, err := repo.ListClients(ctx, repository.ListOptions{Status: models.ClientStatusArchived})
	require.NoError(t, err)
	assert.Len(t, archived, 1)

	assert.ErrorIs(t, repo.ArchiveClient(ctx, "00000000-0000-0000-0000-000000000000"), repository.ErrNotFound)
}

func TestListSMSClients_OnlyOptedInActive(t *testing.T) {
	repo := testutil.SetupTestRepo(t)
	ctx := context.Background()

	testutil.CreateClient(t, repo, "OptedIn")
	archived := testutil.CreateClient(t, repo, "Archived")
	require.NoError(t, repo.ArchiveClient(ctx, archived.ID))
	require.NoError(t, repo.CreateClient(ctx, &models.Client{FirstName: "NoOpt", Phone: "+15555550111", Status: models.ClientStatusActive}))

	clients, err := repo.ListSMSClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "OptedIn", clients[0].FirstName)
}

func TestGetTreatment_BySlugOrID(t *testing.T) {
	repo := testutil.SetupTestRepo(t)
	ctx := context.Background()

	treatment := &models.Treatment{Slug: "botox", Name: "Botox", PriceFrom: decimal.NewFromInt(12), IsActive: true}
	require.NoError(t, repo.CreateTreatment(ctx, treatment))

	bySlug, err := repo.GetTreatment(ctx, "botox")
	require.NoError(t, err)
	require.NotNil(t, bySlug)
	assert.True(t, bySlug.PriceFrom.Equal(decimal.NewFromInt(12)))

	byID, err := repo.GetTreatment(ctx, treatment.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "Botox", byID.Name)
}

func TestSignConsentForm_OnlyOnce(t *testing.T) {
	repo := testutil.SetupTestRepo(t)
	ctx := context.Background()
	client := testutil.CreateClient(t, repo, "Cara")

	form := &models.ConsentForm{ClientID: client.ID, Title: "Filler consent", Body: "<p>I agree</p>", Status: models.ConsentPending}
	require.NoError(t, repo.CreateConsentForm(ctx, form))

	ok, err := repo.SignConsentForm(ctx, form.ID, "Cara Tester", "10.0.0.1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SignConsentForm(ctx, form.ID, "Cara Tester", "10.0.0.1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetConsentForm(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConsentSigned, got.Status)
	assert.Equal(t, "Cara Tester", got.SignatureName)
	assert.NotNil(t, got.SignedAt)
}

func TestCMSSections_OrderAndReorder(t *testing.T) {
	repo := testutil.SetupTestRepo(t)
	ctx := context.Background()

	a := &models.CMSSection{Page: "home", SectionType: "hero", Position: 0, Content: `{}`, IsPublished: true}
	b := &models.CMSSection{Page: "home", SectionType: "faq", Position: 1, Content: `{}`, IsPublished: true}
	c := &models.CMSSection{Page: "home", SectionType: "cta", Position: 2, Content: `{}`}
	for _, s := range []*models.CMSSection{a, b, c} {
		require.NoError(t, repo.CreateCMSSection(ctx, s))
	}

	published, err := repo.ListCMSSections(ctx, "home", true)
	require.NoError(t, err)
	require.Len(t, published, 2)
	assert.Equal(t, a.ID, published[0].ID)

	require.NoError(t, repo.ReorderCMSSections(ctx, "home", []string{c.ID, b.ID, a.ID}))
	all, err := repo.ListCMSSections(ctx, "home", false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	err = repo.ReorderCMSSections(ctx, "about", []string{a.ID})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCampaignLifecycle(t *testing.T) {
	repo := testutil.SetupTestRepo(t)
	ctx := context.Background()

	campaign := &models.SMSCampaign{Name: "Spring", Body: "20% off", Audience: models.AudienceCustom, Status: models.CampaignDraft}
	require.NoError(t, repo.CreateCampaign(ctx, campaign))

	started, err := repo.StartCampaign(ctx, campaign.ID, []string{"+15555550100", "+15555550101"}, time.Now())
	require.NoError(t, err)
	assert.True(t, started)

	started, err = repo.StartCampaign(ctx, campaign.ID, []string{"+15555550100"}, time.Now())
	require.NoError(t, err)
	assert.False(t, started, "a sending campaign cannot be started again")

	pending, err := repo.ListPendingMessages(ctx, campaign.ID)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	pending[0].Status = models.SMSSent
	require.NoError(t, repo.RecordMessageResult(ctx, &pending[0]))
	pending[1].Status = models.SMSFailed
	require.NoError(t, repo.RecordMessageResult(ctx, &pending[1]))

	got, err := repo.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Recipients)
	assert.Equal(t, 1, got.SentCount)
	assert.Equal(t, 1, got.FailedCount)
	assert.Equal(t, models.CampaignSending, got.Status)
}

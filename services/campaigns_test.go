package services

import (
	"context"
	"sync"
	"testing"

	"github.com/krshsl/medspa/backend/models"
	"github.com/krshsl/medspa/backend/repository"
	"github.com/krshsl/medspa/backend/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCampaigns(t *testing.T, sms *fakeSMS) (*repository.GORMRepository, *CampaignService, *CampaignSender, *fakePublisher) {
	t.Helper()
	repo := testutil.SetupTestRepo(t)
	events := &fakePublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sender := NewCampaignSender(ctx, repo, sms, events, 0)
	return repo, NewCampaignService(repo, sms, sender), sender, events
}

func TestCampaignService_CustomAudience(t *testing.T) {
	sms := &fakeSMS{failFor: map[string]bool{"+17375550100": true}}
	repo, service, sender, events := newTestCampaigns(t, sms)
	ctx := context.Background()

	campaign, err := service.Create(ctx, "admin-1", CampaignInput{
		Name:     "Spring promo",
		Body:     "20% off HydraFacials this week",
		Audience: models.AudienceCustom,
		Phones:   []string{"512-555-0142", "+15125550142", "(737) 555-0100"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.CampaignDraft, campaign.Status)
	assert.Equal(t, "+15125550142,+17375550100", campaign.CustomPhones)

	started, err := service.Send(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, started.Recipients)
	sender.Wait()

	done, err := repo.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignCompleted, done.Status)
	assert.Equal(t, 1, done.SentCount)
	assert.Equal(t, 1, done.FailedCount)
	assert.NotNil(t, done.CompletedAt)

	msgs, err := repo.ListCampaignMessages(ctx, campaign.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	byPhone := map[string]models.SMSMessage{}
	for _, m := range msgs {
		byPhone[m.To] = m
	}
	assert.Equal(t, models.SMSSent, byPhone["+15125550142"].Status)
	assert.Equal(t, "msg-+15125550142", byPhone["+15125550142"].ProviderMessageID)
	assert.Equal(t, models.SMSFailed, byPhone["+17375550100"].Status)
	assert.Contains(t, byPhone["+17375550100"].Error, "carrier rejected")

	assert.Equal(t, []string{EventCampaignCompleted}, events.types())

	_, err = service.Send(ctx, campaign.ID)
	assert.ErrorIs(t, err, ErrConflict, "campaigns send once")
	_, err = service.Update(ctx, campaign.ID, CampaignInput{Name: "x", Body: "y", Audience: models.AudienceClients})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCampaignService_ClientAudience(t *testing.T) {
	sms := &fakeSMS{}
	repo, service, sender, _ := newTestCampaigns(t, sms)
	ctx := context.Background()

	testutil.CreateClient(t, repo, "Opted")
	quiet := testutil.CreateClient(t, repo, "Quiet")
	quiet.Phone = "+15555550199"
	quiet.SMSOptIn = false
	require.NoError(t, repo.UpdateClient(ctx, quiet))

	campaign, err := service.Create(ctx, "admin-1", CampaignInput{
		Name:     "Holiday hours",
		Body:     "We are closed Dec 25",
		Audience: models.AudienceClients,
	})
	require.NoError(t, err)

	_, err = service.Send(ctx, campaign.ID)
	require.NoError(t, err)
	sender.Wait()

	assert.Equal(t, []string{"+15555550100"}, sms.sent)
}

func TestCampaignService_Validation(t *testing.T) {
	_, service, _, _ := newTestCampaigns(t, &fakeSMS{})
	ctx := context.Background()

	_, err := service.Create(ctx, "admin-1", CampaignInput{
		Name:     "Bad list",
		Body:     "hi",
		Audience: models.AudienceCustom,
		Phones:   []string{"5125550142", "call me"},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	empty, err := service.Create(ctx, "admin-1", CampaignInput{Name: "Nobody", Body: "hi", Audience: models.AudienceLeads})
	require.NoError(t, err)
	_, err = service.Send(ctx, empty.ID)
	assert.ErrorIs(t, err, ErrInvalidInput, "no reachable numbers")

	_, err = service.Send(ctx, "7b0c5c5e-6f3a-4a59-8f0c-1c2d3e4f5a6b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCampaignService_SendNeedsConfiguredSMS(t *testing.T) {
	repo := testutil.SetupTestRepo(t)
	sms := NewSMSService(SMSConfig{})
	sender := NewCampaignSender(context.Background(), repo, sms, nil, 0)
	service := NewCampaignService(repo, sms, sender)

	_, err := service.Send(context.Background(), "7b0c5c5e-6f3a-4a59-8f0c-1c2d3e4f5a6b")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCampaignSender_Resume(t *testing.T) {
	sms := &fakeSMS{}
	repo, service, sender, _ := newTestCampaigns(t, sms)
	ctx := context.Background()

	campaign, err := service.Create(ctx, "admin-1", CampaignInput{
		Name:     "Interrupted",
		Body:     "hi",
		Audience: models.AudienceCustom,
		Phones:   []string{"5125550142"},
	})
	require.NoError(t, err)

	// Simulate a restart after the snapshot but before delivery.
	started, err := repo.StartCampaign(ctx, campaign.ID, []string{"+15125550142"}, campaign.CreatedAt)
	require.NoError(t, err)
	require.True(t, started)

	require.NoError(t, sender.Resume(ctx))
	sender.Wait()

	done, err := repo.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignCompleted, done.Status)
	assert.Equal(t, []string{"+15125550142"}, sms.sent)
}

// blockingSMS holds every send until the caller's context is cancelled.
type blockingSMS struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
}

func (b *blockingSMS) SendSMS(ctx context.Context, to, body string) (string, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.started <- struct{}{}
	<-ctx.Done()
	return "", ctx.Err()
}

func TestCampaignSender_ShutdownMidSendIsNotResent(t *testing.T) {
	repo := testutil.SetupTestRepo(t)
	ctx := context.Background()
	service := NewCampaignService(repo, &fakeSMS{}, nil)

	campaign, err := service.Create(ctx, "admin-1", CampaignInput{
		Name:     "Flash sale",
		Body:     "Today only",
		Audience: models.AudienceCustom,
		Phones:   []string{"5125550142", "7375550100"},
	})
	require.NoError(t, err)
	started, err := repo.StartCampaign(ctx, campaign.ID, []string{"+15125550142", "+17375550100"}, campaign.CreatedAt)
	require.NoError(t, err)
	require.True(t, started)

	blocking := &blockingSMS{started: make(chan struct{}, 1)}
	runCtx, cancel := context.WithCancel(ctx)
	sender := NewCampaignSender(runCtx, repo, blocking, nil, 0)
	sender.Start(campaign.ID)
	<-blocking.started
	cancel()
	sender.Wait()
	assert.Equal(t, 1, blocking.calls)

	msgs, err := repo.ListCampaignMessages(ctx, campaign.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	var interrupted, untouched models.SMSMessage
	for _, m := range msgs {
		if m.Status == models.SMSFailed {
			interrupted = m
		} else {
			untouched = m
		}
	}
	assert.Contains(t, interrupted.Error, "interrupted")
	assert.Equal(t, models.SMSPending, untouched.Status)

	paused, err := repo.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignSending, paused.Status)
	assert.Equal(t, 1, paused.FailedCount)

	sms := &fakeSMS{}
	restarted := NewCampaignSender(ctx, repo, sms, nil, 0)
	require.NoError(t, restarted.Resume(ctx))
	restarted.Wait()

	assert.Equal(t, []string{untouched.To}, sms.sent, "the interrupted number is not texted again")
	done, err := repo.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignCompleted, done.Status)
	assert.Equal(t, 1, done.SentCount)
	assert.Equal(t, 1, done.FailedCount)
}

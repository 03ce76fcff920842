package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/krshsl/medspa/backend/models"
	"github.com/krshsl/medspa/backend/repository"
)

type CampaignInput struct {
	Name     string   `json:"name" validate:"required,max=255"`
	Body     string   `json:"body" validate:"required,max=1600"`
	Audience string   `json:"audience" validate:"required,oneof=clients leads custom"`
	Phones   []string `json:"phones" validate:"required_if=Audience custom,max=5000"`
}

type CampaignService struct {
	repo   *repository.GORMRepository
	sender *CampaignSender
	sms    SMSSender
}

func NewCampaignService(repo *repository.GORMRepository, sms SMSSender, sender *CampaignSender) *CampaignService {
	return &CampaignService{repo: repo, sms: sms, sender: sender}
}

// Create stores a draft campaign. Custom phone lists are normalised to
// E.164; any invalid entry rejects the whole request.
func (s *CampaignService) Create(ctx context.Context, createdBy string, in CampaignInput) (*models.SMSCampaign, error) {
	campaign := &models.SMSCampaign{
		Name:      in.Name,
		Body:      in.Body,
		Audience:  in.Audience,
		Status:    models.CampaignDraft,
		CreatedBy: createdBy,
	}
	if err := s.applyPhones(campaign, in); err != nil {
		return nil, err
	}
	if err := s.repo.CreateCampaign(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}
	return campaign, nil
}

// Update edits a campaign that has not been sent yet.
func (s *CampaignService) Update(ctx context.Context, id string, in CampaignInput) (*models.SMSCampaign, error) {
	campaign, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignDraft {
		return nil, fmt.Errorf("%w: campaign is %s", ErrConflict, campaign.Status)
	}
	campaign.Name = in.Name
	campaign.Body = in.Body
	campaign.Audience = in.Audience
	if err := s.applyPhones(campaign, in); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCampaign(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to update campaign: %w", err)
	}
	return campaign, nil
}

func (s *CampaignService) applyPhones(campaign *models.SMSCampaign, in CampaignInput) error {
	campaign.CustomPhones = ""
	if in.Audience != models.AudienceCustom {
		return nil
	}
	phones, rejected := NormalizePhones(in.Phones)
	if len(rejected) > 0 {
		return fmt.Errorf("%w: invalid phone numbers: %s", ErrInvalidInput, strings.Join(rejected, ", "))
	}
	if len(phones) == 0 {
		return fmt.Errorf("%w: custom audience needs at least one phone", ErrInvalidInput)
	}
	campaign.CustomPhones = strings.Join(phones, ",")
	return nil
}

func (s *CampaignService) get(ctx context.Context, id string) (*models.SMSCampaign, error) {
	campaign, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	if campaign == nil {
		return nil, fmt.Errorf("%w: campaign", ErrNotFound)
	}
	return campaign, nil
}

// Send snapshots the audience and starts delivery in the background.
func (s *CampaignService) Send(ctx context.Context, id string) (*models.SMSCampaign, error) {
	if c, ok := s.sms.(interface{ Configured() bool }); ok && !c.Configured() {
		return nil, fmt.Errorf("%w: sms provider", ErrNotConfigured)
	}
	campaign, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignDraft {
		return nil, fmt.Errorf("%w: campaign is %s", ErrConflict, campaign.Status)
	}

	phones, err := s.audience(ctx, campaign)
	if err != nil {
		return nil, err
	}
	if len(phones) == 0 {
		return nil, fmt.Errorf("%w: audience has no reachable phone numbers", ErrInvalidInput)
	}

	started, err := s.repo.StartCampaign(ctx, campaign.ID, phones, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to start campaign: %w", err)
	}
	if !started {
		return nil, fmt.Errorf("%w: campaign already started", ErrConflict)
	}
	s.sender.Start(campaign.ID)

	return s.get(ctx, id)
}

func (s *CampaignService) audience(ctx context.Context, campaign *models.SMSCampaign) ([]string, error) {
	var raw []string
	switch campaign.Audience {
	case models.AudienceClients:
		clients, err := s.repo.ListSMSClients(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list clients: %w", err)
		}
		for _, c := range clients {
			raw = append(raw, c.Phone)
		}
	case models.AudienceLeads:
		leads, err := s.repo.ListSMSLeads(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list leads: %w", err)
		}
		for _, l := range leads {
			raw = append(raw, l.Phone)
		}
	case models.AudienceCustom:
		if campaign.CustomPhones != "" {
			raw = strings.Split(campaign.CustomPhones, ",")
		}
	}
	phones, rejected := NormalizePhones(raw)
	if len(rejected) > 0 {
		slog.Warn("Skipping invalid audience numbers", "campaign_id", campaign.ID, "count", len(rejected))
	}
	return phones, nil
}

// CampaignSender delivers pending campaign messages one at a time with a
// fixed pause between sends. At most one goroutine runs per campaign.
type CampaignSender struct {
	repo    *repository.GORMRepository
	sms     SMSSender
	events  EventPublisher
	delay   time.Duration
	ctx     context.Context
	running map[string]bool
	mu      sync.Mutex
	wg      sync.WaitGroup
}

// NewCampaignSender ties sender goroutines to ctx. Cancelling it stops
// delivery and leaves unsent messages pending for Resume.
func NewCampaignSender(ctx context.Context, repo *repository.GORMRepository, sms SMSSender, events EventPublisher, delay time.Duration) *CampaignSender {
	return &CampaignSender{
		repo:    repo,
		sms:     sms,
		events:  events,
		delay:   delay,
		ctx:     ctx,
		running: make(map[string]bool),
	}
}

// Start launches delivery for campaignID unless it is already running.
func (c *CampaignSender) Start(campaignID string) bool {
	c.mu.Lock()
	if c.running[campaignID] {
		c.mu.Unlock()
		return false
	}
	c.running[campaignID] = true
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.running, campaignID)
			c.mu.Unlock()
			c.wg.Done()
		}()
		c.run(campaignID)
	}()
	return true
}

// Resume restarts campaigns interrupted mid-send.
func (c *CampaignSender) Resume(ctx context.Context) error {
	campaigns, err := c.repo.ListCampaignsByStatus(ctx, models.CampaignSending)
	if err != nil {
		return fmt.Errorf("failed to list sending campaigns: %w", err)
	}
	for _, campaign := range campaigns {
		slog.Info("Resuming campaign", "campaign_id", campaign.ID)
		c.Start(campaign.ID)
	}
	return nil
}

// Wait blocks until every running campaign goroutine has returned.
func (c *CampaignSender) Wait() {
	c.wg.Wait()
}

func (c *CampaignSender) run(campaignID string) {
	ctx := c.ctx
	campaign, err := c.repo.GetCampaign(ctx, campaignID)
	if err != nil || campaign == nil {
		slog.Error("Campaign vanished before sending", "error", err, "campaign_id", campaignID)
		return
	}
	pending, err := c.repo.ListPendingMessages(ctx, campaignID)
	if err != nil {
		c.finish(campaignID, models.CampaignFailed)
		return
	}

	for i := range pending {
		if i > 0 && c.delay > 0 {
			select {
			case <-ctx.Done():
				slog.Info("Campaign paused by shutdown", "campaign_id", campaignID)
				return
			case <-time.After(c.delay):
			}
		}
		if ctx.Err() != nil {
			return
		}

		msg := &pending[i]
		id, err := c.sms.SendSMS(ctx, msg.To, campaign.Body)
		now := time.Now().UTC()
		interrupted := err != nil && ctx.Err() != nil
		switch {
		case interrupted:
			// The carrier may have accepted it. Never resend.
			msg.Status = models.SMSFailed
			msg.Error = "interrupted by shutdown, delivery unknown"
		case err != nil:
			msg.Status = models.SMSFailed
			msg.Error = truncate(err.Error(), 500)
		default:
			msg.Status = models.SMSSent
			msg.ProviderMessageID = id
			msg.SentAt = &now
		}
		if err := c.repo.RecordMessageResult(context.WithoutCancel(ctx), msg); err != nil {
			slog.Error("Failed to record campaign message", "error", err, "campaign_id", campaignID)
		}
		if interrupted {
			slog.Info("Campaign paused by shutdown", "campaign_id", campaignID)
			return
		}
	}

	c.finish(campaignID, models.CampaignCompleted)
}

func (c *CampaignSender) finish(campaignID, status string) {
	ctx := context.WithoutCancel(c.ctx)
	if err := c.repo.CompleteCampaign(ctx, campaignID, status, time.Now().UTC()); err != nil {
		return
	}
	campaign, err := c.repo.GetCampaign(ctx, campaignID)
	if err != nil || campaign == nil {
		return
	}
	slog.Info("Campaign finished", "campaign_id", campaignID, "status", status, "sent", campaign.SentCount, "failed", campaign.FailedCount)
	publish(c.events, EventCampaignCompleted, map[string]interface{}{
		"campaign_id": campaign.ID,
		"name":        campaign.Name,
		"status":      campaign.Status,
		"sent":        campaign.SentCount,
		"failed":      campaign.FailedCount,
	})
}

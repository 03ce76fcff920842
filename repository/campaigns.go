package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/krshsl/medspa/backend/models"
	"gorm.io/gorm"
)

func (r *GORMRepository) CreateCampaign(ctx context.Context, c *models.SMSCampaign) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		slog.Error("Failed to create campaign", "error", err)
		return err
	}
	slog.Info("Campaign created", "campaign_id", c.ID, "audience", c.Audience)
	return nil
}

func (r *GORMRepository) GetCampaign(ctx context.Context, id string) (*models.SMSCampaign, error) {
	var c models.SMSCampaign
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get campaign", "error", err, "campaign_id", id)
		return nil, err
	}
	return &c, nil
}

func (r *GORMRepository) ListCampaigns(ctx context.Context, opts ListOptions) ([]models.SMSCampaign, error) {
	var campaigns []models.SMSCampaign
	if err := opts.apply(r.db.WithContext(ctx).Model(&models.SMSCampaign{})).Order("created_at DESC").Find(&campaigns).Error; err != nil {
		slog.Error("Failed to list campaigns", "error", err)
		return nil, err
	}
	return campaigns, nil
}

func (r *GORMRepository) ListCampaignsByStatus(ctx context.Context, status string) ([]models.SMSCampaign, error) {
	var campaigns []models.SMSCampaign
	if err := r.db.WithContext(ctx).Where("status = ?", status).Find(&campaigns).Error; err != nil {
		slog.Error("Failed to list campaigns by status", "error", err, "status", status)
		return nil, err
	}
	return campaigns, nil
}

func (r *GORMRepository) UpdateCampaign(ctx context.Context, c *models.SMSCampaign) error {
	if err := r.db.WithContext(ctx).Omit("Messages").Save(c).Error; err != nil {
		slog.Error("Failed to update campaign", "error", err, "campaign_id", c.ID)
		return err
	}
	return nil
}

// StartCampaign snapshots recipients and flips a draft campaign to sending in
// one transaction. It reports false when the campaign was not a draft.
func (r *GORMRepository) StartCampaign(ctx context.Context, id string, phones []string, at time.Time) (bool, error) {
	started := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.SMSCampaign{}).
			Where("id = ? AND status = ?", id, models.CampaignDraft).
			Updates(map[string]interface{}{
				"status":     models.CampaignSending,
				"recipients": len(phones),
				"started_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		started = true
		if len(phones) == 0 {
			return nil
		}
		msgs := make([]models.SMSMessage, 0, len(phones))
		for _, p := range phones {
			msgs = append(msgs, models.SMSMessage{CampaignID: id, To: p, Status: models.SMSPending})
		}
		return tx.CreateInBatches(msgs, 100).Error
	})
	if err != nil {
		slog.Error("Failed to start campaign", "error", err, "campaign_id", id)
		return false, err
	}
	return started, nil
}

func (r *GORMRepository) ListPendingMessages(ctx context.Context, campaignID string) ([]models.SMSMessage, error) {
	var msgs []models.SMSMessage
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND status = ?", campaignID, models.SMSPending).
		Order("created_at").Find(&msgs).Error
	if err != nil {
		slog.Error("Failed to list pending messages", "error", err, "campaign_id", campaignID)
		return nil, err
	}
	return msgs, nil
}

func (r *GORMRepository) ListCampaignMessages(ctx context.Context, campaignID string) ([]models.SMSMessage, error) {
	var msgs []models.SMSMessage
	if err := r.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("created_at").Find(&msgs).Error; err != nil {
		slog.Error("Failed to list campaign messages", "error", err, "campaign_id", campaignID)
		return nil, err
	}
	return msgs, nil
}

// RecordMessageResult stores one send outcome and bumps the campaign counter.
func (r *GORMRepository) RecordMessageResult(ctx context.Context, msg *models.SMSMessage) error {
	column := "sent_count"
	if msg.Status == models.SMSFailed {
		column = "failed_count"
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.SMSCampaign{}).Where("id = ?", msg.CampaignID).
			UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error
	})
	if err != nil {
		slog.Error("Failed to record message result", "error", err, "message_id", msg.ID)
	}
	return err
}

func (r *GORMRepository) CompleteCampaign(ctx context.Context, id, status string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.SMSCampaign{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "completed_at": at}).Error
	if err != nil {
		slog.Error("Failed to complete campaign", "error", err, "campaign_id", id)
	}
	return err
}

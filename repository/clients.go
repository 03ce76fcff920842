package repository

import (
	"context"
	"log/slog"
	"strings"

	"github.com/krshsl/medspa/backend/models"
	"gorm.io/gorm"
)

// ListOptions narrows admin list queries. Zero values mean "no filter".
type ListOptions struct {
	Status string
	Search string
	Limit  int
	Offset int
}

func (o ListOptions) apply(q *gorm.DB) *gorm.DB {
	if o.Status != "" {
		q = q.Where("status = ?", o.Status)
	}
	limit := o.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return q.Limit(limit).Offset(o.Offset)
}

func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

func (r *GORMRepository) CreateClient(ctx context.Context, client *models.Client) error {
	if err := r.db.WithContext(ctx).Create(client).Error; err != nil {
		slog.Error("Failed to create client", "error", err)
		return err
	}
	slog.Info("Client created", "client_id", client.ID)
	return nil
}

func (r *GORMRepository) GetClient(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&client).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get client", "error", err, "client_id", id)
		return nil, err
	}
	return &client, nil
}

func (r *GORMRepository) GetClientByUserID(ctx context.Context, userID string) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&client).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get client by user", "error", err, "user_id", userID)
		return nil, err
	}
	return &client, nil
}

func (r *GORMRepository) ListClients(ctx context.Context, opts ListOptions) ([]models.Client, error) {
	var clients []models.Client
	q := r.db.WithContext(ctx).Model(&models.Client{})
	if opts.Search != "" {
		p := likePattern(opts.Search)
		q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ?", p, p, p)
	}
	if err := opts.apply(q).Order("created_at DESC").Find(&clients).Error; err != nil {
		slog.Error("Failed to list clients", "error", err)
		return nil, err
	}
	return clients, nil
}

// ListSMSClients returns active clients that opted into text messages.
func (r *GORMRepository) ListSMSClients(ctx context.Context) ([]models.Client, error) {
	var clients []models.Client
	err := r.db.WithContext(ctx).
		Where("status = ? AND sms_opt_in = ? AND phone <> ''", models.ClientStatusActive, true).
		Find(&clients).Error
	if err != nil {
		slog.Error("Failed to list sms clients", "error", err)
		return nil, err
	}
	return clients, nil
}

func (r *GORMRepository) UpdateClient(ctx context.Context, client *models.Client) error {
	if err := r.db.WithContext(ctx).Omit("User", "Appointments", "Consents").Save(client).Error; err != nil {
		slog.Error("Failed to update client", "error", err, "client_id", client.ID)
		return err
	}
	return nil
}

// ArchiveClient flips the status flag; client rows are never hard deleted.
func (r *GORMRepository) ArchiveClient(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&models.Client{}).Where("id = ?", id).Update("status", models.ClientStatusArchived)
	if res.Error != nil {
		slog.Error("Failed to archive client", "error", res.Error, "client_id", id)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	slog.Info("Client archived", "client_id", id)
	return nil
}

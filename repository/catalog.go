package repository

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/krshsl/medspa/backend/models"
	"gorm.io/gorm"
)

// whereIDOrSlug matches on the primary key when v parses as a UUID and on
// the slug otherwise; Postgres rejects non-UUID text compared to a uuid column.
func whereIDOrSlug(q *gorm.DB, v string) *gorm.DB {
	if _, err := uuid.Parse(v); err == nil {
		return q.Where("id = ?", v)
	}
	return q.Where("slug = ?", v)
}

// Provider operations
func (r *GORMRepository) CreateProvider(ctx context.Context, provider *models.Provider) error {
	if err := r.db.WithContext(ctx).Create(provider).Error; err != nil {
		slog.Error("Failed to create provider", "error", err)
		return err
	}
	slog.Info("Provider created", "provider_id", provider.ID, "slug", provider.Slug)
	return nil
}

// ListProviders returns providers ordered for display. Archived media is
// left out of the preload.
func (r *GORMRepository) ListProviders(ctx context.Context, activeOnly bool) ([]models.Provider, error) {
	var providers []models.Provider
	q := r.db.WithContext(ctx).
		Preload("Media", "status = ?", models.MediaStatusActive).
		Preload("Media.Video")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("sort_order, name").Find(&providers).Error; err != nil {
		slog.Error("Failed to list providers", "error", err)
		return nil, err
	}
	return providers, nil
}

func (r *GORMRepository) GetProvider(ctx context.Context, id string) (*models.Provider, error) {
	var provider models.Provider
	q := r.db.WithContext(ctx).
		Preload("Media", "status = ?", models.MediaStatusActive).
		Preload("Media.Video")
	err := whereIDOrSlug(q, id).First(&provider).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get provider", "error", err, "provider", id)
		return nil, err
	}
	return &provider, nil
}

func (r *GORMRepository) UpdateProvider(ctx context.Context, provider *models.Provider) error {
	if err := r.db.WithContext(ctx).Omit("Media").Save(provider).Error; err != nil {
		slog.Error("Failed to update provider", "error", err, "provider_id", provider.ID)
		return err
	}
	return nil
}

func (r *GORMRepository) DeleteProvider(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Provider{})
	if res.Error != nil {
		slog.Error("Failed to delete provider", "error", res.Error, "provider_id", id)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	slog.Info("Provider deleted", "provider_id", id)
	return nil
}

// Provider media operations
func (r *GORMRepository) CreateProviderMedia(ctx context.Context, media *models.ProviderMedia) error {
	if err := r.db.WithContext(ctx).Create(media).Error; err != nil {
		slog.Error("Failed to create provider media", "error", err, "provider_id", media.ProviderID)
		return err
	}
	return nil
}

func (r *GORMRepository) GetProviderMedia(ctx context.Context, id string) (*models.ProviderMedia, error) {
	var media models.ProviderMedia
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&media).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get provider media", "error", err, "media_id", id)
		return nil, err
	}
	return &media, nil
}

func (r *GORMRepository) UpdateProviderMedia(ctx context.Context, media *models.ProviderMedia) error {
	if err := r.db.WithContext(ctx).Omit("Video").Save(media).Error; err != nil {
		slog.Error("Failed to update provider media", "error", err, "media_id", media.ID)
		return err
	}
	return nil
}

// Treatment operations
func (r *GORMRepository) CreateTreatment(ctx context.Context, treatment *models.Treatment) error {
	if err := r.db.WithContext(ctx).Create(treatment).Error; err != nil {
		slog.Error("Failed to create treatment", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) ListTreatments(ctx context.Context, activeOnly bool) ([]models.Treatment, error) {
	var treatments []models.Treatment
	q := r.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("category, name").Find(&treatments).Error; err != nil {
		slog.Error("Failed to list treatments", "error", err)
		return nil, err
	}
	return treatments, nil
}

func (r *GORMRepository) GetTreatment(ctx context.Context, idOrSlug string) (*models.Treatment, error) {
	var treatment models.Treatment
	if err := whereIDOrSlug(r.db.WithContext(ctx), idOrSlug).First(&treatment).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get treatment", "error", err, "treatment", idOrSlug)
		return nil, err
	}
	return &treatment, nil
}

func (r *GORMRepository) UpdateTreatment(ctx context.Context, treatment *models.Treatment) error {
	if err := r.db.WithContext(ctx).Save(treatment).Error; err != nil {
		slog.Error("Failed to update treatment", "error", err, "treatment_id", treatment.ID)
		return err
	}
	return nil
}

func (r *GORMRepository) DeleteTreatment(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Treatment{})
	if res.Error != nil {
		slog.Error("Failed to delete treatment", "error", res.Error, "treatment_id", id)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Location operations
func (r *GORMRepository) CreateLocation(ctx context.Context, location *models.Location) error {
	if err := r.db.WithContext(ctx).Create(location).Error; err != nil {
		slog.Error("Failed to create location", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) ListLocations(ctx context.Context, activeOnly bool) ([]models.Location, error) {
	var locations []models.Location
	q := r.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("city").Find(&locations).Error; err != nil {
		slog.Error("Failed to list locations", "error", err)
		return nil, err
	}
	return locations, nil
}

func (r *GORMRepository) GetLocationBySlug(ctx context.Context, slug string) (*models.Location, error) {
	var location models.Location
	if err := r.db.WithContext(ctx).Where("slug = ? AND is_active = ?", slug, true).First(&location).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get location", "error", err, "slug", slug)
		return nil, err
	}
	return &location, nil
}

func (r *GORMRepository) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	var location models.Location
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&location).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get location", "error", err, "location_id", id)
		return nil, err
	}
	return &location, nil
}

func (r *GORMRepository) UpdateLocation(ctx context.Context, location *models.Location) error {
	if err := r.db.WithContext(ctx).Save(location).Error; err != nil {
		slog.Error("Failed to update location", "error", err, "location_id", location.ID)
		return err
	}
	return nil
}

func (r *GORMRepository) DeleteLocation(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Location{})
	if res.Error != nil {
		slog.Error("Failed to delete location", "error", res.Error, "location_id", id)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

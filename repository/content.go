package repository

import (
	"context"
	"log/slog"

	"github.com/krshsl/medspa/backend/models"
	"gorm.io/gorm"
)

// Blueprint operations
func (r *GORMRepository) CreateJourneySession(ctx context.Context, s *models.JourneySession) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		slog.Error("Failed to create journey session", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetJourneySession(ctx context.Context, id string) (*models.JourneySession, error) {
	var s models.JourneySession
	err := r.db.WithContext(ctx).
		Preload("HormoneSessions").Preload("FaceSessions").
		Where("id = ?", id).First(&s).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get journey session", "error", err, "session_id", id)
		return nil, err
	}
	return &s, nil
}

func (r *GORMRepository) CreateHormoneSession(ctx context.Context, s *models.HormoneSession) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		slog.Error("Failed to create hormone session", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) CreateFaceSession(ctx context.Context, s *models.FaceSession) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		slog.Error("Failed to create face session", "error", err)
		return err
	}
	return nil
}

// ListBlueprintSessions returns the most recent sessions for one tool.
// kind is "journey", "hormone" or "face".
func (r *GORMRepository) ListBlueprintSessions(ctx context.Context, kind string, opts ListOptions) (interface{}, error) {
	var q *gorm.DB
	var out interface{}
	switch kind {
	case "journey":
		rows := []models.JourneySession{}
		q, out = r.db.WithContext(ctx).Model(&models.JourneySession{}), &rows
	case "hormone":
		rows := []models.HormoneSession{}
		q, out = r.db.WithContext(ctx).Model(&models.HormoneSession{}), &rows
	case "face":
		rows := []models.FaceSession{}
		q, out = r.db.WithContext(ctx).Model(&models.FaceSession{}), &rows
	default:
		return nil, ErrNotFound
	}
	if err := opts.apply(q).Order("created_at DESC").Find(out).Error; err != nil {
		slog.Error("Failed to list blueprint sessions", "error", err, "kind", kind)
		return nil, err
	}
	return out, nil
}

// CMS operations
func (r *GORMRepository) CreateCMSSection(ctx context.Context, section *models.CMSSection) error {
	if err := r.db.WithContext(ctx).Create(section).Error; err != nil {
		slog.Error("Failed to create cms section", "error", err, "page", section.Page)
		return err
	}
	return nil
}

func (r *GORMRepository) GetCMSSection(ctx context.Context, id string) (*models.CMSSection, error) {
	var section models.CMSSection
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&section).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get cms section", "error", err, "section_id", id)
		return nil, err
	}
	return &section, nil
}

// ListCMSSections returns a page's sections in display order.
func (r *GORMRepository) ListCMSSections(ctx context.Context, page string, publishedOnly bool) ([]models.CMSSection, error) {
	var sections []models.CMSSection
	q := r.db.WithContext(ctx).Where("page = ?", page)
	if publishedOnly {
		q = q.Where("is_published = ?", true)
	}
	if err := q.Order("position, created_at").Find(&sections).Error; err != nil {
		slog.Error("Failed to list cms sections", "error", err, "page", page)
		return nil, err
	}
	return sections, nil
}

// ListCMSPages returns the distinct page keys that have sections.
func (r *GORMRepository) ListCMSPages(ctx context.Context) ([]string, error) {
	var pages []string
	if err := r.db.WithContext(ctx).Model(&models.CMSSection{}).Distinct().Order("page").Pluck("page", &pages).Error; err != nil {
		slog.Error("Failed to list cms pages", "error", err)
		return nil, err
	}
	return pages, nil
}

func (r *GORMRepository) UpdateCMSSection(ctx context.Context, section *models.CMSSection) error {
	if err := r.db.WithContext(ctx).Save(section).Error; err != nil {
		slog.Error("Failed to update cms section", "error", err, "section_id", section.ID)
		return err
	}
	return nil
}

func (r *GORMRepository) DeleteCMSSection(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.CMSSection{})
	if res.Error != nil {
		slog.Error("Failed to delete cms section", "error", res.Error, "section_id", id)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReorderCMSSections sets position = index for each id, all on one page.
func (r *GORMRepository) ReorderCMSSections(ctx context.Context, page string, ids []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			res := tx.Model(&models.CMSSection{}).Where("id = ? AND page = ?", id, page).Update("position", i)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrNotFound
			}
		}
		return nil
	})
	if err != nil && !isNotFound(err) {
		slog.Error("Failed to reorder cms sections", "error", err, "page", page)
	}
	return err
}

// Video operations
func (r *GORMRepository) CreateVideo(ctx context.Context, video *models.Video) error {
	if err := r.db.WithContext(ctx).Create(video).Error; err != nil {
		slog.Error("Failed to create video", "error", err, "stream_uid", video.StreamUID)
		return err
	}
	return nil
}

func (r *GORMRepository) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	var video models.Video
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&video).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get video", "error", err, "video_id", id)
		return nil, err
	}
	return &video, nil
}

func (r *GORMRepository) ListVideos(ctx context.Context, clientID string, opts ListOptions) ([]models.Video, error) {
	var videos []models.Video
	q := r.db.WithContext(ctx).Model(&models.Video{})
	if clientID != "" {
		q = q.Where("client_id = ?", clientID)
	}
	if err := opts.apply(q).Order("created_at DESC").Find(&videos).Error; err != nil {
		slog.Error("Failed to list videos", "error", err)
		return nil, err
	}
	return videos, nil
}

func (r *GORMRepository) UpdateVideo(ctx context.Context, video *models.Video) error {
	if err := r.db.WithContext(ctx).Save(video).Error; err != nil {
		slog.Error("Failed to update video", "error", err, "video_id", video.ID)
		return err
	}
	return nil
}

func (r *GORMRepository) DeleteVideo(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Video{})
	if res.Error != nil {
		slog.Error("Failed to delete video", "error", res.Error, "video_id", id)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/krshsl/medspa/backend/models"
	"gorm.io/gorm"
)

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// DB exposes the underlying handle for health checks.
func (r *GORMRepository) DB() *gorm.DB {
	return r.db
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	if err := r.db.AutoMigrate(models.All()...); err != nil {
		return err
	}
	if r.db.Dialector.Name() == "postgres" {
		return r.installFunctions()
	}
	return nil
}

// installFunctions creates the rate-limit RPCs. They are plain SQL functions
// so the counter can be bumped in a single round trip.
func (r *GORMRepository) installFunctions() error {
	statements := []string{
		`CREATE OR REPLACE FUNCTION increment_rate_limit(p_ip TEXT, p_feature TEXT, p_window TIMESTAMPTZ)
RETURNS INTEGER AS $$
	INSERT INTO rate_limit_counters (ip_address, feature, window_start, count)
	VALUES (p_ip, p_feature, p_window, 1)
	ON CONFLICT (ip_address, feature, window_start)
	DO UPDATE SET count = rate_limit_counters.count + 1
	RETURNING count;
$$ LANGUAGE sql;`,
		`CREATE OR REPLACE FUNCTION prune_rate_limits(p_before TIMESTAMPTZ)
RETURNS INTEGER AS $$
	WITH deleted AS (
		DELETE FROM rate_limit_counters WHERE window_start < p_before RETURNING 1
	)
	SELECT COUNT(*)::INTEGER FROM deleted;
$$ LANGUAGE sql;`,
	}
	for _, stmt := range statements {
		if err := r.db.Exec(stmt).Error; err != nil {
			slog.Error("Failed to install database function", "error", err)
			return err
		}
	}
	return nil
}

// ErrNotFound is returned by updates and deletes that matched no row.
// Reads return nil, nil instead.
var ErrNotFound = gorm.ErrRecordNotFound

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// User operations
func (r *GORMRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		slog.Error("Failed to create user", "error", err)
		return err
	}
	slog.Info("User created", "user_id", user.ID, "email", user.Email)
	return nil
}

func (r *GORMRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

// CreateUserWithClient creates a portal user and its client row together.
func (r *GORMRepository) CreateUserWithClient(ctx context.Context, user *models.User, client *models.Client) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		client.UserID = &user.ID
		return tx.Create(client).Error
	})
	if err != nil {
		slog.Error("Failed to create user with client", "error", err, "email", user.Email)
		return err
	}
	slog.Info("Portal user created", "user_id", user.ID, "client_id", client.ID)
	return nil
}

// Token operations
func (r *GORMRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token = ? AND expires_at > ?", token, time.Now()).First(&refreshToken).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get refresh token", "error", err)
		return nil, err
	}
	return &refreshToken, nil
}

func (r *GORMRepository) CreatePermanentToken(ctx context.Context, token *models.PermanentToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create permanent token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetPermanentToken(ctx context.Context, token string) (*models.PermanentToken, error) {
	var permanentToken models.PermanentToken
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&permanentToken).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get permanent token", "error", err)
		return nil, err
	}
	return &permanentToken, nil
}

func (r *GORMRepository) DeleteAllUserTokens(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
		slog.Error("Failed to delete user refresh tokens", "error", err, "user_id", userID)
		return err
	}
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.PermanentToken{}).Error; err != nil {
		slog.Error("Failed to delete user permanent tokens", "error", err, "user_id", userID)
		return err
	}
	return nil
}

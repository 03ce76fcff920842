// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/krshsl/medspa/backend/models"
	"github.com/krshsl/medspa/backend/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestRepo opens a private in-memory SQLite database, migrates every
// model and returns a repository on top of it. The database is closed when
// the test ends.
func SetupTestRepo(t *testing.T) *repository.GORMRepository {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=off", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	repo := repository.NewGORMRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return repo
}

// CreateClient inserts an active client with the given first name.
func CreateClient(t *testing.T, repo *repository.GORMRepository, firstName string) *models.Client {
	t.Helper()

	client := &models.Client{
		FirstName: firstName,
		LastName:  "Tester",
		Email:     fmt.Sprintf("%s-%s@example.com", firstName, uuid.NewString()[:8]),
		Phone:     "+15555550100",
		SMSOptIn:  true,
		Status:    models.ClientStatusActive,
	}
	if err := repo.CreateClient(context.Background(), client); err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

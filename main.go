package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/krshsl/medspa/backend/repository"
	"github.com/krshsl/medspa/backend/services"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var rootCmd = &cobra.Command{
	Use:   "medspa",
	Short: "Med spa website backend",
	Long: `API server for the med spa website: public catalog and landing pages,
AI blueprint tools, lead capture, the client portal and the admin back office.

Configuration is read from .env and the environment.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update tables and database functions",
	RunE:  runMigrate,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the default treatments, providers, locations and pages",
	RunE:  runSeed,
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create a back office user",
	Example: `  medspa create-admin --email owner@example.com --password 'long passphrase' --name "Clinic Owner"`,
	RunE: runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().String("email", "", "admin email (required)")
	createAdminCmd.Flags().String("password", "", "admin password, at least 8 characters (required)")
	createAdminCmd.Flags().String("name", "", "display name")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, createAdminCmd)
}

func main() {
	// Setup structured logging with JSON format
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// openDatabase connects GORM to Postgres and runs migrations.
func openDatabase(cfg *services.Config) (*repository.GORMRepository, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.Database.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	repo := repository.NewGORMRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	slog.Info("Connected to database")
	return repo, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := services.LoadConfig()

	repo, err := openDatabase(cfg)
	if err != nil {
		return err
	}

	if cfg.Database.Seed {
		if err := services.NewDatabaseSeeder(repo).SeedDatabase(cmd.Context()); err != nil {
			slog.Error("Failed to seed database", "error", err)
		}
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.URL)
	if err != nil {
		slog.Error("Failed to open pgx pool, rate limiting falls back", "error", err)
	} else {
		defer pool.Close()
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(cmd.Context()).Err(); err != nil {
			slog.Warn("Redis ping failed", "error", err)
		}
	}

	server := services.NewServer(cfg)
	server.SetDatabase(repo)
	if pool != nil {
		server.SetPool(pool)
	}
	if rdb != nil {
		server.SetRedis(rdb)
	}
	if err := server.InitializeServices(); err != nil {
		return err
	}
	server.Start()
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := services.LoadConfig()
	if _, err := openDatabase(cfg); err != nil {
		return err
	}
	slog.Info("Migrations applied")
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg := services.LoadConfig()
	repo, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	return services.NewDatabaseSeeder(repo).SeedDatabase(cmd.Context())
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	name, _ := cmd.Flags().GetString("name")

	cfg := services.LoadConfig()
	repo, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	auth := services.NewAuthService(repo, cfg.JWT.Secret, cfg.IsProduction())
	user, err := auth.CreateAdmin(cmd.Context(), email, password, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", user.Email, user.ID)
	return nil
}

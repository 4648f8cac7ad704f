package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/gramlytics/gramlytics-backend/internal/logger"
	"github.com/gramlytics/gramlytics-backend/internal/types"
	"github.com/gramlytics/gramlytics-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	log.Info("Loading environment variables...")
	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "gramlytics", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

// AutoMigrateAll provisions every table. Safe to run against an already
// provisioned store: AutoMigrate only adds what is missing and never drops
// columns or rows.
func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(AllModels()...)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	return nil
}

// AllModels lists every persisted entity. Shared with the sqlite test
// harness so tests migrate the same schema.
func AllModels() []any {
	return []any{
		&types.Profile{},
		&types.MediaPost{},
		&types.MediaPostHashtag{},
		&types.Story{},
		&types.Highlight{},
		&types.HighlightStory{},
		&types.MediaComment{},
		&types.CommentReply{},
		&types.CommentLike{},
		&types.HashtagData{},
		&types.LocationData{},
		&types.AudioData{},
		&types.SimilarAccount{},
		&types.SearchResult{},
		&types.APIUsageLog{},
		&types.DataCollectionLog{},
	}
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}

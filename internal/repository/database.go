package repository

import (
	"fmt"

	"github.com/alpinesboltltd/boltz-ai/internal/entity"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitDB opens the procurement-core schema: projects, their generated
// documents, the lineage graph between documents, and phase transition
// requests. It does not own any user/auth/workspace tables.
func InitDB(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&entity.Project{},
		&entity.Document{},
		&entity.ProjectDocument{},
		&entity.LineageEdge{},
		&entity.PhaseTransitionRequest{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

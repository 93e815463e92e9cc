package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/quest-backend/internal/domain"
)

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating story tables...")
	return AutoMigrateAll(s.db)
}

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

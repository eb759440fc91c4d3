package postgres

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	applog "harvester/pkg/logger"
	"harvester/pkg/models"
)

// SavePolicies upserts each item by title. Items that fail to write are
// logged and skipped, so the result may be shorter than the input.
func (s *PostgresStore) SavePolicies(ctx context.Context, source string, items []models.Policy) ([]models.Policy, error) {
	log := applog.Named("store").With(zap.String("source", source))
	if len(items) == 0 {
		log.Info("No items to write, skipping")
		return nil, nil
	}

	saved := make([]models.Policy, 0, len(items))
	for _, item := range items {
		item.Title = strings.TrimSpace(item.Title)
		if item.Title == "" {
			log.Warn("Skipping item without title")
			continue
		}
		if item.Source == "" {
			item.Source = source
		}

		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "title"}},
				DoUpdates: clause.AssignmentColumns([]string{"url", "pub_at", "content", "category", "source", "updated_at"}),
			}).
			Create(&item).Error
		if err != nil {
			if ctx.Err() != nil {
				return saved, ctx.Err()
			}
			log.Warn("Failed to write item", zap.String("title", item.Title), zap.Error(err))
			continue
		}
		saved = append(saved, item)
	}

	log.Info("Items written", zap.Int("count", len(saved)), zap.Int("received", len(items)))
	return saved, nil
}

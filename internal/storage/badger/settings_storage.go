package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendwatch/internal/interfaces"
	"github.com/ternarybob/trendwatch/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SettingsStorage implements the SettingsStore interface for Badger
type SettingsStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSettingsStorage creates a new SettingsStorage instance
func NewSettingsStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SettingsStore {
	return &SettingsStorage{
		db:     db,
		logger: logger,
	}
}

// GetSettings returns the requester's settings, falling back to defaults for
// requesters that never saved any
func (s *SettingsStorage) GetSettings(ctx context.Context, requesterID string) (*models.RequesterSettings, error) {
	var settings models.RequesterSettings
	if err := s.db.Store().Get(requesterID, &settings); err != nil {
		if err == badgerhold.ErrNotFound {
			return models.DefaultRequesterSettings(requesterID), nil
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &settings, nil
}

func (s *SettingsStorage) SaveSettings(ctx context.Context, settings *models.RequesterSettings) error {
	if settings.RequesterID == "" {
		return fmt.Errorf("requester ID is required")
	}
	settings.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(settings.RequesterID, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendwatch/internal/common"
	"github.com/ternarybob/trendwatch/internal/interfaces"
	badgerstore "github.com/ternarybob/trendwatch/internal/storage/badger"
)

// Manager owns the Badger connection and the typed stores built on it
type Manager struct {
	db        *badgerstore.BadgerDB
	jobs      interfaces.JobStore
	settings  interfaces.SettingsStore
	schedules interfaces.ScheduleStore
}

// Compile-time assertion
var _ interfaces.StorageManager = (*Manager)(nil)

// NewStorageManager opens the database and wires up the stores
func NewStorageManager(logger arbor.ILogger, config *common.Config) (*Manager, error) {
	db, err := badgerstore.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize badger storage: %w", err)
	}

	return &Manager{
		db:        db,
		jobs:      badgerstore.NewJobStorage(db, logger),
		settings:  badgerstore.NewSettingsStorage(db, logger),
		schedules: badgerstore.NewScheduleStorage(db, logger),
	}, nil
}

func (m *Manager) JobStore() interfaces.JobStore {
	return m.jobs
}

func (m *Manager) SettingsStore() interfaces.SettingsStore {
	return m.settings
}

func (m *Manager) ScheduleStore() interfaces.ScheduleStore {
	return m.schedules
}

func (m *Manager) Close() error {
	return m.db.Close()
}

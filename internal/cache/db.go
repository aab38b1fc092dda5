package cache

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScanCache is the DB model holding one cached scan.
type ScanCache struct {
	Key       string         `gorm:"primaryKey;size:64"`
	Payload   datatypes.JSON `gorm:"type:json"`
	UpdatedAt time.Time
}

func (ScanCache) TableName() string { return "scan_cache" }

func AutoMigrate(db *gorm.DB) error { return db.AutoMigrate(&ScanCache{}) }

// DBStore keeps scan results in the settings database.
type DBStore struct{ db *gorm.DB }

func NewDBStore(db *gorm.DB) *DBStore { return &DBStore{db: db} }

// Load treats a row without payload as a miss.
func (s *DBStore) Load(ctx context.Context, key string) (Entry, bool, error) {
	var row ScanCache
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if len(row.Payload) == 0 {
		return Entry{}, false, nil
	}
	out, err := decode(row.Payload)
	if err != nil {
		return Entry{}, false, err
	}
	return out, true, nil
}

func (s *DBStore) Save(ctx context.Context, key string, entry Entry) error {
	b, err := encode(entry)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&ScanCache{Key: key, Payload: b}).Error
}

func (s *DBStore) Clear(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&ScanCache{}).Error
}

package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = errors.New("settings: not found")

// Repo provides GORM-based persistence for favorites and global settings.
type Repo struct{ db *gorm.DB }

func AutoMigrate(db *gorm.DB) error { return db.AutoMigrate(&Favorite{}, &Setting{}) }
func NewRepo(db *gorm.DB) *Repo     { return &Repo{db: db} }

// Favorites
func (r *Repo) AddFavorite(ctx context.Context, title string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&Favorite{Title: title}).Error
}
func (r *Repo) RemoveFavorite(ctx context.Context, title string) error {
	return r.db.WithContext(ctx).Where("title = ?", title).Delete(&Favorite{}).Error
}
func (r *Repo) IsFavorite(ctx context.Context, title string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Favorite{}).Where("title = ?", title).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Favorites returns every favorite title as a set.
func (r *Repo) Favorites(ctx context.Context) (map[string]bool, error) {
	var arr []Favorite
	if err := r.db.WithContext(ctx).Order("title").Find(&arr).Error; err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(arr))
	for _, f := range arr {
		out[f.Title] = true
	}
	return out, nil
}

// Key/value settings
func (r *Repo) Get(ctx context.Context, key string, dst any) error {
	var s Setting
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(s.Value, dst); err != nil {
		return fmt.Errorf("decode setting %s: %w", key, err)
	}
	return nil
}

func (r *Repo) Set(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Setting{Key: key, Value: b}).Error
}

func (r *Repo) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("key = ?", key).Delete(&Setting{}).Error
}

// GamesFolders returns the configured scan roots, nil when unset.
func (r *Repo) GamesFolders(ctx context.Context) ([]string, error) {
	var out []string
	if err := r.Get(ctx, KeyGamesFolders, &out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

func (r *Repo) SetGamesFolders(ctx context.Context, folders []string) error {
	return r.Set(ctx, KeyGamesFolders, folders)
}

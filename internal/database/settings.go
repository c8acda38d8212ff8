package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/domaingate/internal/models"
)

// ErrSettingNotFound is returned by GetSetting when no row exists for the key.
var ErrSettingNotFound = errors.New("settings: not found")

// GetSetting loads the row for key and decodes its JSON value into dest.
func GetSetting(ctx context.Context, db *gorm.DB, key string, dest any) (*models.Setting, error) {
	if db == nil {
		return nil, errors.New("settings: db is nil")
	}

	var setting models.Setting
	err := db.WithContext(ctx).Where(&models.Setting{Key: key}).Take(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSettingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("settings: get %q: %w", key, err)
	}

	if dest != nil {
		if err := json.Unmarshal(setting.Value, dest); err != nil {
			return nil, fmt.Errorf("settings: decode %q: %w", key, err)
		}
	}
	return &setting, nil
}

// UpsertSetting stores value as JSON under key, creating the row when absent.
func UpsertSetting(ctx context.Context, db *gorm.DB, key string, value any, updatedBy string) error {
	if db == nil {
		return errors.New("settings: db is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("settings: key is required")
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("settings: encode %q: %w", key, err)
	}

	record := models.Setting{
		Key:       key,
		Value:     datatypes.JSON(encoded),
		UpdatedBy: strings.TrimSpace(updatedBy),
	}

	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
		}).
		Create(&record).Error; err != nil {
		return fmt.Errorf("settings: upsert %q: %w", key, err)
	}
	return nil
}

// InsertSettingIfAbsent stores value only when key has no row yet. It reports
// whether a row was written.
func InsertSettingIfAbsent(ctx context.Context, db *gorm.DB, key string, value any, updatedBy string) (bool, error) {
	if db == nil {
		return false, errors.New("settings: db is nil")
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("settings: encode %q: %w", key, err)
	}

	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Setting{Key: key, Value: datatypes.JSON(encoded), UpdatedBy: updatedBy})
	if result.Error != nil {
		return false, fmt.Errorf("settings: seed %q: %w", key, result.Error)
	}
	return result.RowsAffected > 0, nil
}

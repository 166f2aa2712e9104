package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"loofcloud/internal/models"
)

// AppConfigStore — хранимая конфигурация приложения (одна JSON-строка).
type AppConfigStore struct{ db *gorm.DB }

func NewAppConfigStore(db *gorm.DB) *AppConfigStore { return &AppConfigStore{db: db} }

// Get читает конфигурацию; если записи нет — возвращает дефолты.
func (s *AppConfigStore) Get(ctx context.Context) (*models.AppConfigValue, error) {
	var row models.AppConfig
	err := s.db.WithContext(ctx).Where("id = ?", models.AppConfigID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		v := models.DefaultAppConfig()
		return &v, nil
	}
	if err != nil {
		return nil, err
	}
	var v models.AppConfigValue
	if err := json.Unmarshal(row.Value, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Set перезаписывает конфигурацию целиком (upsert по фиксированному id).
func (s *AppConfigStore) Set(ctx context.Context, v *models.AppConfigValue) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	row := models.AppConfig{
		ID:        models.AppConfigID,
		Value:     datatypes.JSON(raw),
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

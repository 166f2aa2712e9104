package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"loofcloud/internal/models"
)

// SettingStore — доступ к singleton-записям system_settings
// (secret_key, p115_cookies). Только точечные Get/Upsert/Delete.
type SettingStore struct{ db *gorm.DB }

func NewSettingStore(db *gorm.DB) *SettingStore { return &SettingStore{db: db} }

func (s *SettingStore) Get(ctx context.Context, key string) (*models.Setting, error) {
	var row models.Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert перезаписывает запись по фиксированному ключу.
func (s *SettingStore) Upsert(ctx context.Context, key, value, app string) error {
	row := models.Setting{
		Key:       key,
		Value:     value,
		App:       app,
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "app", "updated_at"}),
	}).Create(&row).Error
}

// Delete удаляет запись; отсутствие записи — не ошибка.
func (s *SettingStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.Setting{}).Error
}

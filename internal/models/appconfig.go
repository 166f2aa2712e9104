package models

import (
	"time"

	"gorm.io/datatypes"
)

// AppConfigID — фиксированный id единственной строки app_configs.
const AppConfigID = "app_config"

// AppConfig — хранимая в БД конфигурация приложения (JSON-колонка).
type AppConfig struct {
	ID        string         `gorm:"size:64;primaryKey"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

// BaseConfig — базовые настройки обработки медиа.
type BaseConfig struct {
	StrmBaseURL          *string  `json:"strm_base_url"`
	UserRmtMediaext      []string `json:"user_rmt_mediaext"`
	UserDownloadMediaext []string `json:"user_download_mediaext"`
}

// StorageConfig — пути хранилищ.
type StorageConfig struct {
	CloudStorageBoxDir   *string `json:"cloud_storage_box_dir"`
	LocalMediaLibraryDir *string `json:"local_media_library_dir"`
}

// AppConfigValue — содержимое JSON-колонки AppConfig.Value.
type AppConfigValue struct {
	Base    BaseConfig    `json:"base"`
	Storage StorageConfig `json:"storage"`
}

// DefaultAppConfig возвращает значение по умолчанию (списки расширений
// совпадают с дефолтами исходной версии).
func DefaultAppConfig() AppConfigValue {
	return AppConfigValue{
		Base: BaseConfig{
			UserRmtMediaext: []string{
				"mp4", "mkv", "ts", "iso", "rmvb", "avi", "mov", "mpeg",
				"mpg", "wmv", "3gp", "asf", "m4v", "flv", "m2ts", "tp", "f4v",
			},
			UserDownloadMediaext: []string{"srt", "ssa", "ass", "nfo"},
		},
	}
}

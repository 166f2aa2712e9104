package models

import "time"

// Фиксированные идентификаторы singleton-записей в system_settings.
const (
	SettingSecretKey   = "secret_key"   // ключ подписи JWT
	SettingP115Cookies = "p115_cookies" // credentials 115-клиента
)

// Setting — singleton-запись «ключ → значение» (аналог коллекции
// system_settings: одна строка на фиксированный ключ, всегда upsert).
type Setting struct {
	Key       string    `gorm:"size:64;primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	App       string    `gorm:"size:32"` // тип клиента, только для p115_cookies
	UpdatedAt time.Time `gorm:"not null"`
}

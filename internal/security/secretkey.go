package security

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"loofcloud/internal/models"
	"loofcloud/internal/repo"
)

// SettingSource — контракт хранилища singleton-настроек, нужный киперу.
type SettingSource interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, key, value, app string) error
}

// Keeper держит действующий ключ подписи токенов. Значение резолвится
// один раз на старте (ResolveSecretKey) и дальше читается на каждую
// подпись/проверку.
type Keeper struct {
	mu     sync.RWMutex
	secret []byte
}

func NewKeeper(secret []byte) *Keeper { return &Keeper{secret: secret} }

func (k *Keeper) Current() []byte {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.secret
}

func (k *Keeper) Set(secret []byte) {
	k.mu.Lock()
	k.secret = secret
	k.mu.Unlock()
}

// ResolveSecretKey гарантирует наличие ключа подписи в БД:
//   - ключ уже сохранён — используем его (токены переживают рестарт);
//   - задан непустой недефолтный ключ в конфиге — принимаем его;
//   - иначе генерируем случайный.
//
// Принятый/сгенерированный ключ сразу сохраняется.
func ResolveSecretKey(ctx context.Context, store SettingSource, configured string) (*Keeper, error) {
	row, err := store.Get(ctx, models.SettingSecretKey)
	if err == nil && row.Value != "" {
		return NewKeeper([]byte(row.Value)), nil
	}
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("secret key lookup: %w", err)
	}

	key := configured
	if key == "" || key == "change-me" {
		var raw [32]byte
		if _, err := rand.Read(raw[:]); err != nil {
			return nil, fmt.Errorf("secret key generate: %w", err)
		}
		key = base64.RawURLEncoding.EncodeToString(raw[:])
	}
	if err := store.Upsert(ctx, models.SettingSecretKey, key, ""); err != nil {
		return nil, fmt.Errorf("secret key persist: %w", err)
	}
	return NewKeeper([]byte(key)), nil
}

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"loofcloud/internal/cache"
	"loofcloud/internal/logs"
	"loofcloud/internal/models"
	"loofcloud/internal/repo"
)

// Ключи кэша дашборда.
const (
	cacheKeyUserInfo  = "p115:user_my_info"
	cacheKeyIndexInfo = "p115:fs_index_info:%d"
)

// SettingSource — singleton-хранилище credential (p115_cookies).
type SettingSource interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, key, value, app string) error
	Delete(ctx context.Context, key string) error
}

// Session управляет QR-входом в 115 и единственным на весь процесс
// залогиненным хэндлом. Хэндл читают/заменяют конкурентные запросы,
// поэтому доступ — только под мьютексом.
type Session struct {
	mu     sync.RWMutex
	client *Client // nil — LoggedOut

	base     *Client // без credential, для QR-операций
	settings SettingSource
	cache    cache.Store
	ttl      time.Duration
}

func NewSession(base *Client, settings SettingSource, c cache.Store, ttl time.Duration) *Session {
	return &Session{base: base, settings: settings, cache: c, ttl: ttl}
}

func (s *Session) handle() *Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

func (s *Session) setHandle(c *Client) {
	s.mu.Lock()
	s.client = c
	s.mu.Unlock()
}

// LoggedIn — есть ли залогиненный хэндл в памяти. Может расходиться с
// наличием записи в БД до отработки LoadFromDB (см. Status).
func (s *Session) LoggedIn() bool { return s.handle() != nil }

// LoadFromDB восстанавливает хэндл из сохранённого credential.
// Стартовый хук: любой исход только логируется, старт процесса не валит.
func (s *Session) LoadFromDB(ctx context.Context) {
	log := logs.Component("p115")
	row, err := s.settings.Get(ctx, models.SettingP115Cookies)
	if errors.Is(err, repo.ErrNotFound) {
		log.Warn("no saved credential in database")
		return
	}
	if err != nil {
		log.Errorf("credential load failed: %v", err)
		return
	}
	if row.Value == "" {
		log.Warn("saved credential is empty")
		return
	}
	s.setHandle(s.base.WithCredential(row.Value))
	log.Info("credential loaded from database")
}

// GetQrcodeToken выпускает QR-challenge. Локальное состояние не меняется.
func (s *Session) GetQrcodeToken(ctx context.Context, app string) (*QrcodeToken, error) {
	return s.base.QrcodeToken(ctx, app)
}

// GetQrcodeImage — passthrough PNG-картинки challenge.
func (s *Session) GetQrcodeImage(ctx context.Context, uid string) ([]byte, error) {
	return s.base.QrcodeImage(ctx, uid)
}

// PollQrcodeStatus — passthrough статуса сканирования.
func (s *Session) PollQrcodeStatus(ctx context.Context, uid string, t int64, sign string) (*QrcodeStatus, error) {
	return s.base.QrcodeStatus(ctx, uid, t, sign)
}

// ConfirmQrcode обменивает подтверждённый challenge на credential:
// пересобирает хэндл, упсертит singleton-запись и сбрасывает оба кэша
// дашборда, чтобы следующее чтение отражало новую учётку.
func (s *Session) ConfirmQrcode(ctx context.Context, uid, app string) (string, error) {
	cookie, err := s.base.QrcodeResult(ctx, uid, app)
	if err != nil {
		return "", err
	}
	credential := joinCookie(cookie)
	s.setHandle(s.base.WithCredential(credential))
	if err := s.settings.Upsert(ctx, models.SettingP115Cookies, credential, app); err != nil {
		return "", fmt.Errorf("credential persist: %w", err)
	}
	s.invalidateCaches(ctx)
	logs.Component("p115").Infof("qrcode login ok (app=%s)", app)
	return credential, nil
}

// Logout сбрасывает хэндл и сохранённый credential. Повторный вызов —
// no-op, не ошибка.
func (s *Session) Logout(ctx context.Context) error {
	s.setHandle(nil)
	if err := s.settings.Delete(ctx, models.SettingP115Cookies); err != nil {
		return fmt.Errorf("credential delete: %w", err)
	}
	s.invalidateCaches(ctx)
	logs.Component("p115").Info("logged out, credential cleared")
	return nil
}

// Status — сводное состояние. logged_in берётся из памяти, app и
// updated_at — из сохранённой записи; после рестарта до LoadFromDB они
// могут расходиться, это наблюдаемое поведение.
type Status struct {
	LoggedIn  bool       `json:"logged_in"`
	App       string     `json:"app,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (s *Session) Status(ctx context.Context) *Status {
	st := &Status{LoggedIn: s.LoggedIn()}
	row, err := s.settings.Get(ctx, models.SettingP115Cookies)
	if err != nil || row.Value == "" {
		return st
	}
	st.App = row.App
	ts := row.UpdatedAt.UTC() // наивное время из БД трактуем как UTC
	st.UpdatedAt = &ts
	return st
}

// UserMyInfo — профиль через read-through кэш; нет хэндла или провайдер
// недоступен — nil («нет данных»), а не ошибка.
func (s *Session) UserMyInfo(ctx context.Context) json.RawMessage {
	return s.readThrough(ctx, cacheKeyUserInfo, func(ctx context.Context, cl *Client) (json.RawMessage, error) {
		return cl.UserMyInfo(ctx)
	})
}

// FsIndexInfo — сводка хранилища, ключ кэша зависит от kind.
func (s *Session) FsIndexInfo(ctx context.Context, kind int) json.RawMessage {
	key := fmt.Sprintf(cacheKeyIndexInfo, kind)
	return s.readThrough(ctx, key, func(ctx context.Context, cl *Client) (json.RawMessage, error) {
		return cl.FsIndexInfo(ctx, kind)
	})
}

// Dashboard — композиция статуса и двух read-through чтений.
type Dashboard struct {
	LoggedIn    bool            `json:"logged_in"`
	UserInfo    json.RawMessage `json:"user_info"`
	StorageInfo json.RawMessage `json:"storage_info"`
}

// DashboardInfo: без логина — короткий путь без единого похода к
// провайдеру.
func (s *Session) DashboardInfo(ctx context.Context) *Dashboard {
	if !s.LoggedIn() {
		return &Dashboard{LoggedIn: false}
	}
	return &Dashboard{
		LoggedIn:    true,
		UserInfo:    s.UserMyInfo(ctx),
		StorageInfo: s.FsIndexInfo(ctx, 0),
	}
}

// readThrough: кэш-хит отдаём как есть; на промахе идём к провайдеру,
// best-effort пишем назад с TTL. Падение кэша — лог и мимо; падение
// провайдера — лог и nil: дашборд деградирует, но не ломается.
func (s *Session) readThrough(ctx context.Context, key string, fetch func(context.Context, *Client) (json.RawMessage, error)) json.RawMessage {
	cl := s.handle()
	if cl == nil {
		return nil
	}
	log := logs.Component("p115")
	b, err := s.cache.Get(ctx, key)
	if err == nil {
		return b
	}
	if !errors.Is(err, cache.ErrMiss) {
		log.Warnf("cache get %s: %v", key, err)
	}
	data, err := fetch(ctx, cl)
	if err != nil {
		log.Errorf("provider call for %s failed: %v", key, err)
		return nil
	}
	if err := s.cache.SetEx(ctx, key, s.ttl, data); err != nil {
		log.Warnf("cache set %s: %v", key, err)
	}
	return data
}

func (s *Session) invalidateCaches(ctx context.Context) {
	// fs_index_info кэшируется по kind; в деле только kind=0
	keys := []string{cacheKeyUserInfo, fmt.Sprintf(cacheKeyIndexInfo, 0)}
	if err := s.cache.Del(ctx, keys...); err != nil {
		logs.Component("p115").Warnf("cache invalidate: %v", err)
	}
}

// joinCookie собирает "k=v; ..." с устойчивым порядком ключей.
func joinCookie(cookie map[string]string) string {
	keys := make([]string, 0, len(cookie))
	for k := range cookie {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+cookie[k])
	}
	return strings.Join(parts, "; ")
}

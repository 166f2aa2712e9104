package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"loofcloud/internal/cache"
	"loofcloud/internal/models"
	"loofcloud/internal/repo"
)

// --- фейки коллабораторов ---

type fakeSettings struct {
	rows map[string]models.Setting
}

func newFakeSettings() *fakeSettings { return &fakeSettings{rows: map[string]models.Setting{}} }

func (f *fakeSettings) Get(_ context.Context, key string) (*models.Setting, error) {
	row, ok := f.rows[key]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &row, nil
}

func (f *fakeSettings) Upsert(_ context.Context, key, value, app string) error {
	f.rows[key] = models.Setting{Key: key, Value: value, App: app, UpdatedAt: time.Now().UTC()}
	return nil
}

func (f *fakeSettings) Delete(_ context.Context, key string) error {
	delete(f.rows, key)
	return nil
}

type fakeCache struct {
	rows map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{rows: map[string][]byte{}} }

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	b, ok := f.rows[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return b, nil
}

func (f *fakeCache) SetEx(_ context.Context, key string, _ time.Duration, value []byte) error {
	f.rows[key] = value
	return nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.rows, k)
	}
	return nil
}

// brokenCache падает на каждом вызове.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("cache down")
}
func (brokenCache) SetEx(context.Context, string, time.Duration, []byte) error {
	return errors.New("cache down")
}
func (brokenCache) Del(context.Context, ...string) error { return errors.New("cache down") }

// --- мок провайдера ---

type mockProvider struct {
	srv         *httptest.Server
	myInfoCalls atomic.Int64
	indexCalls  atomic.Int64
}

func newMockProvider(t *testing.T) *mockProvider {
	t.Helper()
	m := &mockProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/1.0/qandroid/1.0/token/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"state":1,"code":0,"data":{"uid":"U-1","time":1700000000,"sign":"SIGN-1","qrcode":"qr-content"}}`)
	})
	mux.HandleFunc("/api/1.0/web/1.0/qrcode", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNG-BYTES"))
	})
	mux.HandleFunc("/get/status/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("uid") != "U-1" {
			fmt.Fprint(w, `{"state":0,"code":40199002,"message":"参数错误"}`)
			return
		}
		fmt.Fprint(w, `{"state":1,"code":0,"data":{"status":2,"msg":"scan confirmed"}}`)
	})
	mux.HandleFunc("/app/1.0/qandroid/1.0/login/qrcode/", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("account") != "U-1" {
			fmt.Fprint(w, `{"state":0,"code":40101032,"message":"验证失败"}`)
			return
		}
		fmt.Fprint(w, `{"state":1,"code":0,"data":{"cookie":{"UID":"uid-v","CID":"cid-v","SEID":"seid-v"}}}`)
	})
	mux.HandleFunc("/user/my_info", func(w http.ResponseWriter, r *http.Request) {
		m.myInfoCalls.Add(1)
		if r.Header.Get("Cookie") == "" {
			fmt.Fprint(w, `{"state":0,"code":40140125,"message":"请重新登录"}`)
			return
		}
		fmt.Fprint(w, `{"state":1,"code":0,"data":{"uid":123,"uname":"tester"}}`)
	})
	mux.HandleFunc("/files/index_info", func(w http.ResponseWriter, _ *http.Request) {
		m.indexCalls.Add(1)
		fmt.Fprint(w, `{"state":1,"code":0,"data":{"space_info":{"all_total":{"size":1024,"size_format":"1KB"}}}}`)
	})
	m.srv = httptest.NewServer(mux)
	t.Cleanup(m.srv.Close)
	return m
}

func (m *mockProvider) endpoints() Endpoints {
	return Endpoints{QrcodeAPI: m.srv.URL, PassportAPI: m.srv.URL, WebAPI: m.srv.URL}
}

func newTestSession(t *testing.T, c cache.Store) (*Session, *mockProvider, *fakeSettings) {
	t.Helper()
	m := newMockProvider(t)
	settings := newFakeSettings()
	s := NewSession(NewClient(m.endpoints()), settings, c, 30*time.Minute)
	return s, m, settings
}

// --- тесты ---

func TestQrcodeFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	cc := newFakeCache()
	s, m, settings := newTestSession(t, cc)

	require.False(t, s.LoggedIn())

	tok, err := s.GetQrcodeToken(ctx, "qandroid")
	require.NoError(t, err)
	require.Equal(t, "U-1", tok.UID)
	require.Equal(t, int64(1700000000), tok.Time)
	require.Equal(t, "qr-content", tok.QrcodeContent)

	st, err := s.PollQrcodeStatus(ctx, tok.UID, tok.Time, tok.Sign)
	require.NoError(t, err)
	require.Equal(t, 2, st.Status)
	require.Equal(t, "scan confirmed", st.Msg)

	// протухшие данные в кэше должны быть сброшены подтверждением
	require.NoError(t, cc.SetEx(ctx, cacheKeyUserInfo, time.Minute, []byte(`{"stale":true}`)))

	credential, err := s.ConfirmQrcode(ctx, tok.UID, "qandroid")
	require.NoError(t, err)
	require.Equal(t, "CID=cid-v; SEID=seid-v; UID=uid-v", credential)
	require.True(t, s.LoggedIn())

	row, ok := settings.rows[models.SettingP115Cookies]
	require.True(t, ok, "credential must be persisted")
	require.Equal(t, credential, row.Value)
	require.Equal(t, "qandroid", row.App)

	_, hasStale := cc.rows[cacheKeyUserInfo]
	require.False(t, hasStale, "confirm must invalidate dashboard caches")

	// дашборд после подтверждения идёт к провайдеру, а не к старому кэшу
	d := s.DashboardInfo(ctx)
	require.True(t, d.LoggedIn)
	require.JSONEq(t, `{"uid":123,"uname":"tester"}`, string(d.UserInfo))
	require.NotNil(t, d.StorageInfo)
	require.EqualValues(t, 1, m.myInfoCalls.Load())

	// второй раз — из кэша
	_ = s.DashboardInfo(ctx)
	require.EqualValues(t, 1, m.myInfoCalls.Load())
}

func TestQrcodeImagePassthrough(t *testing.T) {
	s, _, _ := newTestSession(t, newFakeCache())
	img, err := s.GetQrcodeImage(context.Background(), "U-1")
	require.NoError(t, err)
	require.Equal(t, []byte("PNG-BYTES"), img)
}

func TestConfirmQrcodeUpstreamFailure(t *testing.T) {
	s, _, settings := newTestSession(t, newFakeCache())
	_, err := s.ConfirmQrcode(context.Background(), "WRONG-UID", "qandroid")
	require.Error(t, err)
	require.False(t, s.LoggedIn())
	_, ok := settings.rows[models.SettingP115Cookies]
	require.False(t, ok)
}

func TestLogoutIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t, newFakeCache())

	_, err := s.ConfirmQrcode(ctx, "U-1", "qandroid")
	require.NoError(t, err)
	require.True(t, s.LoggedIn())

	require.NoError(t, s.Logout(ctx))
	require.False(t, s.Status(ctx).LoggedIn)
	// повторный выход — no-op, не ошибка
	require.NoError(t, s.Logout(ctx))
	require.False(t, s.Status(ctx).LoggedIn)
}

func TestStatusReportsPersistedRecord(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t, newFakeCache())

	st := s.Status(ctx)
	require.False(t, st.LoggedIn)
	require.Empty(t, st.App)
	require.Nil(t, st.UpdatedAt)

	_, err := s.ConfirmQrcode(ctx, "U-1", "qandroid")
	require.NoError(t, err)

	st = s.Status(ctx)
	require.True(t, st.LoggedIn)
	require.Equal(t, "qandroid", st.App)
	require.NotNil(t, st.UpdatedAt)
}

func TestLoadFromDBRestoresHandle(t *testing.T) {
	ctx := context.Background()
	m := newMockProvider(t)
	settings := newFakeSettings()
	require.NoError(t, settings.Upsert(ctx, models.SettingP115Cookies, "UID=u; CID=c; SEID=s", "qandroid"))

	s := NewSession(NewClient(m.endpoints()), settings, newFakeCache(), 30*time.Minute)
	require.False(t, s.LoggedIn())
	s.LoadFromDB(ctx)
	require.True(t, s.LoggedIn())
}

func TestLoadFromDBWithoutRecordIsQuiet(t *testing.T) {
	s, _, _ := newTestSession(t, newFakeCache())
	s.LoadFromDB(context.Background()) // не должен ни паниковать, ни логиниться
	require.False(t, s.LoggedIn())
}

func TestDashboardShortCircuitWhenLoggedOut(t *testing.T) {
	s, m, _ := newTestSession(t, newFakeCache())

	d := s.DashboardInfo(context.Background())
	require.False(t, d.LoggedIn)
	require.Nil(t, d.UserInfo)
	require.Nil(t, d.StorageInfo)
	// без логина — ни одного похода к провайдеру
	require.EqualValues(t, 0, m.myInfoCalls.Load())
	require.EqualValues(t, 0, m.indexCalls.Load())
}

// Кэш лежит — данные всё равно приходят от провайдера, ошибка не
// просачивается наружу.
func TestCacheFailureDegradesToProvider(t *testing.T) {
	ctx := context.Background()
	s, m, _ := newTestSession(t, brokenCache{})

	_, err := s.ConfirmQrcode(ctx, "U-1", "qandroid")
	require.NoError(t, err)

	data := s.UserMyInfo(ctx)
	require.JSONEq(t, `{"uid":123,"uname":"tester"}`, string(data))
	require.EqualValues(t, 1, m.myInfoCalls.Load())

	// каждый вызов ходит к провайдеру: кэш недоступен
	_ = s.UserMyInfo(ctx)
	require.EqualValues(t, 2, m.myInfoCalls.Load())
}

func TestProviderFailureDegradesToNoData(t *testing.T) {
	ctx := context.Background()
	m := newMockProvider(t)
	settings := newFakeSettings()
	s := NewSession(NewClient(m.endpoints()), settings, newFakeCache(), 30*time.Minute)

	// хэндл без cookie: /user/my_info ответит state=0
	s.setHandle(s.base)

	require.Nil(t, s.UserMyInfo(ctx))
}

func TestJoinCookieDeterministic(t *testing.T) {
	got := joinCookie(map[string]string{"SEID": "3", "UID": "1", "CID": "2"})
	require.Equal(t, "CID=2; SEID=3; UID=1", got)
}

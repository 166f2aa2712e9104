package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"loofcloud/internal/models"
	"loofcloud/internal/repo"
	"loofcloud/internal/security"
)

// fakeUsers — in-memory Store c уникальностью username, как в БД.
type fakeUsers struct {
	rows map[string]*models.User // id → user
}

func newFakeUsers() *fakeUsers { return &fakeUsers{rows: map[string]*models.User{}} }

func (f *fakeUsers) ByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.rows[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) ByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range f.rows {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeUsers) List(_ context.Context) ([]models.User, error) {
	out := make([]models.User, 0, len(f.rows))
	for _, u := range f.rows {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	for _, row := range f.rows {
		if row.Username == u.Username {
			return repo.ErrUsernameTaken
		}
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	f.rows[u.ID] = &cp
	return nil
}

func (f *fakeUsers) Save(_ context.Context, u *models.User) error {
	for id, row := range f.rows {
		if id != u.ID && row.Username == u.Username {
			return repo.ErrUsernameTaken
		}
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	f.rows[u.ID] = &cp
	return nil
}

func (f *fakeUsers) CountAdmins(_ context.Context) (int64, error) {
	var n int64
	for _, u := range f.rows {
		if u.Role == models.RoleAdmin {
			n++
		}
	}
	return n, nil
}

func newTestService(t *testing.T) (*Service, *fakeUsers) {
	t.Helper()
	users := newFakeUsers()
	tokens := security.NewTokens(security.NewKeeper([]byte("test-secret")), time.Hour)
	return New(users, tokens), users
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, "alice", "pw-1", models.RoleUser, true)
	require.NoError(t, err)

	tok, err := svc.Authenticate(ctx, "alice", "pw-1")
	require.NoError(t, err)

	got, err := svc.Resolve(ctx, tok)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
}

// Несуществующий пользователь, неверный пароль и выключенный пользователь
// снаружи неразличимы.
func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "alice", "pw-1", models.RoleUser, true)
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, "bob", "pw-2", models.RoleUser, false)
	require.NoError(t, err)

	_, errMissing := svc.Authenticate(ctx, "nobody", "pw")
	_, errWrongPw := svc.Authenticate(ctx, "alice", "wrong")
	_, errInactive := svc.Authenticate(ctx, "bob", "pw-2") // пароль верный, но выключен

	require.ErrorIs(t, errMissing, ErrBadCredentials)
	require.ErrorIs(t, errWrongPw, ErrBadCredentials)
	require.ErrorIs(t, errInactive, ErrBadCredentials)
	require.Equal(t, errMissing.Error(), errWrongPw.Error())
	require.Equal(t, errWrongPw.Error(), errInactive.Error())
}

// Непросроченный токен деактивированного пользователя отклоняется при
// следующем Resolve.
func TestResolveRejectsDeactivatedUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, "carol", "pw", models.RoleUser, true)
	require.NoError(t, err)
	tok, err := svc.Authenticate(ctx, "carol", "pw")
	require.NoError(t, err)

	off := false
	_, err = svc.UpdateUser(ctx, u.ID, UpdateInput{IsActive: &off})
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, tok)
	require.ErrorIs(t, err, ErrUserDisabled)
}

func TestResolveUnknownSubject(t *testing.T) {
	svc, _ := newTestService(t)
	tokens := security.NewTokens(security.NewKeeper([]byte("test-secret")), time.Hour)
	tok, err := tokens.Create("no-such-id")
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), tok)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestRequireAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.RequireAdmin(&models.User{Role: models.RoleAdmin}))
	require.ErrorIs(t, svc.RequireAdmin(&models.User{Role: models.RoleUser}), ErrAdminRequired)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "dup", "pw", models.RoleUser, true)
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, "dup", "pw", models.RoleUser, true)
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestEnsureDefaultAdminIdempotent(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureDefaultAdmin(ctx))
	require.NoError(t, svc.EnsureDefaultAdmin(ctx))

	n, err := users.CountAdmins(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	admin, err := users.ByUsername(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, admin.Role)
	require.True(t, admin.IsActive)
}

func TestUpdateSelfDoesNotTouchRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, "dave", "pw", models.RoleUser, true)
	require.NoError(t, err)

	name := "dave2"
	pw := "pw2"
	got, err := svc.UpdateSelf(ctx, u, &name, &pw)
	require.NoError(t, err)
	require.Equal(t, "dave2", got.Username)
	require.Equal(t, models.RoleUser, got.Role)

	_, err = svc.Authenticate(ctx, "dave2", "pw2")
	require.NoError(t, err)
}

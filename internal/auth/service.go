package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"loofcloud/internal/logs"
	"loofcloud/internal/models"
	"loofcloud/internal/repo"
	"loofcloud/internal/security"
)

// Store — минимальный контракт хранилища пользователей, который нужен
// сервису (реализуется repo.UserStore; в тестах — фейком).
type Store interface {
	ByID(ctx context.Context, id string) (*models.User, error)
	ByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, u *models.User) error
	Save(ctx context.Context, u *models.User) error
	CountAdmins(ctx context.Context) (int64, error)
}

// Service — выдача и проверка сессий плюс административные операции
// над пользователями.
type Service struct {
	users  Store
	tokens *security.Tokens
}

func New(users Store, tokens *security.Tokens) *Service {
	return &Service{users: users, tokens: tokens}
}

// Authenticate обменивает логин/пароль на access-токен.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrBadCredentials
		}
		return "", err
	}
	if !u.IsActive || !security.VerifyPassword(password, u.PasswordHash) {
		return "", ErrBadCredentials
	}
	return s.tokens.Create(u.ID)
}

// Resolve превращает токен в аутентифицированного пользователя.
// Через него проходит каждый защищённый запрос: is_active перечитывается
// каждый раз, поэтому токен выключенного пользователя отваливается при
// следующем обращении, хотя отзыв токенов как таковой не реализован.
func (s *Service) Resolve(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Decode(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	u, err := s.users.ByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrUserDisabled
	}
	return u, nil
}

// RequireAdmin — проверка роли поверх Resolve, никогда вместо него.
func (s *Service) RequireAdmin(u *models.User) error {
	if !u.IsAdmin() {
		return ErrAdminRequired
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.ByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// CreateUser заводит пользователя. Уникальность username держит
// уникальный индекс в БД, а не предварительная проверка.
func (s *Service) CreateUser(ctx context.Context, username, password, role string, isActive bool) (*models.User, error) {
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin {
		role = models.RoleUser
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     isActive,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return u, nil
}

// UpdateInput — частичное обновление: nil-поля не трогаем.
type UpdateInput struct {
	Username *string
	Password *string
	Role     *string
	IsActive *bool
}

// UpdateUser — административное обновление любого пользователя.
func (s *Service) UpdateUser(ctx context.Context, id string, in UpdateInput) (*models.User, error) {
	u, err := s.users.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if err := s.apply(u, in); err != nil {
		return nil, err
	}
	if err := s.users.Save(ctx, u); err != nil {
		if errors.Is(err, repo.ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return u, nil
}

// UpdateSelf — пользователь меняет себе имя/пароль; роль и is_active
// самому себе менять нельзя.
func (s *Service) UpdateSelf(ctx context.Context, u *models.User, username, password *string) (*models.User, error) {
	return s.UpdateUser(ctx, u.ID, UpdateInput{Username: username, Password: password})
}

func (s *Service) apply(u *models.User, in UpdateInput) error {
	if in.Username != nil {
		u.Username = *in.Username
	}
	if in.Password != nil {
		hash, err := security.HashPassword(*in.Password)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
	}
	if in.Role != nil {
		if *in.Role == models.RoleAdmin {
			u.Role = models.RoleAdmin
		} else {
			u.Role = models.RoleUser
		}
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	return nil
}

// EnsureDefaultAdmin — идемпотентный бутстрап: если админов нет,
// создаётся admin со случайным паролем. Пароль пишется в лог ровно один
// раз и больше нигде не восстановим.
func (s *Service) EnsureDefaultAdmin(ctx context.Context) error {
	n, err := s.users.CountAdmins(ctx)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return nil
	}
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return err
	}
	password := base64.RawURLEncoding.EncodeToString(raw[:])
	if _, err := s.CreateUser(ctx, "admin", password, models.RoleAdmin, true); err != nil {
		// параллельный процесс мог успеть первым
		if errors.Is(err, ErrUsernameTaken) {
			return nil
		}
		return err
	}
	logs.Component("auth").Infof("default admin created: username=admin password=%s (change it after first login)", password)
	return nil
}

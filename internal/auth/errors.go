package auth

import "errors"

// Тексты ошибок — машинно-проверяемые коды API, фронтенд опирается на
// них как на константы. Не менять.
var (
	// Логин: несуществующий пользователь, выключенный пользователь и
	// неверный пароль снаружи неразличимы.
	ErrBadCredentials = errors.New("用户名或密码错误")

	ErrTokenInvalid  = errors.New("无效令牌")
	ErrUserNotFound  = errors.New("用户不存在")
	ErrUserDisabled  = errors.New("用户已禁用")
	ErrAdminRequired = errors.New("需要管理员权限")

	ErrUsernameTaken = errors.New("用户名已存在")
)

package security

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// prehash нормализует пароль произвольной длины до 64 hex-символов:
// bcrypt обрезает вход на 72 байтах, sha256 убирает это ограничение.
func prehash(plain string) []byte {
	sum := sha256.Sum256([]byte(plain))
	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum[:])
	return out
}

// HashPassword возвращает bcrypt-дайджест пароля. Соль генерируется
// на каждый вызов и встроена в сам дайджест.
func HashPassword(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword(prehash(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyPassword сравнивает пароль с дайджестом. Любой битый дайджест —
// просто false, без ошибки.
func VerifyPassword(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), prehash(plain)) == nil
}

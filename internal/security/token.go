package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims — подписываемый набор утверждений: subject (id пользователя)
// и абсолютный срок действия.
type Claims struct {
	jwt.RegisteredClaims
}

// Tokens — кодек access-токенов. Ключ подписи берётся из Keeper на
// каждый вызов, а не из конфига.
type Tokens struct {
	keeper *Keeper
	ttl    time.Duration
}

func NewTokens(keeper *Keeper, ttl time.Duration) *Tokens {
	return &Tokens{keeper: keeper, ttl: ttl}
}

// Create подписывает токен с дефолтным TTL.
func (t *Tokens) Create(subject string) (string, error) {
	return t.CreateWithTTL(subject, t.ttl)
}

func (t *Tokens) CreateWithTTL(subject string, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(t.keeper.Current())
}

// Decode проверяет подпись и срок действия. Просроченный токен и битый/
// неверно подписанный различаются — это нужно диагностике, наверху оба
// схлопываются в 401.
func (t *Tokens) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (interface{}, error) {
		return t.keeper.Current(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

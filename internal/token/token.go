// token выпускает и проверяет access-токены (JWT, HMAC).
//
// Ключ подписи и алгоритм передаются явно через Config при создании Codec;
// после создания Codec неизменяем и безопасен для конкурентного использования.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SchemaVersion - текущая версия схемы полезной нагрузки.
const SchemaVersion = 1

var (
	// ErrInvalidSignature - подпись не совпала, структура токена повреждена
	// или полезная нагрузка не соответствует схеме.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrTokenExpired - срок действия токена истёк.
	ErrTokenExpired = errors.New("token expired")
	// ErrEmptySecret - не задан ключ подписи.
	ErrEmptySecret = errors.New("empty signing secret")
	// ErrUnsupportedAlgorithm - алгоритм не из семейства HMAC.
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")
)

// Config - параметры подписи.
type Config struct {
	Secret    string
	Algorithm string
}

// Claims - версионированная полезная нагрузка access-токена.
type Claims struct {
	Version int `json:"ver"`
	jwt.RegisteredClaims
}

// Payload - проверенные данные токена.
type Payload struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// Option настраивает Codec.
type Option func(*Codec)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// Codec выпускает и проверяет access-токены.
type Codec struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	parser *jwt.Parser
	now    func() time.Time
}

// New валидирует конфигурацию и создаёт Codec.
func New(cfg Config, opts ...Option) (*Codec, error) {
	const op = "token.New"

	if cfg.Secret == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptySecret)
	}

	alg := cfg.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}

	var method *jwt.SigningMethodHMAC
	switch alg {
	case jwt.SigningMethodHS256.Alg():
		method = jwt.SigningMethodHS256
	case jwt.SigningMethodHS384.Alg():
		method = jwt.SigningMethodHS384
	case jwt.SigningMethodHS512.Alg():
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnsupportedAlgorithm, alg)
	}

	c := &Codec{
		secret: []byte(cfg.Secret),
		method: method,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)

	return c, nil
}

// Issue подписывает токен {ver, sub=userID, iat=now, exp=now+ttl}.
// Возвращает строку токена и момент его истечения (с точностью до секунды, как в exp).
func (c *Codec) Issue(userID uuid.UUID, ttl time.Duration) (string, time.Time, error) {
	const op = "token.Issue"

	now := c.now().UTC()
	exp := jwt.NewNumericDate(now.Add(ttl))

	claims := Claims{
		Version: SchemaVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp.Time, nil
}

// Verify проверяет подпись, затем срок действия и схему.
// Подпись проверяется раньше срока: подделанный просроченный токен даёт ErrInvalidSignature.
func (c *Codec) Verify(tokenStr string) (Payload, error) {
	const op = "token.Verify"

	var claims Claims
	_, err := c.parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Payload{}, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return Payload{}, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	if claims.Version != SchemaVersion {
		return Payload{}, fmt.Errorf("%s: %w: schema version %d", op, ErrInvalidSignature, claims.Version)
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Payload{}, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	return Payload{UserID: uid, ExpiresAt: claims.ExpiresAt.Time}, nil
}

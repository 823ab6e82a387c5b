package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultIssuer выставляется в поле iss выпущенных токенов
	DefaultIssuer = "geocoin"
	// DefaultTTL срок действия токена по умолчанию
	DefaultTTL = 24 * time.Hour
	// minSecretLen минимальная длина ключа HS256 в байтах
	minSecretLen = 32
)

var (
	// ErrInvalidToken возвращается для поддельного, просроченного или чужого токена
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrWeakSecret возвращается для ключа короче 32 байт
	ErrWeakSecret = errors.New("auth: secret key must be at least 32 bytes")
)

// Claims содержит утверждения токена игрока
type Claims struct {
	Player string `json:"player"`
	jwt.RegisteredClaims
}

// Signer выпускает и проверяет токены доступа к API сессии
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner создаёт Signer по ключу в base64
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("auth: decode secret: %w", err)
	}
	if len(decoded) < minSecretLen {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{secret: decoded, issuer: DefaultIssuer, ttl: ttl, now: time.Now}, nil
}

// Issue выпускает токен для игрока
func (s *Signer) Issue(player string) (string, error) {
	now := s.now()
	claims := &Claims{
		Player: player,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   player,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Validate проверяет подпись, срок действия и издателя токена
func (s *Signer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateSecret генерирует новый ключ в base64
func GenerateSecret() (string, error) {
	b := make([]byte, minSecretLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generate secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

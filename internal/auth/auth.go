package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/helionsec/helion/internal/config"
)

const (
	bcryptCost = 12

	usernameMinLen = 1
	usernameMaxLen = 255
	passwordMinLen = 8
	passwordMaxLen = 128
)

// ErrInvalidToken is returned for malformed, mis-signed or expired tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the payload carried in an access token.
type Claims struct {
	Subject string
	Role    string
}

// HashPassword hashes a plain-text password for storage.
func HashPassword(plain string) (string, error) {
	// bcrypt ignores input past 72 bytes; truncate explicitly so length
	// validation and hashing agree.
	pw := []byte(plain)
	if len(pw) > 72 {
		pw = pw[:72]
	}
	hash, err := bcrypt.GenerateFromPassword(pw, bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plain matches the stored hash.
func VerifyPassword(plain, hashed string) bool {
	pw := []byte(plain)
	if len(pw) > 72 {
		pw = pw[:72]
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), pw) == nil
}

// CreateAccessToken issues a signed HS256 JWT carrying sub, role, iat and exp.
func CreateAccessToken(cfg config.AuthConfig, subject, role string) (string, error) {
	now := time.Now()
	expire := now.Add(time.Duration(cfg.ExpireMinutes) * time.Minute)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  now.Unix(),
		"exp":  expire.Unix(),
	})
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// DecodeAccessToken validates a token and returns its claims.
func DecodeAccessToken(cfg config.AuthConfig, tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}
	return &Claims{Subject: sub, Role: role}, nil
}

// ValidateCredentials checks username and password length bounds before
// hashing or lookup.
func ValidateCredentials(username, password string) error {
	u := strings.TrimSpace(username)
	if len(u) < usernameMinLen || len(u) > usernameMaxLen {
		return fmt.Errorf("username must be between %d and %d characters", usernameMinLen, usernameMaxLen)
	}
	if len(password) < passwordMinLen || len(password) > passwordMaxLen {
		return fmt.Errorf("password must be between %d and %d characters", passwordMinLen, passwordMaxLen)
	}
	return nil
}

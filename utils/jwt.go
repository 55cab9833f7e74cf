package utils

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	redis "github.com/redis/go-redis/v9"

	"rescuehub/logger"
)

// RedisClient is the optional revocation store. It stays nil when no Redis
// address is configured and revocation checks are skipped.
var RedisClient *redis.Client

// InitRedis connects the revocation store. A failed ping leaves RedisClient
// nil rather than failing startup.
func InitRedis(ctx context.Context, addr, pass string, db int) {
	if addr == "" {
		return
	}
	rc := redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
	if err := rc.Ping(ctx).Err(); err != nil {
		logger.Warn("[auth] redis ping failed, token revocation disabled: %v", err)
		_ = rc.Close()
		return
	}
	RedisClient = rc
}

type contextKey string

const (
	UserIDKey    = contextKey("userID")
	UserNameKey  = contextKey("userName")
	RequestIDKey = contextKey("requestID")
)

const revokedPrefix = "jwt:blacklist:"

// TokenConfig holds the shared secret and expected registered claims.
type TokenConfig struct {
	Secret   string
	Audience string
	Issuer   string
}

// AccessClaims is the payload issued by the identity provider.
type AccessClaims struct {
	UserID uint   `json:"id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

// GenerateAccessToken issues an HS256 token for userID. The server never
// calls this itself; it exists for development tooling and tests.
func GenerateAccessToken(cfg TokenConfig, userID uint, name string, expiry time.Duration) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("JWT secret is not set")
	}
	jti, err := generateJTI(16)
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := AccessClaims{
		UserID: userID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
			Issuer:    cfg.Issuer,
		},
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

// ValidateAccessToken checks signature, exp/nbf, audience and issuer, then
// consults the revocation store when one is configured.
func ValidateAccessToken(ctx context.Context, cfg TokenConfig, tokenStr string) (*AccessClaims, error) {
	if cfg.Secret == "" {
		return nil, errors.New("JWT secret is not set")
	}
	opts := []jwt.ParserOption{
		// Exact HS256 only, to avoid algorithm confusion.
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}

	if claims.ID != "" && RedisClient != nil {
		res, err := RedisClient.Get(ctx, revokedPrefix+claims.ID).Result()
		if err == nil && res == "1" {
			return nil, ErrTokenRevoked
		}
		// redis errors do not fail authentication
	}
	return claims, nil
}

// RevokeJTI blacklists a token id until ttl elapses.
func RevokeJTI(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errors.New("empty jti")
	}
	if RedisClient == nil {
		return errors.New("no revocation store configured")
	}
	return RedisClient.Set(ctx, revokedPrefix+jti, "1", ttl).Err()
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	return tok, tok != ""
}

func generateJTI(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GetUserID returns the authenticated user id from the request context.
func GetUserID(r *http.Request) (uint, bool) {
	id, ok := r.Context().Value(UserIDKey).(uint)
	return id, ok && id != 0
}

// GetUserName returns the display name carried by the caller's token.
func GetUserName(r *http.Request) string {
	name, _ := r.Context().Value(UserNameKey).(string)
	return name
}

// RequestID returns the request id stored by the request-id middleware.
func RequestID(ctx context.Context) string {
	rid, _ := ctx.Value(RequestIDKey).(string)
	return rid
}

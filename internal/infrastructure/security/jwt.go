package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/scoutme/scoutme-api/internal/core/domain"
	"github.com/scoutme/scoutme-api/internal/core/ports"
)

var (
	ErrMissingSecret = errors.New("jwt: access and refresh secrets are required")
	ErrSharedSecret  = errors.New("jwt: access and refresh secrets must differ")
)

type accessClaims struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	UserType string `json:"userType"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Codec implements ports.TokenCodec with HS256 and one secret per token class.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

// CodecOption customises a Codec.
type CodecOption func(*Codec)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// NewCodec fails when either secret is empty or both are the same.
func NewCodec(accessSecret, refreshSecret string, opts ...CodecOption) (*Codec, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, ErrMissingSecret
	}
	if accessSecret == refreshSecret {
		return nil, ErrSharedSecret
	}
	c := &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) SignAccess(in ports.AccessClaims) (string, error) {
	claims := accessClaims{
		UserID:           in.UserID,
		Email:            in.Email,
		UserType:         string(in.UserType),
		RegisteredClaims: c.registered(in.UserID, domain.AccessTokenTTL),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (c *Codec) SignRefresh(userID string) (string, error) {
	claims := refreshClaims{
		UserID:           userID,
		RegisteredClaims: c.registered(userID, domain.RefreshTokenTTL),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

func (c *Codec) VerifyAccess(token string) (*ports.AccessClaims, error) {
	var claims accessClaims
	if err := c.parse(token, &claims, c.accessSecret); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrAccessTokenExpired
		}
		return nil, domain.ErrInvalidAccessToken
	}
	if claims.UserID == "" {
		return nil, domain.ErrInvalidAccessToken
	}
	return &ports.AccessClaims{
		UserID:   claims.UserID,
		Email:    claims.Email,
		UserType: domain.UserType(claims.UserType),
	}, nil
}

func (c *Codec) VerifyRefresh(token string) (string, error) {
	var claims refreshClaims
	if err := c.parse(token, &claims, c.refreshSecret); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domain.ErrRefreshTokenExpired
		}
		return "", domain.ErrInvalidRefreshToken
	}
	if claims.UserID == "" {
		return "", domain.ErrInvalidRefreshToken
	}
	return claims.UserID, nil
}

func (c *Codec) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := c.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (c *Codec) parse(token string, claims jwt.Claims, secret []byte) error {
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	return err
}

package devserver

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	accessTokenExpiry  = 1 * time.Hour
	refreshTokenExpiry = 7 * 24 * time.Hour
)

// tokenIssuer mints and validates the dev server's HS256 token pairs.
type tokenIssuer struct {
	secret  []byte
	nowTime func() time.Time
}

func newTokenIssuer(secret string) *tokenIssuer {
	return &tokenIssuer{
		secret:  []byte(secret),
		nowTime: time.Now,
	}
}

// pair mints an access/refresh token pair for acc.
func (i *tokenIssuer) pair(acc *account) (string, string, error) {
	access, err := i.mint(acc, tokenTypeAccess, accessTokenExpiry)
	if err != nil {
		return "", "", err
	}
	refresh, err := i.mint(acc, tokenTypeRefresh, refreshTokenExpiry)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (i *tokenIssuer) mint(acc *account, tokenType string, expiry time.Duration) (string, error) {
	now := i.nowTime()
	claims := jwt.MapClaims{
		"sub":        acc.ID,
		"email":      acc.Email,
		"token_type": tokenType,
		"iat":        now.Unix(),
		"exp":        now.Add(expiry).Unix(),
		"jti":        uuid.New().String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", errors.Wrapf(err, "[tokenIssuer.mint] signing %s token", tokenType)
	}
	return signed, nil
}

// validate checks signature, expiry and token type, returning the subject.
func (i *tokenIssuer) validate(raw, wantType string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.nowTime),
		jwt.WithExpirationRequired(),
	).ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return "", errors.Wrap(err, "[tokenIssuer.validate] parsing token")
	}

	if tokenType, _ := claims["token_type"].(string); tokenType != wantType {
		return "", errors.Errorf("[tokenIssuer.validate] expected a %s token", wantType)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", errors.New("[tokenIssuer.validate] token carries no subject")
	}
	return subject, nil
}

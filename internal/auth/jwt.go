package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every validation failure. Expired, malformed, and
// wrong-kind tokens are deliberately indistinguishable to the caller.
var ErrInvalidToken = errors.New("token invalid or expired")

type JWTAuthenticator struct {
	secret        string
	aud           string
	iss           string
	accessExp     time.Duration
	activationExp time.Duration
}

func NewJWTAuthenticator(secret, aud, iss string, accessExp, activationExp time.Duration) *JWTAuthenticator {
	return &JWTAuthenticator{
		secret:        secret,
		aud:           aud,
		iss:           iss,
		accessExp:     accessExp,
		activationExp: activationExp,
	}
}

// GenerateAccessToken issues a short-lived session token carrying the
// username as subject and the user's role keys as authorities.
func (a *JWTAuthenticator) GenerateAccessToken(username string, roles []string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   username,
		"roles": roles,
		"type":  AccessTokenType,
		"exp":   now.Add(a.accessExp).Unix(),
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"iss":   a.iss,
		"aud":   a.aud,
	}
	return a.generateTokenWithClaims(claims)
}

// GenerateActivationToken issues a single-purpose token binding the user id,
// consumed once by the activate-account flow.
func (a *JWTAuthenticator) GenerateActivationToken(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"type": ActivationTokenType,
		"exp":  now.Add(a.activationExp).Unix(),
		"iat":  now.Unix(),
		"iss":  a.iss,
	}
	return a.generateTokenWithClaims(claims)
}

func (a *JWTAuthenticator) generateTokenWithClaims(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.secret))
}

// ValidateAccessToken verifies signature and expiration, then requires the
// "type" claim to be "access".
func (a *JWTAuthenticator) ValidateAccessToken(token string) (*jwt.Token, error) {
	return a.validateToken(token, AccessTokenType)
}

// ValidateActivationToken verifies signature and expiration, then requires
// the "type" claim to be "activation".
func (a *JWTAuthenticator) ValidateActivationToken(token string) (*jwt.Token, error) {
	return a.validateToken(token, ActivationTokenType)
}

func (a *JWTAuthenticator) validateToken(token, tokenType string) (*jwt.Token, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.secret), nil
	}, jwt.WithExpirationRequired(), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || claims["type"] != tokenType {
		return nil, ErrInvalidToken
	}
	return parsed, nil
}

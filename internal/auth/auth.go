package auth

import "github.com/golang-jwt/jwt/v5"

// Token kinds carried in the "type" claim. Access tokens represent a login
// session; activation tokens are single-purpose and gate account activation.
const (
	AccessTokenType     = "access"
	ActivationTokenType = "activation"
)

type Authenticator interface {
	GenerateAccessToken(username string, roles []string) (string, error)
	GenerateActivationToken(userID int64) (string, error)
	ValidateAccessToken(token string) (*jwt.Token, error)
	ValidateActivationToken(token string) (*jwt.Token, error)
}

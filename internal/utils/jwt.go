package utils // package utils provides helper functions for token creation

import (
    "errors"
    "strings"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for email carrying roles in
// the Keycloak layout (realm_access.roles) that JWTAuth understands.
// Production tokens come from the identity provider; this is used by
// seatctl and tests to mint equivalent ones.
func NewAccessToken(secret, email string, roles []string, ttl time.Duration) (AccessToken, error) {
    email = strings.ToLower(strings.TrimSpace(email))
    if secret == "" || email == "" {
        return AccessToken{}, errors.New("secret and email are required")
    }
    now := time.Now().UTC()
    exp := now.Add(ttl)
    realmRoles := make([]any, 0, len(roles))
    for _, r := range roles {
        realmRoles = append(realmRoles, r)
    }
    claims := jwt.MapClaims{
        "sub":          email,
        "email":        email,
        "realm_access": map[string]any{"roles": realmRoles},
        "exp":          exp.Unix(),
        "iat":          now.Unix(),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates an HS256 Bearer token
// and injects the caller's email and roles into the request context.
// Tokens are issued by the identity provider; this service only verifies
// them.  The email comes from the "email" claim, falling back to
// "preferred_username" and "sub".  Roles are read from a "role" string, a
// "roles" array or Keycloak's "realm_access.roles".
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }
            email := firstString(claims, "email", "preferred_username", "sub")
            if email == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token has no email"})
            }

            c.Set(ContextEmail, strings.ToLower(email))
            c.Set(ContextRoles, rolesOf(claims))
            return next(c)
        }
    }
}

func firstString(claims jwt.MapClaims, keys ...string) string {
    for _, k := range keys {
        if s, ok := claims[k].(string); ok && s != "" {
            return s
        }
    }
    return ""
}

func rolesOf(claims jwt.MapClaims) []string {
    var roles []string
    if r, ok := claims["role"].(string); ok && r != "" {
        roles = append(roles, r)
    }
    roles = append(roles, stringList(claims["roles"])...)
    if realm, ok := claims["realm_access"].(map[string]interface{}); ok {
        roles = append(roles, stringList(realm["roles"])...)
    }
    return roles
}

func stringList(v interface{}) []string {
    items, ok := v.([]interface{})
    if !ok {
        return nil
    }
    out := make([]string, 0, len(items))
    for _, it := range items {
        if s, ok := it.(string); ok && s != "" {
            out = append(out, s)
        }
    }
    return out
}

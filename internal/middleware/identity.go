package middleware

// identity.go holds the context keys written by JWTAuth and the helpers
// handlers use to read the caller's identity back.

import (
    "strings"

    "github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
    ContextEmail = "email"
    ContextRoles = "roles"
)

// Email returns the authenticated caller's email, or "" for anonymous requests.
func Email(c echo.Context) string {
    s, _ := c.Get(ContextEmail).(string)
    return s
}

// Roles returns the caller's roles as found in the token.
func Roles(c echo.Context) []string {
    r, _ := c.Get(ContextRoles).([]string)
    return r
}

// HasRole reports whether the caller carries role, ignoring case.
func HasRole(c echo.Context, role string) bool {
    for _, r := range Roles(c) {
        if strings.EqualFold(r, role) {
            return true
        }
    }
    return false
}

// callerKey identifies the caller for rate limiting and caching.
func callerKey(c echo.Context) string {
    if e := Email(c); e != "" {
        return e
    }
    return "anon"
}

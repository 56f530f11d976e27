package middleware // middleware holds the echo middleware shared by every route group

import (
    "net/http"
    "strconv"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// Roles carried in the access token's role claim.
const (
    RoleCustomer = "CUSTOMER"
    RoleOwner    = "OWNER"
    RoleAdmin    = "ADMIN"
)

// Context keys set by JWTAuth.
const (
    ctxUserID = "user_id"
    ctxRole   = "role"
)

// Claims is the access token payload.  Subject holds the decimal user id.
type Claims struct {
    Role string `json:"role"`
    jwt.RegisteredClaims
}

// JWTAuth validates an HS256 Bearer token and stores the numeric user id
// and the role in the echo context.  Authentication itself is an external
// concern; this service only verifies tokens signed with secret.
func JWTAuth(secret string) echo.MiddlewareFunc {
    parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
    key := []byte(secret)
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get(echo.HeaderAuthorization)
            if !strings.HasPrefix(auth, "Bearer ") {
                return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
            }
            raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

            var claims Claims
            tok, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) { return key, nil })
            if err != nil || !tok.Valid {
                return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
            }
            uid, err := strconv.ParseUint(claims.Subject, 10, 64)
            if err != nil || uid == 0 {
                return echo.NewHTTPError(http.StatusUnauthorized, "invalid subject")
            }
            c.Set(ctxUserID, uid)
            c.Set(ctxRole, claims.Role)
            return next(c)
        }
    }
}

// UserID returns the authenticated user id set by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(ctxUserID).(uint64)
    return id, ok && id != 0
}

// Role returns the authenticated role, or "" for anonymous requests.
func Role(c echo.Context) string {
    r, _ := c.Get(ctxRole).(string)
    return r
}

// SetIdentity stores an identity the way JWTAuth does.  Handler tests use
// it to skip token signing.
func SetIdentity(c echo.Context, userID uint64, role string) {
    c.Set(ctxUserID, userID)
    c.Set(ctxRole, role)
}

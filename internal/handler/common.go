package handler // handler holds the echo handlers for public, customer and admin routes

import (
    "net/http"
    "reflect"
    "strconv"
    "strings"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/theater-seat-reservation/internal/apperror"
    "github.com/iliyamo/theater-seat-reservation/internal/middleware"
)

// Validator adapts go-playground/validator to echo.Validator.  Field names
// in errors are the JSON names.
type Validator struct {
    v *validator.Validate
}

func NewValidator() *Validator {
    v := validator.New(validator.WithRequiredStructEnabled())
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
        if name == "-" {
            return ""
        }
        return name
    })
    return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error { return cv.v.Struct(i) }

// bind decodes the request body into dst and validates it.  Malformed JSON
// is an InvalidRequest; validation errors keep their type so the error
// handler can list the fields.
func bind(c echo.Context, dst interface{}) error {
    if err := c.Bind(dst); err != nil {
        return apperror.Invalidf("invalid request body")
    }
    return c.Validate(dst)
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, apperror.Invalidf("invalid %s", name)
    }
    return id, nil
}

// currentUser returns the authenticated user id or a 401.
func currentUser(c echo.Context) (uint64, error) {
    uid, ok := middleware.UserID(c)
    if !ok {
        return 0, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
    }
    return uid, nil
}

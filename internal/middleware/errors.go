package middleware

import (
    "errors"
    "net/http"
    "strings"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/theater-seat-reservation/internal/apperror"
    "github.com/iliyamo/theater-seat-reservation/internal/layout"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
    Error     string            `json:"error"`
    Message   string            `json:"message"`
    Seats     []string          `json:"seats,omitempty"`
    Remaining *int              `json:"remaining,omitempty"`
    Fields    map[string]string `json:"fields,omitempty"`
}

// StatusOf maps an apperror kind to its HTTP status.
func StatusOf(k apperror.Kind) int {
    switch k {
    case apperror.NotFound:
        return http.StatusNotFound
    case apperror.InvalidRequest:
        return http.StatusBadRequest
    case apperror.Conflict:
        return http.StatusConflict
    case apperror.Unavailable:
        return http.StatusServiceUnavailable
    }
    return http.StatusInternalServerError
}

// ErrorHandler is installed as echo's HTTPErrorHandler.  Domain errors,
// validation errors and echo HTTP errors each get their own status; any
// other error is logged and answered with 500 without details.
func ErrorHandler(err error, c echo.Context) {
    if c.Response().Committed {
        return
    }
    status, body := renderError(err)
    if status == http.StatusInternalServerError {
        c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
    }
    if status == http.StatusServiceUnavailable {
        c.Response().Header().Set("Retry-After", "1")
    }
    if c.Request().Method == http.MethodHead {
        err = c.NoContent(status)
    } else {
        err = c.JSON(status, body)
    }
    if err != nil {
        c.Logger().Errorf("write error response: %v", err)
    }
}

func renderError(err error) (int, ErrorBody) {
    var ae *apperror.Error
    if errors.As(err, &ae) {
        status := StatusOf(ae.Kind)
        body := ErrorBody{Error: ae.Kind.String(), Message: ae.Message, Remaining: ae.Remaining}
        if status == http.StatusInternalServerError {
            body.Message = http.StatusText(status)
        }
        if status == http.StatusServiceUnavailable {
            body.Message = "storage temporarily unavailable, retry the request"
        }
        body.Seats = seatStrings(ae.Seats)
        return status, body
    }

    var ve validator.ValidationErrors
    if errors.As(err, &ve) {
        fields := make(map[string]string, len(ve))
        for _, fe := range ve {
            fields[fieldName(fe)] = fe.Tag()
        }
        return http.StatusBadRequest, ErrorBody{Error: "invalid_request", Message: "validation failed", Fields: fields}
    }

    var he *echo.HTTPError
    if errors.As(err, &he) {
        msg := http.StatusText(he.Code)
        if s, ok := he.Message.(string); ok {
            msg = s
        }
        return he.Code, ErrorBody{Error: strings.ReplaceAll(strings.ToLower(http.StatusText(he.Code)), " ", "_"), Message: msg}
    }
    return http.StatusInternalServerError, ErrorBody{Error: "internal", Message: http.StatusText(http.StatusInternalServerError)}
}

// fieldName drops the top-level struct name from the namespace, so
// "createBookingRequest.Seats[0].Row" becomes "seats[0].row".
func fieldName(fe validator.FieldError) string {
    ns := fe.Namespace()
    if i := strings.IndexByte(ns, '.'); i >= 0 {
        ns = ns[i+1:]
    }
    return strings.ToLower(ns)
}

func seatStrings(keys []layout.SeatKey) []string {
    if len(keys) == 0 {
        return nil
    }
    out := make([]string, len(keys))
    for i, k := range keys {
        out[i] = k.String()
    }
    return out
}

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/glutenguard/glutenguard/pkg/whttp"
)

var (
	// ErrLimitReached is returned when the backend reports that the free usage
	// limit has been used up.
	ErrLimitReached = errors.New("usage limit reached")

	// ErrMalformedResponse is returned when a success response cannot be
	// decoded into the expected shape.
	ErrMalformedResponse = errors.New("malformed response from analysis service")
)

// Error is a non-success response carrying a message for the user.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("analysis service returned HTTP %d", e.StatusCode)
	}
	return e.Message
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// responseError turns a non-2xx response into ErrLimitReached or an *Error.
func responseError(res *whttp.WHTTPRes) error {
	body := res.BodyString
	if gjson.Valid(body) {
		if gjson.Get(body, "limit_reached").Bool() {
			return ErrLimitReached
		}
		if msg := gjson.Get(body, "error").String(); msg != "" {
			return &Error{StatusCode: res.StatusCode, Message: msg}
		}
	}
	if res.StatusCode == http.StatusTooManyRequests {
		return ErrLimitReached
	}

	msg := res.HTTPTitle
	if msg == "" {
		msg = fmt.Sprintf("analysis service returned HTTP %d %s", res.StatusCode, http.StatusText(res.StatusCode))
	}
	return &Error{StatusCode: res.StatusCode, Message: msg}
}

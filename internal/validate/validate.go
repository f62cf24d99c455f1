package validate

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength   = 120
	MaxMessageLength = 2000
	MaxCaptionLength = 500
	MaxURLLength     = 2048
	MinPasswordLen   = 8
	MaxPasswordLen   = 72 // bcrypt input limit
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors is a list of field failures.
type Errors []*ValidationError

func (es Errors) Error() string {
	parts := make([]string, 0, len(es))
	for _, e := range es {
		parts = append(parts, e.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Err returns es as an error, or nil when empty.
func (es Errors) Err() error {
	if len(es) == 0 {
		return nil
	}
	return es
}

func (es *Errors) add(field, format string, args ...interface{}) {
	*es = append(*es, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// AsErrors extracts field failures from err.
func AsErrors(err error) (Errors, bool) {
	var es Errors
	if errors.As(err, &es) {
		return es, true
	}
	var one *ValidationError
	if errors.As(err, &one) {
		return Errors{one}, true
	}
	return nil, false
}

// User validates a user payload. Password is only checked when
// requirePassword is set or a password was supplied.
func User(username, email, password string, requirePassword bool) error {
	var es Errors
	if !usernameRe.MatchString(username) {
		es.add("username", "must be 3-32 characters of letters, digits, '.', '_' or '-'")
	}
	if strings.TrimSpace(email) == "" {
		es.add("email", "email is required")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		es.add("email", "invalid email address")
	}
	if requirePassword || password != "" {
		n := len(password)
		if n < MinPasswordLen || n > MaxPasswordLen {
			es.add("password", "must be %d-%d bytes", MinPasswordLen, MaxPasswordLen)
		}
	}
	return es.Err()
}

// Lock validates a lock payload.
func Lock(title, message string) error {
	var es Errors
	if strings.TrimSpace(title) == "" {
		es.add("title", "title is required")
	} else if utf8.RuneCountInString(title) > MaxTitleLength {
		es.add("title", "must be at most %d characters", MaxTitleLength)
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		es.add("message", "must be at most %d characters", MaxMessageLength)
	}
	return es.Err()
}

// Media validates a media payload.
func Media(rawURL, mediaType, caption string) error {
	var es Errors
	if rawURL == "" {
		es.add("url", "url is required")
	} else if len(rawURL) > MaxURLLength {
		es.add("url", "must be at most %d bytes", MaxURLLength)
	} else if u, err := url.Parse(rawURL); err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		es.add("url", "must be an absolute http(s) url")
	}
	switch mediaType {
	case "image", "video", "audio":
	default:
		es.add("mediaType", "must be one of image, video, audio")
	}
	if utf8.RuneCountInString(caption) > MaxCaptionLength {
		es.add("caption", "must be at most %d characters", MaxCaptionLength)
	}
	return es.Err()
}

// Order validates a reorder request body.
func Order(ids []int64) error {
	var es Errors
	if len(ids) == 0 {
		es.add("ids", "at least one id is required")
	}
	for i, id := range ids {
		if id <= 0 {
			es.add(fmt.Sprintf("ids[%d]", i), "must be positive")
		}
	}
	return es.Err()
}

// Page clamps pagination parameters.
func Page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

package nextdns

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrRateLimitExhausted is returned once a request has been rate limited more often than
	// the retry policy allows.
	ErrRateLimitExhausted = errors.New("rate limit retries exhausted")
	// ErrUpgradeRequired is returned when the API answers 426. It is never retried.
	ErrUpgradeRequired = errors.New("upgrade required")
)

// RemoteError is a non-2xx reply other than 426 and 429.
type RemoteError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, body)
}

// Code returns the first error code of a JSON error body.
func (e *RemoteError) Code() string {
	return gjson.Get(e.Body, "errors.0.code").String()
}

// NotFound reports whether the body carries a notFound error code.
func (e *RemoteError) NotFound() bool {
	if gjson.Get(e.Body, `errors.#(code=="notFound")`).Exists() {
		return true
	}
	return strings.Contains(e.Body, `"code":"notFound"`)
}

// NetworkError wraps transport failures where no reply was received.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a RemoteError with a notFound code.
func IsNotFound(err error) bool {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.NotFound()
	}
	return false
}

// Accepted applies the import rule to a 2xx body: it counts unless its errors array
// carries a code other than duplicate or conflict.
func Accepted(body string) bool {
	accepted := true
	gjson.Get(body, "errors").ForEach(func(_, item gjson.Result) bool {
		switch item.Get("code").String() {
		case "duplicate", "conflict":
			return true
		}
		accepted = false
		return false
	})
	return accepted
}

// ErrorText renders err the way the page shows it in button tooltips.
func ErrorText(err error) string {
	var remote *RemoteError
	if errors.As(err, &remote) {
		if msg := gjson.Get(remote.Body, "errors.0.detail").String(); msg != "" {
			return msg
		}
		if code := remote.Code(); code != "" {
			return code
		}
		if body := strings.TrimSpace(remote.Body); body != "" {
			return body
		}
	}
	return err.Error()
}

// Package httpclient holds the request plumbing shared by the HTTP sinks.
package httpclient

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxBodySnippet bounds the response text kept for diagnostics.
const MaxBodySnippet = 100

// maxBodyRead caps how much of a response is read at all.
const maxBodyRead = 64 << 10

// UserAgent identifies the relay to remote services.
const UserAgent = "wh2900-relay/1.0"

// New returns an HTTP client with a fixed overall timeout.
func New(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// StatusError reports a response whose status the sink does not accept.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Response is the part of a reply the sinks look at.
type Response struct {
	Code int
	Body string
}

// Do sends req and reads a bounded amount of the body. Transport errors name
// only the host, since upload URLs often carry credentials.
func Do(c *http.Client, req *http.Request) (Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}
	resp, err := c.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return Response{}, fmt.Errorf("%s %s: %w", req.Method, req.URL.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	return Response{Code: resp.StatusCode, Body: string(body)}, nil
}

// Reject builds the StatusError for r with a shortened body.
func (r Response) Reject() error {
	return &StatusError{Code: r.Code, Body: Snippet(r.Body)}
}

// Snippet trims s and cuts it to MaxBodySnippet runes.
func Snippet(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxBodySnippet {
		return s
	}
	return string([]rune(s)[:MaxBodySnippet])
}

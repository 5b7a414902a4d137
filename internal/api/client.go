package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hiredesk/internal/config"
	appLog "hiredesk/internal/log"
	"hiredesk/internal/session"
)

// ErrSessionExpired is returned when the backend marks the session as
// invalid inside an otherwise successful response body. The client has
// already cleared the local session by the time this is returned.
var ErrSessionExpired = errors.New("api: session expired")

// sessionExpiredMarker is the body-level error code the backend uses for
// auth/session failures. The backend signals application errors in the
// response body rather than via HTTP status codes; this convention is
// load-bearing for compatibility.
const sessionExpiredMarker = "session_expired"

// BackendError is a semantic failure reported inside a success-shaped
// HTTP response.
type BackendError struct {
	Code    string
	Message string
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return "api: backend error " + e.Code + ": " + e.Message
	}
	return "api: backend error " + e.Code
}

// envelope is the backend's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Client talks to the remote recruitment backend. The session store is
// injected explicitly: the token is read at request time and any
// session-expiry signal clears it, which is the one global side effect a
// request may have.
type Client struct {
	baseURL string
	role    string
	store   *session.Store
	http    *http.Client
}

// NewClient constructs a backend client for the given role. role must be
// config.RoleRecruiter or config.RoleApplicant; it selects which messaging
// route family is used and whether the actor is identified by header.
func NewClient(baseURL, role string, store *session.Store) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		role:    role,
		store:   store,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Role returns the actor role this client was built for.
func (c *Client) Role() string {
	return c.role
}

// do issues one request and decodes the enveloped response into out (which
// may be nil). There is no retry: every call is a one-shot attempt.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if tok := c.store.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if c.role == config.RoleApplicant {
		// The applicant route family identifies the actor by header
		// instead of session cookie.
		if id := c.store.Identity().UserID; id != "" {
			req.Header.Set("X-Applicant-ID", id)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("api: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("api: %s %s: unexpected status %s", method, path, resp.Status)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}

	if env.Error == sessionExpiredMarker {
		appLog.Info("backend signaled session expiry, clearing session", "path", path)
		if cerr := c.store.Clear(); cerr != nil {
			appLog.Error("failed to clear session after expiry signal", cerr)
		}
		return ErrSessionExpired
	}
	if !env.Success {
		return &BackendError{Code: env.Error, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("api: decode payload: %w", err)
		}
	}
	return nil
}

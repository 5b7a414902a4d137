package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appLog "hiredesk/internal/log"
	"hiredesk/internal/model"
)

// Store holds the session token and actor identity for the desk. It is the
// single place credentials live: the API client reads the token from here
// at request time, and a backend-signaled session failure clears it here,
// which is observable through Invalidated().
//
// State is persisted to a 0600 JSON file so a restart does not force a new
// login.
type Store struct {
	path string

	mu    sync.Mutex
	token string
	ident model.Identity

	// invalidated is signaled (non-blocking) whenever a populated store is
	// cleared. A single subscriber is expected.
	invalidated chan struct{}
}

// fileState is the on-disk representation of a session.
type fileState struct {
	Token    string         `json:"token"`
	Identity model.Identity `json:"identity"`
	SavedAt  time.Time      `json:"saved_at"`
}

// Open loads the session file at path if it exists, otherwise returns an
// empty (logged-out) store bound to that path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("session path is empty")
	}

	s := &Store{
		path:        path,
		invalidated: make(chan struct{}, 1),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}

	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		// A corrupt session file is treated as logged-out rather than
		// fatal; the user can simply log in again.
		appLog.Error("session file unreadable, starting logged out", err, "path", path)
		return s, nil
	}

	s.token = st.Token
	s.ident = st.Identity
	return s, nil
}

// Token returns the current bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Identity returns the current actor identity.
func (s *Store) Identity() model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ident
}

// LoggedIn reports whether a token is present.
func (s *Store) LoggedIn() bool {
	return s.Token() != ""
}

// SetCredentials stores a new token and identity and persists them.
func (s *Store) SetCredentials(token string, ident model.Identity) error {
	s.mu.Lock()
	s.token = token
	s.ident = ident
	s.mu.Unlock()

	if exp, ok := TokenExpiry(token); ok {
		appLog.Debug("session token stored", "user", ident.UserID, "expires", exp.Format(time.RFC3339))
	}
	return s.persist(token, ident)
}

// Clear wipes the session in memory and on disk and signals Invalidated().
// Clearing an already-empty store is a no-op.
func (s *Store) Clear() error {
	s.mu.Lock()
	wasLoggedIn := s.token != ""
	s.token = ""
	s.ident = model.Identity{}
	s.mu.Unlock()

	if !wasLoggedIn {
		return nil
	}

	// Single-subscriber notification; never block the caller.
	select {
	case s.invalidated <- struct{}{}:
	default:
	}

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Invalidated is signaled whenever a populated session is cleared, whether
// by backend session-expiry, inactivity logout, or explicit logout. The
// subscribing effect owns the resulting state transition (dropping the
// desk back to logged-out).
func (s *Store) Invalidated() <-chan struct{} {
	return s.invalidated
}

// persist writes the session atomically with 0600 permissions, following
// the same temp-file-then-rename discipline as the config writer.
func (s *Store) persist(token string, ident model.Identity) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(fileState{
		Token:    token,
		Identity: ident,
		SavedAt:  time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".hiredesk-session-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

// TokenExpiry extracts the exp claim from a JWT without verifying the
// signature. Verification is the backend's job; this is used only for
// diagnostics.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

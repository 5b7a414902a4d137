package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"hiredesk/internal/model"
)

func TestStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	st, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ident := model.Identity{UserID: "u1", Name: "Dana", Role: "recruiter"}
	if err := st.SetCredentials("tok-1", ident); err != nil {
		t.Fatalf("set: %v", err)
	}

	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if again.Token() != "tok-1" {
		t.Fatalf("token = %q after reopen", again.Token())
	}
	if again.Identity() != ident {
		t.Fatalf("identity = %+v after reopen", again.Identity())
	}
}

func TestClearSignalsOnce(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "session.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	// Clearing an empty store is a no-op, not a signal.
	if err := st.Clear(); err != nil {
		t.Fatalf("clear empty: %v", err)
	}
	select {
	case <-st.Invalidated():
		t.Fatal("empty clear signaled invalidation")
	default:
	}

	if err := st.SetCredentials("tok", model.Identity{UserID: "u1"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := st.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if st.LoggedIn() {
		t.Fatal("still logged in after clear")
	}
	select {
	case <-st.Invalidated():
	default:
		t.Fatal("clear did not signal invalidation")
	}
}

func TestTokenExpiry(t *testing.T) {
	// Header/payload {"alg":"none"} with exp 2000000000; the signature is
	// irrelevant since parsing is unverified.
	const token = "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9." +
		"eyJleHAiOjIwMDAwMDAwMDB9." +
		"x"

	exp, ok := TokenExpiry(token)
	if !ok {
		t.Fatal("expiry not extracted")
	}
	if exp.Unix() != 2000000000 {
		t.Fatalf("exp = %d", exp.Unix())
	}

	if _, ok := TokenExpiry("not-a-jwt"); ok {
		t.Fatal("expiry extracted from garbage")
	}
	if _, ok := TokenExpiry(""); ok {
		t.Fatal("expiry extracted from empty token")
	}
}

func TestWatchdogClearsIdleSession(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "session.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := st.SetCredentials("tok", model.Identity{UserID: "u1"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatchdog(st, 30*time.Millisecond)
	go w.Run(ctx)

	// Activity keeps the session alive past the idle window.
	for i := 0; i < 4; i++ {
		time.Sleep(15 * time.Millisecond)
		w.Touch()
	}
	if !st.LoggedIn() {
		t.Fatal("session cleared despite activity")
	}

	// Go idle; the watchdog must clear the session.
	deadline := time.After(500 * time.Millisecond)
	for st.LoggedIn() {
		select {
		case <-deadline:
			t.Fatal("idle session never cleared")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

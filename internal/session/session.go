// Package session keeps the logged-in user and one-shot flash messages in a
// gorilla/sessions store.
package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const userEmailKey = "user_email"

// Options are applied to every session cookie the manager issues.
type Options struct {
	MaxAgeSecs int
	Secure     bool
}

func (o Options) cookieOptions() *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   o.MaxAgeSecs,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// NewCookieStore keeps session values in a signed cookie. When secret is
// 48, 56 or 64 bytes long the first 32 sign and the remaining 16, 24 or 32
// encrypt with AES; any other length signs with the whole secret and leaves
// the values readable.
func NewCookieStore(secret []byte, opts Options) *sessions.CookieStore {
	keys := [][]byte{secret}
	switch len(secret) - 32 {
	case 16, 24, 32:
		keys = [][]byte{secret[:32], secret[32:]}
	}
	store := sessions.NewCookieStore(keys...)
	store.Options = opts.cookieOptions()
	return store
}

// Manager reads and writes the application's session.
type Manager struct {
	store sessions.Store
	name  string
}

// NewManager wraps store; name is the cookie name.
func NewManager(store sessions.Store, name string) *Manager {
	return &Manager{store: store, name: name}
}

// get loads the request's session. A cookie that fails to decode (tampered,
// expired or signed with a rotated key) yields a fresh anonymous session;
// every other failure is returned.
func (m *Manager) get(r *http.Request) (*sessions.Session, error) {
	s, err := m.store.Get(r, m.name)
	if err != nil && (s == nil || !isDecodeError(err)) {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return s, nil
}

func isDecodeError(err error) bool {
	var cookieErr securecookie.Error
	return errors.As(err, &cookieErr) && cookieErr.IsDecode()
}

// SetUser marks the request's session as logged in as email.
func (m *Manager) SetUser(w http.ResponseWriter, r *http.Request, email string) error {
	s, err := m.get(r)
	if err != nil {
		return err
	}
	s.Values[userEmailKey] = email
	return s.Save(r, w)
}

// CurrentEmail returns the logged-in email, or "" when there is none.
func (m *Manager) CurrentEmail(r *http.Request) (string, error) {
	s, err := m.get(r)
	if err != nil {
		return "", err
	}
	email, _ := s.Values[userEmailKey].(string)
	return email, nil
}

// Clear drops the login but keeps the cookie so a goodbye flash survives.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) error {
	s, err := m.get(r)
	if err != nil {
		return err
	}
	delete(s.Values, userEmailKey)
	return s.Save(r, w)
}

// AddFlash queues a message for the next rendered page.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, msg string) error {
	s, err := m.get(r)
	if err != nil {
		return err
	}
	s.AddFlash(msg)
	return s.Save(r, w)
}

// Flashes pops all queued messages.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) ([]string, error) {
	s, err := m.get(r)
	if err != nil {
		return nil, err
	}
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil, nil
	}
	msgs := make([]string, 0, len(raw))
	for _, v := range raw {
		if msg, ok := v.(string); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs, s.Save(r, w)
}

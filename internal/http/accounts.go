package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Clark-Hu/movie-ratings/internal/auth"
	"github.com/Clark-Hu/movie-ratings/internal/domain"
	"github.com/Clark-Hu/movie-ratings/internal/repository"
)

const (
	msgAccountCreated   = "Account created! Please log in."
	msgUserExists       = "This user already exists! Please try again"
	msgInvalidSignup    = "Please enter a valid email and password."
	msgPasswordMismatch = "Password mismatch! Please try again"
	msgLoggedOut        = "You have been logged out."
)

func (s *Server) handleHomepage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "homepage", "Welcome", nil)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form, err := parseCredentials(r.PostForm)
	if err != nil {
		s.redirectWithFlash(w, r, "/", msgInvalidSignup)
		return
	}

	hash, err := s.hasher.Hash(form.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			s.redirectWithFlash(w, r, "/", msgInvalidSignup)
			return
		}
		s.renderServerError(w, r, "hash password", err)
		return
	}
	user, err := domain.NewUser(form.Email, hash)
	if err != nil {
		s.redirectWithFlash(w, r, "/", msgInvalidSignup)
		return
	}

	if err := s.repo.Users.Create(r.Context(), &user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.redirectWithFlash(w, r, "/", msgUserExists)
			return
		}
		s.renderServerError(w, r, "create user", err)
		return
	}
	s.redirectWithFlash(w, r, "/", msgAccountCreated)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	back := refererPath(r)

	form, err := parseCredentials(r.PostForm)
	if err != nil {
		s.redirectWithFlash(w, r, back, msgPasswordMismatch)
		return
	}

	user, err := s.auth.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.redirectWithFlash(w, r, back, msgPasswordMismatch)
			return
		}
		s.renderServerError(w, r, "login", err)
		return
	}

	if err := s.sessions.SetUser(w, r, user.Email); err != nil {
		s.renderServerError(w, r, "start session", err)
		return
	}
	s.redirectWithFlash(w, r, "/movies",
		fmt.Sprintf("Thanks for being a MoveeBuff™, %s! Help us by rating some movies!", user.Email))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Clear(w, r); err != nil {
		s.renderServerError(w, r, "clear session", err)
		return
	}
	s.redirectWithFlash(w, r, "/", msgLoggedOut)
}

// refererPath returns the same-site path the request came from, or "/".
func refererPath(r *http.Request) string {
	ref := r.Referer()
	if ref == "" {
		return "/"
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != r.Host) {
		return "/"
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}

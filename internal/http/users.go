package httpserver

import (
	"errors"
	"net/http"

	"github.com/Clark-Hu/movie-ratings/internal/domain"
	"github.com/Clark-Hu/movie-ratings/internal/repository"
)

type userDetails struct {
	User    domain.User
	Ratings []domain.UserRating
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.repo.Users.List(r.Context())
	if err != nil {
		s.renderServerError(w, r, "list users", err)
		return
	}
	s.render(w, r, http.StatusOK, "users", "All users", users)
}

func (s *Server) handleUserDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		s.renderNotFound(w, r)
		return
	}

	user, err := s.repo.Users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.renderNotFound(w, r)
			return
		}
		s.renderServerError(w, r, "fetch user", err)
		return
	}

	ratings, err := s.repo.Ratings.ListByUser(r.Context(), user.ID)
	if err != nil {
		s.renderServerError(w, r, "list user ratings", err)
		return
	}
	s.render(w, r, http.StatusOK, "user_details", user.Email, userDetails{User: user, Ratings: ratings})
}

package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Clark-Hu/movie-ratings/internal/domain"
	"github.com/Clark-Hu/movie-ratings/internal/repository"
)

const (
	msgLoginToRate = "Please log in to rate movies."
	msgBadScore    = "Please try again with a number from 0-5."
)

func moviePath(id int64) string {
	return fmt.Sprintf("/movies/%d", id)
}

// handleRate applies a logged-in user's score to a movie: a first rating is
// created, the same score is a no-op and a different score replaces the old one.
func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	email, err := s.sessions.CurrentEmail(r)
	if err != nil {
		s.renderServerError(w, r, "load session", err)
		return
	}
	if email == "" {
		s.redirectWithFlash(w, r, "/", msgLoginToRate)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form, err := parseRatingForm(r.PostForm)
	switch {
	case errors.Is(err, errInvalidMovieID):
		s.renderNotFound(w, r)
		return
	case err != nil:
		ratingSubmissions.WithLabelValues("rejected").Inc()
		s.redirectWithFlash(w, r, moviePath(form.MovieID), msgBadScore)
		return
	}

	user, err := s.repo.Users.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Account gone since login.
			if err := s.sessions.Clear(w, r); err != nil {
				s.sessionFailure(w, err)
				return
			}
			s.redirectWithFlash(w, r, "/", msgLoginToRate)
			return
		}
		s.renderServerError(w, r, "fetch rater", err)
		return
	}

	movie, err := s.repo.Movies.GetByID(r.Context(), form.MovieID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.renderNotFound(w, r)
			return
		}
		s.renderServerError(w, r, "fetch movie", err)
		return
	}

	res, err := s.repo.Ratings.Submit(r.Context(), user.ID, movie.ID, form.Score)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrScoreOutOfRange):
			ratingSubmissions.WithLabelValues("rejected").Inc()
			s.redirectWithFlash(w, r, moviePath(movie.ID), msgBadScore)
		case errors.Is(err, repository.ErrNotFound):
			s.renderNotFound(w, r)
		default:
			s.renderServerError(w, r, "submit rating", err)
		}
		return
	}
	ratingSubmissions.WithLabelValues(res.Outcome.String()).Inc()

	s.redirectWithFlash(w, r, moviePath(movie.ID), rateMessage(res, movie.Title, email))
}

func rateMessage(res domain.RateResult, title, email string) string {
	score := res.Rating.Score
	switch res.Outcome {
	case domain.RateUnchanged:
		return fmt.Sprintf("No change to your previous rating of %d.", score)
	case domain.RateUpdated:
		if res.Previous == nil {
			return fmt.Sprintf("Updating your rating to %d.", score)
		}
		return fmt.Sprintf("Updating your rating from %d to %d.", *res.Previous, score)
	default:
		return fmt.Sprintf("Thank you for your rating of %d for %s, %s.", score, title, email)
	}
}

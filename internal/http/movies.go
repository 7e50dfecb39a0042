package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movie-ratings/internal/domain"
	"github.com/Clark-Hu/movie-ratings/internal/repository"
)

type movieDetails struct {
	Movie       domain.Movie
	Aggregate   domain.RatingAggregate
	Average     float64
	LoggedIn    bool
	ViewerScore *int
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := s.repo.Movies.List(r.Context())
	if err != nil {
		s.renderServerError(w, r, "list movies", err)
		return
	}
	s.render(w, r, http.StatusOK, "movies", "All movies", movies)
}

func (s *Server) handleMovieDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		s.renderNotFound(w, r)
		return
	}

	movie, err := s.repo.Movies.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.renderNotFound(w, r)
			return
		}
		s.renderServerError(w, r, "fetch movie", err)
		return
	}

	agg, err := s.repo.Ratings.Aggregate(r.Context(), movie.ID)
	if err != nil {
		s.renderServerError(w, r, "aggregate ratings", err)
		return
	}

	details := movieDetails{
		Movie:     movie,
		Aggregate: agg,
		Average:   roundToOneDecimal(agg.Average),
	}

	email, err := s.sessions.CurrentEmail(r)
	if err != nil {
		s.renderServerError(w, r, "load session", err)
		return
	}
	if email != "" {
		user, err := s.repo.Users.GetByEmail(r.Context(), email)
		switch {
		case err == nil:
			details.LoggedIn = true
			score, err := s.repo.Ratings.Score(r.Context(), user.ID, movie.ID)
			switch {
			case err == nil:
				details.ViewerScore = &score
			case !errors.Is(err, repository.ErrNotFound):
				s.renderServerError(w, r, "fetch own rating", err)
				return
			}
		case !errors.Is(err, repository.ErrNotFound):
			s.renderServerError(w, r, "fetch viewer", err)
			return
		}
	}

	s.render(w, r, http.StatusOK, "movie_details", movie.Title, details)
}

// idParam parses the {id} route parameter; non-positive ids never exist.
func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

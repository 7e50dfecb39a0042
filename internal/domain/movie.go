package domain

import (
	"fmt"
	"strings"
	"time"
)

// Movie represents the canonical movie entity in the database/service.
type Movie struct {
	ID          int64
	Title       string
	Overview    string
	ReleaseDate *time.Time
	PosterPath  *string
	CreatedAt   time.Time
}

// NewMovie builds an unsaved movie. Release date and poster are optional.
func NewMovie(title, overview string, releaseDate *time.Time, posterPath *string) (Movie, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Movie{}, fmt.Errorf("%w: title", ErrMissingField)
	}
	if strings.TrimSpace(overview) == "" {
		return Movie{}, fmt.Errorf("%w: overview", ErrMissingField)
	}
	if posterPath != nil && strings.TrimSpace(*posterPath) == "" {
		posterPath = nil
	}
	return Movie{
		Title:       title,
		Overview:    overview,
		ReleaseDate: releaseDate,
		PosterPath:  posterPath,
	}, nil
}

package domain

import (
	"errors"
	"fmt"
	"time"
)

const (
	MinScore = 0
	MaxScore = 5
)

// ErrScoreOutOfRange rejects scores outside [MinScore, MaxScore].
var ErrScoreOutOfRange = errors.New("domain: score out of range")

// Rating represents a single user's rating for a movie.
type Rating struct {
	ID        int64
	Score     int
	MovieID   int64
	UserID    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserRating is a rating joined with the rated movie's title.
type UserRating struct {
	Rating
	MovieTitle string
}

// RatingAggregate provides average and count for a movie's ratings.
// A movie without ratings has Count 0 and Average 0.
type RatingAggregate struct {
	Average float64
	Count   int64
}

// HasRatings reports whether Average is meaningful.
func (a RatingAggregate) HasRatings() bool {
	return a.Count > 0
}

// RateOutcome says what a rating submission did to the store.
type RateOutcome int

const (
	RateCreated RateOutcome = iota + 1
	RateUnchanged
	RateUpdated
)

func (o RateOutcome) String() string {
	switch o {
	case RateCreated:
		return "created"
	case RateUnchanged:
		return "unchanged"
	case RateUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// RateResult is returned by a rating submission. Previous is set when an
// existing score was replaced or left alone.
type RateResult struct {
	Rating   Rating
	Outcome  RateOutcome
	Previous *int
}

// ValidateScore checks the score range.
func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return fmt.Errorf("%w: %d", ErrScoreOutOfRange, score)
	}
	return nil
}

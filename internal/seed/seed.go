// Package seed fills an empty database with catalog movies, fixture users and
// random ratings.
package seed

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand/v2"

	"github.com/Clark-Hu/movie-ratings/internal/catalog"
	"github.com/Clark-Hu/movie-ratings/internal/domain"
)

// DefaultPassword is shared by every fixture user.
const DefaultPassword = "test"

// MovieCreator persists movies.
type MovieCreator interface {
	Create(ctx context.Context, movie *domain.Movie) error
}

// UserCreator persists users.
type UserCreator interface {
	Create(ctx context.Context, user *domain.User) error
}

// RatingSubmitter records a rating, updating any earlier one for the pair.
type RatingSubmitter interface {
	Submit(ctx context.Context, userID, movieID int64, score int) (domain.RateResult, error)
}

// PasswordHasher hashes fixture passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Stores groups the writers the seeder needs.
type Stores struct {
	Movies  MovieCreator
	Users   UserCreator
	Ratings RatingSubmitter
}

// Options tune the amount of generated data.
type Options struct {
	Users          int
	RatingsPerUser int
	Password       string
	Rand           *rand.Rand
	Logger         *log.Logger
}

// Summary counts what Run wrote.
type Summary struct {
	Movies         int
	Users          int
	RatingsCreated int
	RatingsUpdated int
}

// Run creates every catalog movie, then opts.Users users named
// user{n}@test.com, each submitting opts.RatingsPerUser ratings for random
// movies. Picking the same movie twice updates the earlier rating.
func Run(ctx context.Context, stores Stores, hasher PasswordHasher, entries []catalog.Entry, opts Options) (Summary, error) {
	if opts.Users < 0 || opts.RatingsPerUser < 0 {
		return Summary{}, fmt.Errorf("seed: counts must be non-negative")
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	var sum Summary
	movieIDs := make([]int64, 0, len(entries))
	for _, e := range entries {
		movie, err := e.Movie()
		if err != nil {
			return sum, err
		}
		if err := stores.Movies.Create(ctx, &movie); err != nil {
			return sum, fmt.Errorf("create movie %q: %w", movie.Title, err)
		}
		movieIDs = append(movieIDs, movie.ID)
	}
	sum.Movies = len(movieIDs)
	logger.Printf("seed: created %d movies", sum.Movies)

	if opts.RatingsPerUser > 0 && len(movieIDs) == 0 {
		return sum, fmt.Errorf("seed: cannot rate an empty catalog")
	}

	// One hash for all fixture users keeps seeding fast at production bcrypt costs.
	hash, err := hasher.Hash(opts.Password)
	if err != nil {
		return sum, fmt.Errorf("hash fixture password: %w", err)
	}

	for n := 0; n < opts.Users; n++ {
		user, err := domain.NewUser(fmt.Sprintf("user%d@test.com", n), hash)
		if err != nil {
			return sum, err
		}
		if err := stores.Users.Create(ctx, &user); err != nil {
			return sum, fmt.Errorf("create user %s: %w", user.Email, err)
		}
		sum.Users++

		for i := 0; i < opts.RatingsPerUser; i++ {
			movieID := movieIDs[opts.Rand.IntN(len(movieIDs))]
			score := opts.Rand.IntN(domain.MaxScore - domain.MinScore + 1)
			res, err := stores.Ratings.Submit(ctx, user.ID, movieID, domain.MinScore+score)
			if err != nil {
				return sum, fmt.Errorf("rate movie %d as %s: %w", movieID, user.Email, err)
			}
			switch res.Outcome {
			case domain.RateCreated:
				sum.RatingsCreated++
			case domain.RateUpdated:
				sum.RatingsUpdated++
			}
		}
	}
	logger.Printf("seed: created %d users, %d ratings (%d updated)", sum.Users, sum.RatingsCreated, sum.RatingsUpdated)
	return sum, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-ratings/internal/domain"
)

// RatingsRepository provides helpers for movie ratings.
type RatingsRepository struct {
	pool *pgxpool.Pool
}

const ratingColumns = `id, score, movie_id, user_id, created_at, updated_at`

// Submit records a user's score for a movie in a single statement.
//
// The (user_id, movie_id) unique constraint arbitrates concurrent submissions,
// so the pair never ends up with two rows. When the stored score already
// equals the new one the conditional DO UPDATE skips the write and no row is
// returned; that case is reported as RateUnchanged.
func (r *RatingsRepository) Submit(ctx context.Context, userID, movieID int64, score int) (domain.RateResult, error) {
	if err := domain.ValidateScore(score); err != nil {
		return domain.RateResult{}, err
	}

	const query = `
        WITH prev AS (
            SELECT score FROM ratings WHERE user_id = $1 AND movie_id = $2
        ), upserted AS (
            INSERT INTO ratings (user_id, movie_id, score)
            VALUES ($1, $2, $3)
            ON CONFLICT (user_id, movie_id)
            DO UPDATE SET score = EXCLUDED.score, updated_at = now()
            WHERE ratings.score <> EXCLUDED.score
            RETURNING id, score, movie_id, user_id, created_at, updated_at, (xmax = 0) AS inserted
        )
        SELECT u.id, u.score, u.movie_id, u.user_id, u.created_at, u.updated_at, u.inserted,
               (SELECT score FROM prev) AS previous
        FROM upserted u
    `

	var (
		rating   domain.Rating
		inserted bool
		previous *int
	)
	err := r.pool.QueryRow(ctx, query, userID, movieID, score).Scan(
		&rating.ID,
		&rating.Score,
		&rating.MovieID,
		&rating.UserID,
		&rating.CreatedAt,
		&rating.UpdatedAt,
		&inserted,
		&previous,
	)
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		existing, getErr := r.get(ctx, userID, movieID)
		if getErr != nil {
			return domain.RateResult{}, fmt.Errorf("load unchanged rating: %w", getErr)
		}
		prev := existing.Score
		return domain.RateResult{Rating: existing, Outcome: domain.RateUnchanged, Previous: &prev}, nil
	case pgErrorCode(err) == pgForeignKeyViolation:
		return domain.RateResult{}, ErrNotFound
	default:
		return domain.RateResult{}, fmt.Errorf("submit rating: %w", err)
	}

	if inserted {
		return domain.RateResult{Rating: rating, Outcome: domain.RateCreated}, nil
	}
	return domain.RateResult{Rating: rating, Outcome: domain.RateUpdated, Previous: previous}, nil
}

// Exists reports whether the user has rated the movie.
func (r *RatingsRepository) Exists(ctx context.Context, userID, movieID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM ratings WHERE user_id = $1 AND movie_id = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, movieID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check rating: %w", err)
	}
	return exists, nil
}

// Score returns the user's stored score for the movie, or ErrNotFound.
func (r *RatingsRepository) Score(ctx context.Context, userID, movieID int64) (int, error) {
	rating, err := r.get(ctx, userID, movieID)
	if err != nil {
		return 0, err
	}
	return rating.Score, nil
}

// Create inserts a rating without looking for an existing one first.
func (r *RatingsRepository) Create(ctx context.Context, userID, movieID int64, score int) (domain.Rating, error) {
	if err := domain.ValidateScore(score); err != nil {
		return domain.Rating{}, err
	}
	query := fmt.Sprintf(`
        INSERT INTO ratings (user_id, movie_id, score)
        VALUES ($1, $2, $3)
        RETURNING %s
    `, ratingColumns)

	rating, err := scanRating(r.pool.QueryRow(ctx, query, userID, movieID, score))
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return domain.Rating{}, ErrDuplicateRating
		case pgForeignKeyViolation:
			return domain.Rating{}, ErrNotFound
		}
		return domain.Rating{}, fmt.Errorf("insert rating: %w", err)
	}
	return rating, nil
}

// Update overwrites the score of an existing rating.
func (r *RatingsRepository) Update(ctx context.Context, userID, movieID int64, score int) error {
	if err := domain.ValidateScore(score); err != nil {
		return err
	}
	const query = `
        UPDATE ratings
        SET score = $3, updated_at = now()
        WHERE user_id = $1 AND movie_id = $2
    `
	tag, err := r.pool.Exec(ctx, query, userID, movieID, score)
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Aggregate returns the rating average and count for a movie.
// A movie without ratings yields {Average: 0, Count: 0}.
func (r *RatingsRepository) Aggregate(ctx context.Context, movieID int64) (domain.RatingAggregate, error) {
	const query = `
        SELECT COALESCE(AVG(score), 0)::float8 AS average,
               COUNT(*)::int8 AS count
        FROM ratings
        WHERE movie_id = $1
    `

	var agg domain.RatingAggregate
	err := r.pool.QueryRow(ctx, query, movieID).Scan(&agg.Average, &agg.Count)
	if err != nil {
		return domain.RatingAggregate{}, fmt.Errorf("aggregate ratings: %w", err)
	}
	return agg, nil
}

// ListByUser returns the user's ratings with movie titles, newest first.
func (r *RatingsRepository) ListByUser(ctx context.Context, userID int64) ([]domain.UserRating, error) {
	const query = `
        SELECT r.id, r.score, r.movie_id, r.user_id, r.created_at, r.updated_at, m.title
        FROM ratings r
        JOIN movies m ON m.id = r.movie_id
        WHERE r.user_id = $1
        ORDER BY r.updated_at DESC, r.id DESC
    `
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.UserRating, 0)
	for rows.Next() {
		var item domain.UserRating
		if err := rows.Scan(
			&item.ID,
			&item.Score,
			&item.MovieID,
			&item.UserID,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.MovieTitle,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *RatingsRepository) get(ctx context.Context, userID, movieID int64) (domain.Rating, error) {
	query := fmt.Sprintf(`SELECT %s FROM ratings WHERE user_id = $1 AND movie_id = $2`, ratingColumns)
	rating, err := scanRating(r.pool.QueryRow(ctx, query, userID, movieID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rating{}, ErrNotFound
		}
		return domain.Rating{}, err
	}
	return rating, nil
}

func scanRating(row pgx.Row) (domain.Rating, error) {
	var rating domain.Rating
	err := row.Scan(
		&rating.ID,
		&rating.Score,
		&rating.MovieID,
		&rating.UserID,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	return rating, err
}

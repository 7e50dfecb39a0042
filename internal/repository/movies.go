package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-ratings/internal/domain"
)

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	pool *pgxpool.Pool
}

const movieColumns = `
    id,
    title,
    overview,
    release_date,
    poster_path,
    created_at
`

// Create inserts a new movie row and fills in ID and CreatedAt.
func (r *MoviesRepository) Create(ctx context.Context, movie *domain.Movie) error {
	const query = `
        INSERT INTO movies (title, overview, release_date, poster_path)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `
	err := r.pool.QueryRow(ctx, query, movie.Title, movie.Overview, movie.ReleaseDate, movie.PosterPath).
		Scan(&movie.ID, &movie.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert movie: %w", err)
	}
	return nil
}

// GetByID fetches a movie by its identifier.
func (r *MoviesRepository) GetByID(ctx context.Context, id int64) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = $1`, movieColumns)
	movie, err := scanMovie(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	return movie, nil
}

// List returns all movies ordered by title.
func (r *MoviesRepository) List(ctx context.Context) ([]domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies ORDER BY title, id`, movieColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var movie domain.Movie
	err := row.Scan(
		&movie.ID,
		&movie.Title,
		&movie.Overview,
		&movie.ReleaseDate,
		&movie.PosterPath,
		&movie.CreatedAt,
	)
	if err != nil {
		return domain.Movie{}, err
	}
	if movie.ReleaseDate != nil {
		utc := movie.ReleaseDate.UTC()
		movie.ReleaseDate = &utc
	}
	return movie, nil
}

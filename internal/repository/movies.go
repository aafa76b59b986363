package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	db DBTX
}

const movieColumns = `
    id::text,
    title,
    description,
    release_date,
    duration_minutes,
    genre,
    director,
    rating::float8,
    created_at,
    updated_at,
    deleted_at
`

// MovieListFilters encapsulates search and pagination options.
type MovieListFilters struct {
	Query  *string
	Genre  *string
	Limit  int
	Cursor *MovieCursor
}

// MovieCursor allows stable pagination by created_at/id.
type MovieCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// MovieListResult returns the paginated payload.
type MovieListResult struct {
	Items      []domain.Movie
	NextCursor *string
}

// Create inserts a new movie row and returns the stored entity. The rating
// starts absent.
func (r *MoviesRepository) Create(ctx context.Context, fields domain.MovieFields) (domain.Movie, error) {
	query := fmt.Sprintf(`
        INSERT INTO movies (title, description, release_date, duration_minutes, genre, director)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING %s
    `, movieColumns)

	row := r.db.QueryRow(ctx, query, fields.Title, fields.Description, fields.ReleaseDate,
		fields.DurationMinutes, fields.Genre, fields.Director)
	movie, err := scanMovie(row)
	if err != nil {
		return domain.Movie{}, translateWriteError(err)
	}
	return movie, nil
}

// GetByID fetches a movie by its identifier, hiding soft-deleted rows from
// roles that may not see them.
func (r *MoviesRepository) GetByID(ctx context.Context, id string, role domain.Role) (domain.Movie, error) {
	if !validID(id) {
		return domain.Movie{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = $1 AND ($2 OR deleted_at IS NULL)`, movieColumns)
	return r.queryOne(ctx, query, id, role.SeesDeleted())
}

// LockForUpdate reads the movie row, deleted or not, and holds a row lock on
// it until the surrounding transaction ends. All rating writers for one movie
// serialize on this lock.
func (r *MoviesRepository) LockForUpdate(ctx context.Context, id string) (domain.Movie, error) {
	if !validID(id) {
		return domain.Movie{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = $1 FOR UPDATE`, movieColumns)
	return r.queryOne(ctx, query, id)
}

// Update applies a partial edit to an active movie. The rating column is
// never part of the statement.
func (r *MoviesRepository) Update(ctx context.Context, id string, patch domain.MoviePatch) (domain.Movie, error) {
	if !validID(id) {
		return domain.Movie{}, ErrNotFound
	}
	query := fmt.Sprintf(`
        UPDATE movies
        SET title = COALESCE($2, title),
            description = COALESCE($3, description),
            release_date = COALESCE($4, release_date),
            duration_minutes = COALESCE($5, duration_minutes),
            genre = COALESCE($6, genre),
            director = COALESCE($7, director),
            updated_at = now()
        WHERE id = $1 AND deleted_at IS NULL
        RETURNING %s
    `, movieColumns)

	return r.queryOne(ctx, query, id, patch.Title, patch.Description, patch.ReleaseDate,
		patch.DurationMinutes, patch.Genre, patch.Director)
}

// SoftDelete stamps deleted_at on an active movie. Reviews are left intact.
func (r *MoviesRepository) SoftDelete(ctx context.Context, id string) (domain.Movie, error) {
	if !validID(id) {
		return domain.Movie{}, ErrNotFound
	}
	query := fmt.Sprintf(`
        UPDATE movies
        SET deleted_at = now(), updated_at = now()
        WHERE id = $1 AND deleted_at IS NULL
        RETURNING %s
    `, movieColumns)
	return r.queryOne(ctx, query, id)
}

// SetRating writes only the rating column and the updated timestamp. A nil
// rating clears the column. Writing the same value twice is harmless.
func (r *MoviesRepository) SetRating(ctx context.Context, id string, rating *domain.Rating) error {
	if !validID(id) {
		return ErrNotFound
	}
	var value *float64
	if rating != nil {
		f := rating.Float64()
		value = &f
	}
	tag, err := r.db.Exec(ctx, `
        UPDATE movies
        SET rating = $2::numeric(3,1), updated_at = now()
        WHERE id = $1
    `, id, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns movies that match the provided filters.
func (r *MoviesRepository) List(ctx context.Context, filters MovieListFilters, role domain.Role) (MovieListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	} else if filters.Limit > 100 {
		filters.Limit = 100
	}

	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if !role.SeesDeleted() {
		where = append(where, "deleted_at IS NULL")
	}
	if filters.Query != nil && strings.TrimSpace(*filters.Query) != "" {
		q := "%" + strings.TrimSpace(*filters.Query) + "%"
		p1 := arg(q)
		p2 := arg(q)
		where = append(where, fmt.Sprintf("(title ILIKE %s OR director ILIKE %s)", p1, p2))
	}
	if filters.Genre != nil && strings.TrimSpace(*filters.Genre) != "" {
		where = append(where, fmt.Sprintf("genre ILIKE %s", arg(strings.TrimSpace(*filters.Genre))))
	}
	if filters.Cursor != nil {
		cursorCreated := arg(filters.Cursor.CreatedAt)
		cursorID := arg(filters.Cursor.ID)
		where = append(where, fmt.Sprintf("(created_at, id) < (%s, %s::uuid)", cursorCreated, cursorID))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(movieColumns)
	queryBuilder.WriteString(" FROM movies")

	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))

	rows, err := r.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return MovieListResult{}, err
	}
	defer rows.Close()

	items := make([]domain.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return MovieListResult{}, err
		}
		items = append(items, movie)
	}
	if err := rows.Err(); err != nil {
		return MovieListResult{}, err
	}

	var nextCursor *string
	if len(items) == filters.Limit {
		last := items[len(items)-1]
		token, err := EncodeCursor(MovieCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return MovieListResult{}, err
		}
		nextCursor = &token
	}

	return MovieListResult{Items: items, NextCursor: nextCursor}, nil
}

func (r *MoviesRepository) queryOne(ctx context.Context, query string, args ...any) (domain.Movie, error) {
	movie, err := scanMovie(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	return movie, nil
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var (
		movie     domain.Movie
		rating    *float64
		deletedAt *time.Time
	)

	err := row.Scan(
		&movie.ID,
		&movie.Title,
		&movie.Description,
		&movie.ReleaseDate,
		&movie.DurationMinutes,
		&movie.Genre,
		&movie.Director,
		&rating,
		&movie.CreatedAt,
		&movie.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return domain.Movie{}, err
	}

	if rating != nil {
		r := domain.RatingFromFloat(*rating)
		movie.Rating = &r
	}
	movie.Deletion = domain.DeletionFromColumn(deletedAt)
	return movie, nil
}

// EncodeCursor turns a MovieCursor into an opaque page token.
func EncodeCursor(c MovieCursor) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}

// DecodeCursor parses a cursor token into a MovieCursor.
func DecodeCursor(token string) (*MovieCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var cursor MovieCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	if !validID(cursor.ID) {
		return nil, fmt.Errorf("invalid cursor id")
	}
	return &cursor, nil
}

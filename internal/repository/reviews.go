package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

// ReviewsRepository provides persistence helpers for reviews.
type ReviewsRepository struct {
	db DBTX
}

const reviewColumns = `
    id::text,
    body,
    rating,
    movie_id::text,
    author_id::text,
    created_at,
    updated_at,
    deleted_at
`

// Create inserts an active review. A second active review for the same
// (author, movie) is rejected by the partial unique index and surfaces as
// ErrConflict.
func (r *ReviewsRepository) Create(ctx context.Context, draft domain.ReviewDraft) (domain.Review, error) {
	if !validID(draft.MovieID) || !validID(draft.AuthorID) {
		return domain.Review{}, ErrReference
	}
	query := fmt.Sprintf(`
        INSERT INTO reviews (body, rating, movie_id, author_id)
        VALUES ($1,$2,$3,$4)
        RETURNING %s
    `, reviewColumns)

	review, err := scanReview(r.db.QueryRow(ctx, query, draft.Text, draft.Rating, draft.MovieID, draft.AuthorID))
	if err != nil {
		return domain.Review{}, translateWriteError(err)
	}
	return review, nil
}

// Get fetches a review regardless of its deletion state.
func (r *ReviewsRepository) Get(ctx context.Context, id string) (domain.Review, error) {
	return r.FindByID(ctx, id, domain.RoleAdmin)
}

// FindByID fetches a review applying the visibility policy for role.
func (r *ReviewsRepository) FindByID(ctx context.Context, id string, role domain.Role) (domain.Review, error) {
	if !validID(id) {
		return domain.Review{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE id = $1 AND ($2 OR deleted_at IS NULL)`, reviewColumns)
	return r.queryOne(ctx, query, id, role.SeesDeleted())
}

// UpdateText replaces body and rating of an active review owned by callerID.
func (r *ReviewsRepository) UpdateText(ctx context.Context, id, callerID, text string, rating int) (domain.Review, error) {
	if !validID(id) {
		return domain.Review{}, ErrNotFound
	}
	query := fmt.Sprintf(`
        UPDATE reviews
        SET body = $3, rating = $4, updated_at = now()
        WHERE id = $1 AND author_id::text = $2 AND deleted_at IS NULL
        RETURNING %s
    `, reviewColumns)

	review, err := r.queryOne(ctx, query, id, callerID, text, rating)
	if errors.Is(err, ErrNotFound) {
		return domain.Review{}, r.explainMiss(ctx, id)
	}
	return review, err
}

// SoftDelete marks an active review owned by callerID as deleted. The row is
// retained.
func (r *ReviewsRepository) SoftDelete(ctx context.Context, id, callerID string) (domain.Review, error) {
	if !validID(id) {
		return domain.Review{}, ErrNotFound
	}
	query := fmt.Sprintf(`
        UPDATE reviews
        SET deleted_at = now(), updated_at = now()
        WHERE id = $1 AND author_id::text = $2 AND deleted_at IS NULL
        RETURNING %s
    `, reviewColumns)

	review, err := r.queryOne(ctx, query, id, callerID)
	if errors.Is(err, ErrNotFound) {
		return domain.Review{}, r.explainMiss(ctx, id)
	}
	return review, err
}

// explainMiss tells a missing/deleted review apart from one owned by someone
// else after a guarded write matched no row.
func (r *ReviewsRepository) explainMiss(ctx context.Context, id string) error {
	if _, err := r.FindByID(ctx, id, domain.RoleReviewer); err != nil {
		return err
	}
	return ErrForbidden
}

// FindActiveByAuthorAndMovie returns the author's active review of a movie.
func (r *ReviewsRepository) FindActiveByAuthorAndMovie(ctx context.Context, authorID, movieID string) (domain.Review, error) {
	if !validID(authorID) || !validID(movieID) {
		return domain.Review{}, ErrNotFound
	}
	query := fmt.Sprintf(`
        SELECT %s FROM reviews
        WHERE author_id = $1 AND movie_id = $2 AND deleted_at IS NULL
    `, reviewColumns)
	return r.queryOne(ctx, query, authorID, movieID)
}

// FindActiveByMovie returns every active review of a movie. It ignores the
// caller's role because it feeds the public aggregate rating.
func (r *ReviewsRepository) FindActiveByMovie(ctx context.Context, movieID string) ([]domain.Review, error) {
	if !validID(movieID) {
		return []domain.Review{}, nil
	}
	query := fmt.Sprintf(`
        SELECT %s FROM reviews
        WHERE movie_id = $1 AND deleted_at IS NULL
        ORDER BY created_at DESC, id DESC
    `, reviewColumns)
	return r.queryMany(ctx, query, movieID)
}

// FindByMovie lists a movie's reviews visible to role.
func (r *ReviewsRepository) FindByMovie(ctx context.Context, movieID string, role domain.Role) ([]domain.Review, error) {
	if !validID(movieID) {
		return []domain.Review{}, nil
	}
	query := fmt.Sprintf(`
        SELECT %s FROM reviews
        WHERE movie_id = $1 AND ($2 OR deleted_at IS NULL)
        ORDER BY created_at DESC, id DESC
    `, reviewColumns)
	return r.queryMany(ctx, query, movieID, role.SeesDeleted())
}

// FindByUser lists a user's reviews visible to role.
func (r *ReviewsRepository) FindByUser(ctx context.Context, userID string, role domain.Role) ([]domain.Review, error) {
	if !validID(userID) {
		return []domain.Review{}, nil
	}
	query := fmt.Sprintf(`
        SELECT %s FROM reviews
        WHERE author_id = $1 AND ($2 OR deleted_at IS NULL)
        ORDER BY created_at DESC, id DESC
    `, reviewColumns)
	return r.queryMany(ctx, query, userID, role.SeesDeleted())
}

// FindAll lists every review visible to role.
func (r *ReviewsRepository) FindAll(ctx context.Context, role domain.Role) ([]domain.Review, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM reviews
        WHERE ($1 OR deleted_at IS NULL)
        ORDER BY created_at DESC, id DESC
    `, reviewColumns)
	return r.queryMany(ctx, query, role.SeesDeleted())
}

func (r *ReviewsRepository) queryOne(ctx context.Context, query string, args ...any) (domain.Review, error) {
	review, err := scanReview(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Review{}, ErrNotFound
		}
		return domain.Review{}, err
	}
	return review, nil
}

func (r *ReviewsRepository) queryMany(ctx context.Context, query string, args ...any) ([]domain.Review, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, review)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func scanReview(row pgx.Row) (domain.Review, error) {
	var (
		review    domain.Review
		deletedAt *time.Time
	)
	err := row.Scan(
		&review.ID,
		&review.Text,
		&review.Rating,
		&review.MovieID,
		&review.AuthorID,
		&review.CreatedAt,
		&review.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return domain.Review{}, err
	}
	review.Deletion = domain.DeletionFromColumn(deletedAt)
	return review, nil
}

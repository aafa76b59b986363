package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
)

// CreateMovie adds a movie with no rating. Admin only.
func (c *Coordinator) CreateMovie(ctx context.Context, p domain.Principal, fields domain.MovieFields) (domain.Movie, error) {
	if err := requireAdmin(p); err != nil {
		return domain.Movie{}, err
	}
	fields.Title = strings.TrimSpace(fields.Title)
	if fields.Title == "" {
		return domain.Movie{}, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if fields.DurationMinutes <= 0 {
		return domain.Movie{}, fmt.Errorf("%w: duration must be positive", domain.ErrValidation)
	}

	movie, err := c.db.Movies().Create(ctx, fields)
	if err != nil {
		c.logger.Sugar().Errorw("create movie failed", "error", err)
		return domain.Movie{}, classify(err)
	}
	return movie, nil
}

// UpdateMovie edits descriptive fields of an active movie. Admin only. The
// rating cannot be part of the patch.
func (c *Coordinator) UpdateMovie(ctx context.Context, p domain.Principal, id string, patch domain.MoviePatch) (domain.Movie, error) {
	if err := requireAdmin(p); err != nil {
		return domain.Movie{}, err
	}
	patch, err := normalizePatch(patch)
	if err != nil {
		return domain.Movie{}, err
	}

	op := c.begin("update_movie")
	op.movieID = id
	op.advance(StageValidated)

	movie, err := c.db.Movies().Update(ctx, id, patch)
	if errors.Is(err, repository.ErrNotFound) {
		err = fmt.Errorf("%w: movie %s", domain.ErrNotFound, id)
	} else if err == nil {
		op.advance(StageMovieWritten)
	}
	if err := c.finish(ctx, op, err); err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}

// DeleteMovie soft-deletes an active movie. Admin only. Its reviews stay in
// place and keep counting towards the stored rating.
func (c *Coordinator) DeleteMovie(ctx context.Context, p domain.Principal, id string) error {
	if err := requireAdmin(p); err != nil {
		return err
	}

	op := c.begin("delete_movie")
	op.movieID = id

	err := c.db.InTx(ctx, func(ctx context.Context, tx repository.Stores) error {
		movie, err := tx.Movies().LockForUpdate(ctx, id)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && movie.Deletion.IsDeleted()) {
			return fmt.Errorf("%w: movie %s", domain.ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("lock movie: %w", err)
		}
		op.advance(StageValidated)

		if _, err := tx.Movies().SoftDelete(ctx, id); err != nil {
			return fmt.Errorf("soft delete movie: %w", err)
		}
		op.advance(StageMovieWritten)
		return nil
	})
	return c.finish(ctx, op, err)
}

// GetMovie returns a movie visible to p. Non-privileged reads go through the
// movie cache.
func (c *Coordinator) GetMovie(ctx context.Context, p domain.Principal, id string) (domain.Movie, error) {
	load := func(ctx context.Context) (domain.Movie, error) {
		return c.db.Movies().GetByID(ctx, id, p.Role)
	}

	var (
		movie domain.Movie
		err   error
	)
	if p.Role.SeesDeleted() {
		movie, err = load(ctx)
	} else {
		movie, err = c.cache.GetMovie(ctx, id, load)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Movie{}, fmt.Errorf("%w: movie %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Movie{}, classify(err)
	}
	return movie, nil
}

// ListMovies returns a page of movies visible to p.
func (c *Coordinator) ListMovies(ctx context.Context, p domain.Principal, filters repository.MovieListFilters) (repository.MovieListResult, error) {
	result, err := c.db.Movies().List(ctx, filters, p.Role)
	if err != nil {
		return repository.MovieListResult{}, classify(err)
	}
	return result, nil
}

func requireAdmin(p domain.Principal) error {
	if !p.Authenticated() || !p.Role.Privileged() {
		return fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	return nil
}

func normalizePatch(patch domain.MoviePatch) (domain.MoviePatch, error) {
	if patch.Empty() {
		return patch, fmt.Errorf("%w: nothing to update", domain.ErrValidation)
	}
	if patch.Title != nil {
		trimmed := strings.TrimSpace(*patch.Title)
		if trimmed == "" {
			return patch, fmt.Errorf("%w: title cannot be empty", domain.ErrValidation)
		}
		patch.Title = &trimmed
	}
	if patch.DurationMinutes != nil && *patch.DurationMinutes <= 0 {
		return patch, fmt.Errorf("%w: duration must be positive", domain.ErrValidation)
	}
	return patch, nil
}

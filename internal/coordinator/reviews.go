package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
)

// CreateReview stores a new review by p for movieID and recomputes the
// movie's rating in the same transaction.
func (c *Coordinator) CreateReview(ctx context.Context, p domain.Principal, movieID, text string, score int) (domain.Review, error) {
	op := c.begin("create_review")
	op.movieID = movieID

	if err := validateReviewInput(p, text, score); err != nil {
		return domain.Review{}, c.finish(ctx, op, err)
	}

	var created domain.Review
	err := c.db.InTx(ctx, func(ctx context.Context, tx repository.Stores) error {
		movie, err := tx.Movies().LockForUpdate(ctx, movieID)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && movie.Deletion.IsDeleted()) {
			return fmt.Errorf("%w: %s", domain.ErrMovieNotFound, movieID)
		}
		if err != nil {
			return fmt.Errorf("lock movie: %w", err)
		}
		op.prevRating = movie.Rating

		if err := checkCanCreate(ctx, tx.Reviews(), p.UserID, movieID); err != nil {
			return err
		}
		op.advance(StageValidated)

		created, err = tx.Reviews().Create(ctx, domain.ReviewDraft{
			AuthorID: p.UserID,
			MovieID:  movieID,
			Text:     text,
			Rating:   score,
		})
		switch {
		case errors.Is(err, repository.ErrConflict):
			return fmt.Errorf("%w: author %s already reviewed movie %s", domain.ErrDuplicateReview, p.UserID, movieID)
		case errors.Is(err, repository.ErrReference):
			return fmt.Errorf("%w: unknown author %s", domain.ErrValidation, p.UserID)
		case err != nil:
			return fmt.Errorf("insert review: %w", err)
		}
		op.reviewID = created.ID
		op.advance(StageReviewWritten)

		return c.recompute(ctx, tx, op, movieID)
	})
	if err := c.finish(ctx, op, err); err != nil {
		return domain.Review{}, err
	}
	return created, nil
}

// UpdateReview replaces text and rating of the caller's own review and
// recomputes the movie's rating from the full active set.
func (c *Coordinator) UpdateReview(ctx context.Context, p domain.Principal, reviewID, text string, score int) (domain.Review, error) {
	op := c.begin("update_review")
	op.reviewID = reviewID

	if err := validateReviewInput(p, text, score); err != nil {
		return domain.Review{}, c.finish(ctx, op, err)
	}

	var updated domain.Review
	err := c.db.InTx(ctx, func(ctx context.Context, tx repository.Stores) error {
		movieID, err := c.lockReviewMovie(ctx, tx, op, reviewID)
		if err != nil {
			return err
		}

		updated, err = tx.Reviews().UpdateText(ctx, reviewID, p.UserID, text, score)
		if err != nil {
			return ownershipError(err, reviewID)
		}
		op.advance(StageReviewWritten)

		return c.recompute(ctx, tx, op, movieID)
	})
	if err := c.finish(ctx, op, err); err != nil {
		return domain.Review{}, err
	}
	return updated, nil
}

// DeleteReview soft-deletes the caller's own review and recomputes the
// movie's rating without it.
func (c *Coordinator) DeleteReview(ctx context.Context, p domain.Principal, reviewID string) error {
	op := c.begin("delete_review")
	op.reviewID = reviewID

	if !p.Authenticated() {
		return c.finish(ctx, op, fmt.Errorf("%w: anonymous caller", domain.ErrForbidden))
	}

	err := c.db.InTx(ctx, func(ctx context.Context, tx repository.Stores) error {
		movieID, err := c.lockReviewMovie(ctx, tx, op, reviewID)
		if err != nil {
			return err
		}

		if _, err := tx.Reviews().SoftDelete(ctx, reviewID, p.UserID); err != nil {
			return ownershipError(err, reviewID)
		}
		op.advance(StageReviewWritten)

		return c.recompute(ctx, tx, op, movieID)
	})
	return c.finish(ctx, op, err)
}

// lockReviewMovie resolves the review's movie and locks the movie row before
// the review row is touched, so every writer takes locks in movie-then-review
// order.
func (c *Coordinator) lockReviewMovie(ctx context.Context, tx repository.Stores, op *operation, reviewID string) (string, error) {
	current, err := tx.Reviews().Get(ctx, reviewID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("%w: review %s", domain.ErrNotFound, reviewID)
	}
	if err != nil {
		return "", fmt.Errorf("load review: %w", err)
	}
	op.movieID = current.MovieID

	movie, err := tx.Movies().LockForUpdate(ctx, current.MovieID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", domain.ErrMovieNotFound, current.MovieID)
		}
		return "", fmt.Errorf("lock movie: %w", err)
	}
	op.prevRating = movie.Rating
	op.advance(StageValidated)
	return current.MovieID, nil
}

func ownershipError(err error, reviewID string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: review %s", domain.ErrNotFound, reviewID)
	case errors.Is(err, repository.ErrForbidden):
		return fmt.Errorf("%w: review %s belongs to another user", domain.ErrForbidden, reviewID)
	default:
		return fmt.Errorf("write review: %w", err)
	}
}

func validateReviewInput(p domain.Principal, text string, score int) error {
	if !p.Authenticated() {
		return fmt.Errorf("%w: anonymous caller", domain.ErrForbidden)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: review text is required", domain.ErrValidation)
	}
	if score < 1 || score > 10 {
		return fmt.Errorf("%w: rating %d outside 1..10", domain.ErrValidation, score)
	}
	return nil
}

// GetReview returns a review visible to p.
func (c *Coordinator) GetReview(ctx context.Context, p domain.Principal, id string) (domain.Review, error) {
	review, err := c.db.Reviews().FindByID(ctx, id, p.Role)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Review{}, fmt.Errorf("%w: review %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Review{}, classify(err)
	}
	return review, nil
}

// ListReviewsByMovie returns the movie's reviews visible to p.
func (c *Coordinator) ListReviewsByMovie(ctx context.Context, p domain.Principal, movieID string) ([]domain.Review, error) {
	reviews, err := c.db.Reviews().FindByMovie(ctx, movieID, p.Role)
	return reviews, classify(err)
}

// ListReviewsByUser returns the user's reviews visible to p.
func (c *Coordinator) ListReviewsByUser(ctx context.Context, p domain.Principal, userID string) ([]domain.Review, error) {
	reviews, err := c.db.Reviews().FindByUser(ctx, userID, p.Role)
	return reviews, classify(err)
}

// ListReviews returns every review visible to p.
func (c *Coordinator) ListReviews(ctx context.Context, p domain.Principal) ([]domain.Review, error) {
	reviews, err := c.db.Reviews().FindAll(ctx, p.Role)
	return reviews, classify(err)
}

package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
)

// checkCanCreate rejects a second active review by the same author for the
// same movie. It must run in the transaction that performs the insert, after
// the movie row lock is held; the partial unique index on reviews catches
// anything that still slips past it.
func checkCanCreate(ctx context.Context, reviews repository.ReviewStore, authorID, movieID string) error {
	existing, err := reviews.FindActiveByAuthorAndMovie(ctx, authorID, movieID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: review %s already exists", domain.ErrDuplicateReview, existing.ID)
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("uniqueness check: %w", err)
	}
}

package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
	"github.com/Clark-Hu/movie-reviews/internal/repository/memory"
)

func TestCheckCanCreate(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	movie, err := db.Movies().Create(ctx, domain.MovieFields{Title: "Solaris", DurationMinutes: 167})
	if err != nil {
		t.Fatalf("create movie: %v", err)
	}
	author := uuid.NewString()

	if err := checkCanCreate(ctx, db.Reviews(), author, movie.ID); err != nil {
		t.Fatalf("first review should be allowed: %v", err)
	}

	review, err := db.Reviews().Create(ctx, domain.ReviewDraft{AuthorID: author, MovieID: movie.ID, Text: "slow burn", Rating: 8})
	if err != nil {
		t.Fatalf("create review: %v", err)
	}
	if err := checkCanCreate(ctx, db.Reviews(), author, movie.ID); !errors.Is(err, domain.ErrDuplicateReview) {
		t.Fatalf("second review err = %v, want ErrDuplicateReview", err)
	}

	if _, err := db.Reviews().SoftDelete(ctx, review.ID, author); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if err := checkCanCreate(ctx, db.Reviews(), author, movie.ID); err != nil {
		t.Fatalf("review after delete should be allowed: %v", err)
	}
}

type brokenReviews struct {
	repository.ReviewStore
}

func (brokenReviews) FindActiveByAuthorAndMovie(context.Context, string, string) (domain.Review, error) {
	return domain.Review{}, errors.New("connection refused")
}

func TestCheckCanCreateStorageFailure(t *testing.T) {
	err := checkCanCreate(context.Background(), brokenReviews{}, uuid.NewString(), uuid.NewString())
	if err == nil || errors.Is(err, domain.ErrDuplicateReview) {
		t.Fatalf("err = %v, want wrapped storage error", err)
	}
	if !errors.Is(classify(err), domain.ErrStorage) {
		t.Fatalf("classified err = %v, want ErrStorage", classify(err))
	}
}

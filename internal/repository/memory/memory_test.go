package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
)

func seedMovie(t *testing.T, s *Store, title string) domain.Movie {
	t.Helper()
	movie, err := s.Movies().Create(context.Background(), domain.MovieFields{Title: title, DurationMinutes: 100})
	require.NoError(t, err)
	return movie
}

func TestInTxDiscardsFailedWork(t *testing.T) {
	ctx := context.Background()
	s := New()
	movie := seedMovie(t, s, "Alien")
	author := uuid.NewString()

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, tx repository.Stores) error {
		_, err := tx.Reviews().Create(ctx, domain.ReviewDraft{AuthorID: author, MovieID: movie.ID, Text: "t", Rating: 3})
		require.NoError(t, err)
		r := domain.Rating(30)
		require.NoError(t, tx.Movies().SetRating(ctx, movie.ID, &r))
		return boom
	})
	require.ErrorIs(t, err, boom)

	active, err := s.Reviews().FindActiveByMovie(ctx, movie.ID)
	require.NoError(t, err)
	require.Empty(t, active)

	got, err := s.Movies().GetByID(ctx, movie.ID, domain.RoleReviewer)
	require.NoError(t, err)
	require.Nil(t, got.Rating)
}

func TestInTxCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := New()
	movie := seedMovie(t, s, "Aliens")

	err := s.InTx(ctx, func(ctx context.Context, tx repository.Stores) error {
		r := domain.Rating(77)
		return tx.Movies().SetRating(ctx, movie.ID, &r)
	})
	require.NoError(t, err)

	got, err := s.Movies().GetByID(ctx, movie.ID, domain.RoleReviewer)
	require.NoError(t, err)
	require.NotNil(t, got.Rating)
	require.Equal(t, "7.7", got.Rating.String())
}

func TestInTxCancelledMidway(t *testing.T) {
	s := New()
	movie := seedMovie(t, s, "Alien 3")
	ctx, cancel := context.WithCancel(context.Background())

	err := s.InTx(ctx, func(ctx context.Context, tx repository.Stores) error {
		r := domain.Rating(10)
		if err := tx.Movies().SetRating(ctx, movie.ID, &r); err != nil {
			return err
		}
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	got, err := s.Movies().GetByID(context.Background(), movie.ID, domain.RoleReviewer)
	require.NoError(t, err)
	require.Nil(t, got.Rating)
}

func TestReviewConstraints(t *testing.T) {
	ctx := context.Background()
	s := New()
	movie := seedMovie(t, s, "Prometheus")
	author := uuid.NewString()

	_, err := s.Reviews().Create(ctx, domain.ReviewDraft{AuthorID: author, MovieID: uuid.NewString(), Text: "t", Rating: 3})
	require.ErrorIs(t, err, repository.ErrReference)

	first, err := s.Reviews().Create(ctx, domain.ReviewDraft{AuthorID: author, MovieID: movie.ID, Text: "t", Rating: 3})
	require.NoError(t, err)
	_, err = s.Reviews().Create(ctx, domain.ReviewDraft{AuthorID: author, MovieID: movie.ID, Text: "t", Rating: 4})
	require.ErrorIs(t, err, repository.ErrConflict)

	_, err = s.Reviews().UpdateText(ctx, first.ID, uuid.NewString(), "x", 1)
	require.ErrorIs(t, err, repository.ErrForbidden)

	_, err = s.Reviews().SoftDelete(ctx, first.ID, author)
	require.NoError(t, err)
	_, err = s.Reviews().SoftDelete(ctx, first.ID, author)
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = s.Reviews().Create(ctx, domain.ReviewDraft{AuthorID: author, MovieID: movie.ID, Text: "again", Rating: 4})
	require.NoError(t, err)
}

func TestListOrderAndCursor(t *testing.T) {
	ctx := context.Background()
	s := New()
	var created []domain.Movie
	for _, title := range []string{"One", "Two", "Three"} {
		created = append(created, seedMovie(t, s, title))
	}

	page, err := s.Movies().List(ctx, repository.MovieListFilters{Limit: 2}, domain.RoleReviewer)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, created[2].ID, page.Items[0].ID)
	require.Equal(t, created[1].ID, page.Items[1].ID)
	require.NotNil(t, page.NextCursor)

	cursor, err := repository.DecodeCursor(*page.NextCursor)
	require.NoError(t, err)
	rest, err := s.Movies().List(ctx, repository.MovieListFilters{Limit: 2, Cursor: cursor}, domain.RoleReviewer)
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	require.Equal(t, created[0].ID, rest.Items[0].ID)
	require.Nil(t, rest.NextCursor)
}

func TestDeletedMovieVisibility(t *testing.T) {
	ctx := context.Background()
	s := New()
	movie := seedMovie(t, s, "Covenant")
	_, err := s.Movies().SoftDelete(ctx, movie.ID)
	require.NoError(t, err)

	_, err = s.Movies().GetByID(ctx, movie.ID, domain.RoleReviewer)
	require.ErrorIs(t, err, repository.ErrNotFound)

	locked, err := s.Movies().LockForUpdate(ctx, movie.ID)
	require.NoError(t, err)
	require.True(t, locked.Deletion.IsDeleted())
}

package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/movie-reviews/internal/cache"
	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/repository/memory"
)

func newCachedCoordinator(t *testing.T) (*Coordinator, *cache.MovieReader, *memory.Store, string) {
	t.Helper()
	db := memory.New()
	reader := cache.NewMovieReader(cache.NewMemoryCache(time.Minute), nil)
	c := New(db, reader, nil, nil)

	admin := domain.Principal{UserID: uuid.NewString(), Role: domain.RoleAdmin}
	movie, err := c.CreateMovie(context.Background(), admin, domain.MovieFields{
		Title:           "Heat",
		DurationMinutes: 170,
	})
	require.NoError(t, err)
	return c, reader, db, movie.ID
}

func TestPublicReadSeesCommittedRating(t *testing.T) {
	ctx := context.Background()
	c, _, _, movieID := newCachedCoordinator(t)

	movie, err := c.GetMovie(ctx, domain.Anonymous(), movieID)
	require.NoError(t, err)
	require.Nil(t, movie.Rating)

	_, err = c.CreateReview(ctx, reviewer(), movieID, "tense and beautifully shot", 8)
	require.NoError(t, err)

	movie, err = c.GetMovie(ctx, domain.Anonymous(), movieID)
	require.NoError(t, err)
	require.NotNil(t, movie.Rating)
	require.Equal(t, "8.0", movie.Rating.String())
}

func TestPublicReadIgnoresFillOverlappingWrite(t *testing.T) {
	ctx := context.Background()
	c, reader, db, movieID := newCachedCoordinator(t)

	// A public read loads the row, then a review commits before the read
	// stores its result.
	stale, err := reader.GetMovie(ctx, movieID, func(ctx context.Context) (domain.Movie, error) {
		movie, err := db.Movies().GetByID(ctx, movieID, domain.RoleReviewer)
		if err != nil {
			return domain.Movie{}, err
		}
		if _, err := c.CreateReview(ctx, reviewer(), movieID, "tense and beautifully shot", 8); err != nil {
			return domain.Movie{}, err
		}
		return movie, nil
	})
	require.NoError(t, err)
	require.Nil(t, stale.Rating)

	stored, err := db.Movies().GetByID(ctx, movieID, domain.RoleAdmin)
	require.NoError(t, err)
	require.NotNil(t, stored.Rating)

	movie, err := c.GetMovie(ctx, domain.Anonymous(), movieID)
	require.NoError(t, err)
	require.NotNil(t, movie.Rating, "public read returned the pre-write row")
	require.Equal(t, stored.Rating.String(), movie.Rating.String())
}

func TestPublicReadHidesDeletedMovieAfterCaching(t *testing.T) {
	ctx := context.Background()
	c, _, _, movieID := newCachedCoordinator(t)
	admin := domain.Principal{UserID: uuid.NewString(), Role: domain.RoleAdmin}

	_, err := c.GetMovie(ctx, domain.Anonymous(), movieID)
	require.NoError(t, err)
	require.NoError(t, c.DeleteMovie(ctx, admin, movieID))

	_, err = c.GetMovie(ctx, domain.Anonymous(), movieID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

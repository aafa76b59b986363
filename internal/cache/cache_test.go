package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)

	var got map[string]int
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}))
	hit, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, 1, got["a"])

	require.NoError(t, c.Delete(ctx, "k"))
	hit, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestMemoryCacheCounters(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(20 * time.Millisecond)

	n, err := c.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Incr(ctx, "gen")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// counters outlive the value TTL
	time.Sleep(60 * time.Millisecond)
	n, err = c.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	require.NoError(t, c.Set(ctx, "v", "x"))
	_, err = c.Counter(ctx, "v")
	require.Error(t, err)
	var dest string
	_, err = c.Get(ctx, "gen", &dest)
	require.Error(t, err)
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(20 * time.Millisecond)
	require.NoError(t, c.Set(ctx, "k", "v"))
	time.Sleep(60 * time.Millisecond)

	var got string
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(url, time.Minute)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Ping(ctx))

	key := "test:" + uuid.NewString()
	require.NoError(t, c.Set(ctx, key, []int{1, 2, 3}))
	var got []int
	hit, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, []int{1, 2, 3}, got)

	require.NoError(t, c.Delete(ctx, key))
	hit, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, hit)

	counter := key + ":gen"
	defer c.Client.Del(ctx, counter)
	n, err := c.Counter(ctx, counter)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	n, err = c.Incr(ctx, counter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = c.Counter(ctx, counter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNewRedisCacheRejectsBadURL(t *testing.T) {
	_, err := NewRedisCache("not-a-url", time.Minute)
	require.Error(t, err)
}

func sampleMovie() domain.Movie {
	r := domain.Rating(85)
	return domain.Movie{
		ID:              uuid.NewString(),
		Title:           "Arrival",
		DurationMinutes: 116,
		Rating:          &r,
		CreatedAt:       time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestMovieReaderReadThrough(t *testing.T) {
	ctx := context.Background()
	reader := NewMovieReader(NewMemoryCache(time.Minute), nil)
	movie := sampleMovie()

	var loads int32
	load := func(context.Context) (domain.Movie, error) {
		atomic.AddInt32(&loads, 1)
		return movie, nil
	}

	for i := 0; i < 3; i++ {
		got, err := reader.GetMovie(ctx, movie.ID, load)
		require.NoError(t, err)
		assert.Equal(t, movie.Title, got.Title)
		require.NotNil(t, got.Rating)
		assert.Equal(t, "8.5", got.Rating.String())
		assert.True(t, got.CreatedAt.Equal(movie.CreatedAt))
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))

	reader.Invalidate(ctx, movie.ID)
	_, err := reader.GetMovie(ctx, movie.ID, load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&loads))
}

func TestMovieReaderDoesNotCacheFailuresOrDeleted(t *testing.T) {
	ctx := context.Background()
	reader := NewMovieReader(NewMemoryCache(time.Minute), nil)
	id := uuid.NewString()

	boom := errors.New("boom")
	_, err := reader.GetMovie(ctx, id, func(context.Context) (domain.Movie, error) {
		return domain.Movie{}, boom
	})
	require.ErrorIs(t, err, boom)

	deleted := sampleMovie()
	deleted.ID = id
	deleted.Deletion = domain.DeletedAt(time.Now())
	var loads int
	load := func(context.Context) (domain.Movie, error) {
		loads++
		return deleted, nil
	}
	_, err = reader.GetMovie(ctx, id, load)
	require.NoError(t, err)
	_, err = reader.GetMovie(ctx, id, load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestMovieReaderCollapsesConcurrentLoads(t *testing.T) {
	ctx := context.Background()
	reader := NewMovieReader(NewMemoryCache(time.Minute), nil)
	movie := sampleMovie()

	release := make(chan struct{})
	var loads int32
	load := func(context.Context) (domain.Movie, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return movie, nil
	}

	const readers = 10
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := reader.GetMovie(ctx, movie.ID, load)
			assert.NoError(t, err)
			assert.Equal(t, movie.ID, got.ID)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

func TestMovieReaderDropsFillRacingInvalidate(t *testing.T) {
	ctx := context.Background()
	reader := NewMovieReader(NewMemoryCache(time.Minute), nil)
	before := sampleMovie()
	after := before
	r := domain.Rating(90)
	after.Rating = &r

	// The write commits and invalidates while the first fill is still
	// holding the pre-write row.
	got, err := reader.GetMovie(ctx, before.ID, func(context.Context) (domain.Movie, error) {
		reader.Invalidate(ctx, before.ID)
		return before, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "8.5", got.Rating.String())

	var loads int
	got, err = reader.GetMovie(ctx, before.ID, func(context.Context) (domain.Movie, error) {
		loads++
		return after, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, loads, "stale fill must not satisfy reads after invalidation")
	assert.Equal(t, "9.0", got.Rating.String())

	got, err = reader.GetMovie(ctx, before.ID, func(context.Context) (domain.Movie, error) {
		loads++
		return after, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
	assert.Equal(t, "9.0", got.Rating.String())
}

func TestMovieReaderSharedLoadSurvivesCallerCancel(t *testing.T) {
	reader := NewMovieReader(NewMemoryCache(time.Minute), nil)
	movie := sampleMovie()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	load := func(ctx context.Context) (domain.Movie, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return domain.Movie{}, err
		}
		return movie, nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := reader.GetMovie(firstCtx, movie.ID, load)
		firstErr <- err
	}()
	<-started

	type result struct {
		movie domain.Movie
		err   error
	}
	second := make(chan result, 1)
	go func() {
		m, err := reader.GetMovie(context.Background(), movie.ID, load)
		second <- result{m, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, movie.ID, res.movie.ID)
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string, any) (bool, error) {
	return false, errors.New("cache down")
}
func (brokenCache) Set(context.Context, string, any) error { return errors.New("cache down") }
func (brokenCache) Delete(context.Context, string) error { return errors.New("cache down") }
func (brokenCache) Incr(context.Context, string) (int64, error) {
	return 0, errors.New("cache down")
}
func (brokenCache) Counter(context.Context, string) (int64, error) {
	return 0, errors.New("cache down")
}

func TestMovieReaderBypassesBrokenCache(t *testing.T) {
	ctx := context.Background()
	reader := NewMovieReader(brokenCache{}, nil)
	movie := sampleMovie()

	got, err := reader.GetMovie(ctx, movie.ID, func(context.Context) (domain.Movie, error) {
		return movie, nil
	})
	require.NoError(t, err)
	assert.Equal(t, movie.ID, got.ID)
	reader.Invalidate(ctx, movie.ID)
}

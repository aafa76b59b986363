package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

// MovieReader is a read-through cache for the non-privileged movie view.
// Cache failures are logged and bypassed; only load errors reach callers.
type MovieReader struct {
	cache       Cache
	group       singleflight.Group
	loadTimeout time.Duration
	logger      *zap.Logger
}

const defaultLoadTimeout = 5 * time.Second

// NewMovieReader wraps c. logger may be nil.
func NewMovieReader(c Cache, logger *zap.Logger) *MovieReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MovieReader{cache: c, loadTimeout: defaultLoadTimeout, logger: logger}
}

type movieEntry struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	ReleaseDate     time.Time      `json:"releaseDate"`
	DurationMinutes int            `json:"durationMinutes"`
	Genre           string         `json:"genre"`
	Director        string         `json:"director"`
	Rating          *domain.Rating `json:"rating"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func entryFromMovie(m domain.Movie) movieEntry {
	return movieEntry{
		ID:              m.ID,
		Title:           m.Title,
		Description:     m.Description,
		ReleaseDate:     m.ReleaseDate,
		DurationMinutes: m.DurationMinutes,
		Genre:           m.Genre,
		Director:        m.Director,
		Rating:          m.Rating,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func (e movieEntry) movie() domain.Movie {
	return domain.Movie{
		ID:              e.ID,
		Title:           e.Title,
		Description:     e.Description,
		ReleaseDate:     e.ReleaseDate,
		DurationMinutes: e.DurationMinutes,
		Genre:           e.Genre,
		Director:        e.Director,
		Rating:          e.Rating,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

// Movie entries are keyed by a per-movie generation. Invalidate bumps the
// generation, so a fill that read the store before a write commits lands on a
// key no reader looks up again.
func generationKey(id string) string { return "movie:" + id + ":gen" }

func movieKey(id string, gen int64) string { return fmt.Sprintf("movie:%s:%d", id, gen) }

// GetMovie returns the cached movie or loads it, collapsing concurrent loads
// of the same id and generation. Soft-deleted movies are never stored.
//
// The shared load runs detached from any single caller's cancellation and is
// bounded by loadTimeout; each caller still returns early when its own ctx
// is done.
func (r *MovieReader) GetMovie(ctx context.Context, id string, load func(ctx context.Context) (domain.Movie, error)) (domain.Movie, error) {
	gen, err := r.cache.Counter(ctx, generationKey(id))
	if err != nil {
		r.logger.Warn("movie cache generation read failed", zap.String("movie_id", id), zap.Error(err))
		return load(ctx)
	}
	key := movieKey(id, gen)

	var entry movieEntry
	hit, err := r.cache.Get(ctx, key, &entry)
	if err != nil {
		r.logger.Warn("movie cache get failed", zap.String("movie_id", id), zap.Error(err))
	}
	if hit {
		return entry.movie(), nil
	}

	ch := r.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.loadTimeout)
		defer cancel()

		movie, err := load(loadCtx)
		if err != nil {
			return domain.Movie{}, err
		}
		if !movie.Deletion.IsDeleted() {
			if err := r.cache.Set(loadCtx, key, entryFromMovie(movie)); err != nil {
				r.logger.Warn("movie cache set failed", zap.String("movie_id", id), zap.Error(err))
			}
		}
		return movie, nil
	})

	select {
	case <-ctx.Done():
		return domain.Movie{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Movie{}, res.Err
		}
		return res.Val.(domain.Movie), nil
	}
}

// Invalidate moves the movie to a new generation, orphaning every entry
// stored under the previous one.
func (r *MovieReader) Invalidate(ctx context.Context, id string) {
	gen, err := r.cache.Incr(ctx, generationKey(id))
	if err != nil {
		r.logger.Warn("movie cache invalidate failed", zap.String("movie_id", id), zap.Error(err))
		return
	}
	if err := r.cache.Delete(ctx, movieKey(id, gen-1)); err != nil {
		r.logger.Debug("movie cache evict failed", zap.String("movie_id", id), zap.Error(err))
	}
}

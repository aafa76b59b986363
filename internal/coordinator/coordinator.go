// Package coordinator keeps reviews and the derived movie rating consistent.
// Every review mutation and the rating recompute it triggers commit or roll
// back together in one transaction.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/rating"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
)

// MovieCache is the read-through cache used for non-privileged movie reads.
type MovieCache interface {
	GetMovie(ctx context.Context, id string, load func(ctx context.Context) (domain.Movie, error)) (domain.Movie, error)
	Invalidate(ctx context.Context, id string)
}

// Coordinator orchestrates the review/rating write protocols and the
// role-aware reads.
type Coordinator struct {
	db      repository.Database
	cache   MovieCache
	metrics *Metrics
	logger  *zap.Logger
}

// New constructs a Coordinator. cache and metrics may be nil.
func New(db repository.Database, cache MovieCache, metrics *Metrics, logger *zap.Logger) *Coordinator {
	if cache == nil {
		cache = passthrough{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{db: db, cache: cache, metrics: metrics, logger: logger}
}

// Stage is the progress of one coordinated write.
type Stage int

const (
	StageStarted Stage = iota
	StageValidated
	StageReviewWritten
	StageRatingRecomputed
	StageMovieWritten
	StageCommitted
	StageAborted
)

func (s Stage) String() string {
	switch s {
	case StageStarted:
		return "started"
	case StageValidated:
		return "validated"
	case StageReviewWritten:
		return "review_written"
	case StageRatingRecomputed:
		return "rating_recomputed"
	case StageMovieWritten:
		return "movie_written"
	case StageCommitted:
		return "committed"
	case StageAborted:
		return "aborted"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

type operation struct {
	name     string
	stage    Stage
	started  time.Time
	movieID  string
	reviewID string

	// rating of the locked movie row before the write
	prevRating *domain.Rating
}

func (c *Coordinator) begin(name string) *operation {
	return &operation{name: name, stage: StageStarted, started: time.Now()}
}

func (o *operation) advance(s Stage) { o.stage = s }

// finish classifies err, records the outcome and returns the classified error.
func (c *Coordinator) finish(ctx context.Context, op *operation, err error) error {
	err = classify(err)
	reached := op.stage
	if err == nil {
		op.advance(StageCommitted)
		if op.movieID != "" {
			c.cache.Invalidate(context.WithoutCancel(ctx), op.movieID)
		}
	} else {
		op.advance(StageAborted)
	}
	c.metrics.observe(op.name, reached, err, time.Since(op.started))

	if err == nil {
		c.logger.Debug("coordinated write committed",
			zap.String("op", op.name),
			zap.String("movie_id", op.movieID),
			zap.String("review_id", op.reviewID),
		)
		return nil
	}

	fields := []zap.Field{
		zap.String("op", op.name),
		zap.String("stage", reached.String()),
		zap.String("kind", domain.Kind(err)),
		zap.String("movie_id", op.movieID),
		zap.String("review_id", op.reviewID),
		zap.Error(err),
	}
	if domain.Transient(err) {
		c.logger.Error("coordinated write aborted", fields...)
	} else {
		c.logger.Warn("coordinated write aborted", fields...)
	}
	return err
}

// recompute re-reads the full active review set of the movie, aggregates it
// and writes the result to the movie row, all within tx.
func (c *Coordinator) recompute(ctx context.Context, tx repository.Stores, op *operation, movieID string) error {
	active, err := tx.Reviews().FindActiveByMovie(ctx, movieID)
	if err != nil {
		return fmt.Errorf("load active reviews: %w", err)
	}
	agg := rating.Aggregate(domain.ActiveRatings(active))
	op.advance(StageRatingRecomputed)

	if err := tx.Movies().SetRating(ctx, movieID, agg); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrMovieNotFound, movieID)
		}
		return fmt.Errorf("set movie rating: %w", err)
	}
	op.advance(StageMovieWritten)
	if !rating.Equal(op.prevRating, agg) {
		c.logger.Debug("movie rating changed",
			zap.String("movie_id", movieID),
			zap.Stringer("from", op.prevRating),
			zap.Stringer("to", agg),
			zap.Int("reviews", len(active)),
		)
	}
	return nil
}

var taxonomy = []error{
	domain.ErrDuplicateReview,
	domain.ErrMovieNotFound,
	domain.ErrNotFound,
	domain.ErrForbidden,
	domain.ErrValidation,
	domain.ErrStorage,
}

// classify guarantees err wraps exactly one taxonomy member. Anything not
// already classified is a storage failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range taxonomy {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrStorage, err)
}

type passthrough struct{}

func (passthrough) GetMovie(ctx context.Context, _ string, load func(ctx context.Context) (domain.Movie, error)) (domain.Movie, error) {
	return load(ctx)
}

func (passthrough) Invalidate(context.Context, string) {}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/store"
)

var (
	// ErrNotFound indicates the requested entity does not exist or is not
	// visible to the caller.
	ErrNotFound = errors.New("repository: not found")
	// ErrForbidden indicates the row exists but is owned by someone else.
	ErrForbidden = errors.New("repository: not owned by caller")
	// ErrConflict indicates a uniqueness constraint rejected the write.
	ErrConflict = errors.New("repository: conflict")
	// ErrReference indicates a foreign key pointed at a missing row.
	ErrReference = errors.New("repository: referenced row missing")
)

const defaultTxTimeout = 5 * time.Second

// ReviewStore owns review rows. Reads taking a role apply the visibility
// policy; FindActiveByMovie is always active-only.
type ReviewStore interface {
	Create(ctx context.Context, draft domain.ReviewDraft) (domain.Review, error)
	Get(ctx context.Context, id string) (domain.Review, error)
	UpdateText(ctx context.Context, id, callerID, text string, rating int) (domain.Review, error)
	SoftDelete(ctx context.Context, id, callerID string) (domain.Review, error)
	FindActiveByAuthorAndMovie(ctx context.Context, authorID, movieID string) (domain.Review, error)
	FindActiveByMovie(ctx context.Context, movieID string) ([]domain.Review, error)
	FindByID(ctx context.Context, id string, role domain.Role) (domain.Review, error)
	FindByMovie(ctx context.Context, movieID string, role domain.Role) ([]domain.Review, error)
	FindByUser(ctx context.Context, userID string, role domain.Role) ([]domain.Review, error)
	FindAll(ctx context.Context, role domain.Role) ([]domain.Review, error)
}

// MovieStore owns movie rows including the aggregate rating column.
type MovieStore interface {
	Create(ctx context.Context, fields domain.MovieFields) (domain.Movie, error)
	GetByID(ctx context.Context, id string, role domain.Role) (domain.Movie, error)
	List(ctx context.Context, filters MovieListFilters, role domain.Role) (MovieListResult, error)
	Update(ctx context.Context, id string, patch domain.MoviePatch) (domain.Movie, error)
	SoftDelete(ctx context.Context, id string) (domain.Movie, error)
	LockForUpdate(ctx context.Context, id string) (domain.Movie, error)
	SetRating(ctx context.Context, id string, rating *domain.Rating) error
}

// Stores groups the stores bound to one connection or transaction.
type Stores interface {
	Movies() MovieStore
	Reviews() ReviewStore
}

// Database is a Stores that can also open a transaction. fn receives the
// transaction's context and stores; returning an error rolls back.
type Database interface {
	Stores
	InTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository aggregates the Postgres-backed stores.
type Repository struct {
	pool      *pgxpool.Pool
	movies    *MoviesRepository
	reviews   *ReviewsRepository
	txTimeout time.Duration
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store, txTimeout time.Duration) *Repository {
	r := NewWithPool(st.Pool())
	if txTimeout > 0 {
		r.txTimeout = txTimeout
	}
	return r
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool:      pool,
		movies:    &MoviesRepository{db: pool},
		reviews:   &ReviewsRepository{db: pool},
		txTimeout: defaultTxTimeout,
	}
}

// Movies returns the pool-bound movie store.
func (r *Repository) Movies() MovieStore { return r.movies }

// Reviews returns the pool-bound review store.
func (r *Repository) Reviews() ReviewStore { return r.reviews }

type txStores struct {
	movies  *MoviesRepository
	reviews *ReviewsRepository
}

func (t txStores) Movies() MovieStore   { return t.movies }
func (t txStores) Reviews() ReviewStore { return t.reviews }

// InTx runs fn inside one read-committed transaction. The transaction is
// rolled back on every exit path except a successful commit, including a
// context cancelled while fn was running.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok && r.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.txTimeout)
		defer cancel()
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(ctx, txStores{
		movies:  &MoviesRepository{db: tx},
		reviews: &ReviewsRepository{db: tx},
	}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// translateWriteError maps constraint violations to repository sentinels.
func translateWriteError(err error) error {
	switch pgErrorCode(err) {
	case "23505":
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case "23503":
		return fmt.Errorf("%w: %v", ErrReference, err)
	}
	return err
}

// Package memory provides an in-process implementation of the repository
// stores. Transactions serialize on one coarse lock and commit by swapping a
// copy of the state, so a failed transaction leaves nothing behind.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
)

type state struct {
	movies  map[string]domain.Movie
	reviews map[string]domain.Review
}

func (s state) clone() state {
	next := state{
		movies:  make(map[string]domain.Movie, len(s.movies)),
		reviews: make(map[string]domain.Review, len(s.reviews)),
	}
	for k, v := range s.movies {
		next.movies[k] = v
	}
	for k, v := range s.reviews {
		next.reviews[k] = v
	}
	return next
}

// Store is an in-memory repository.Database.
type Store struct {
	mu    sync.RWMutex
	state state
	last  time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{state: state{
		movies:  make(map[string]domain.Movie),
		reviews: make(map[string]domain.Review),
	}}
}

var _ repository.Database = (*Store)(nil)

// Movies returns a movie store that autocommits every write.
func (s *Store) Movies() repository.MovieStore {
	return &movieStore{v: committedView{s: s}, clock: s.tick}
}

// Reviews returns a review store that autocommits every write.
func (s *Store) Reviews() repository.ReviewStore {
	return &reviewStore{v: committedView{s: s}, clock: s.tick}
}

// InTx runs fn against a private copy of the state while holding the store
// lock, and publishes the copy only when fn succeeds and ctx is still live.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	v := txView{st: &next}
	if err := fn(ctx, txStores{
		movies:  &movieStore{v: v, clock: s.tick},
		reviews: &reviewStore{v: v, clock: s.tick},
	}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	s.state = next
	return nil
}

// tick returns a strictly increasing UTC timestamp. Callers hold s.mu.
func (s *Store) tick() time.Time {
	now := time.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

type txStores struct {
	movies  *movieStore
	reviews *reviewStore
}

func (t txStores) Movies() repository.MovieStore   { return t.movies }
func (t txStores) Reviews() repository.ReviewStore { return t.reviews }

type view interface {
	read(fn func(st *state) error) error
	write(fn func(st *state) error) error
}

type committedView struct{ s *Store }

func (v committedView) read(fn func(st *state) error) error {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return fn(&v.s.state)
}

func (v committedView) write(fn func(st *state) error) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	next := v.s.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	v.s.state = next
	return nil
}

type txView struct{ st *state }

func (v txView) read(fn func(st *state) error) error  { return fn(v.st) }
func (v txView) write(fn func(st *state) error) error { return fn(v.st) }

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type movieStore struct {
	v     view
	clock func() time.Time
}

func (m *movieStore) Create(_ context.Context, fields domain.MovieFields) (domain.Movie, error) {
	var out domain.Movie
	err := m.v.write(func(st *state) error {
		now := m.clock()
		out = domain.Movie{
			ID:              uuid.NewString(),
			Title:           fields.Title,
			Description:     fields.Description,
			ReleaseDate:     fields.ReleaseDate,
			DurationMinutes: fields.DurationMinutes,
			Genre:           fields.Genre,
			Director:        fields.Director,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		st.movies[out.ID] = out
		return nil
	})
	return out, err
}

func (m *movieStore) GetByID(_ context.Context, id string, role domain.Role) (domain.Movie, error) {
	var out domain.Movie
	err := m.v.read(func(st *state) error {
		movie, ok := st.movies[id]
		if !ok || !domain.IsVisible(movie, role) {
			return repository.ErrNotFound
		}
		out = movie
		return nil
	})
	return out, err
}

func (m *movieStore) LockForUpdate(_ context.Context, id string) (domain.Movie, error) {
	var out domain.Movie
	err := m.v.read(func(st *state) error {
		movie, ok := st.movies[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = movie
		return nil
	})
	return out, err
}

func (m *movieStore) Update(_ context.Context, id string, patch domain.MoviePatch) (domain.Movie, error) {
	var out domain.Movie
	err := m.v.write(func(st *state) error {
		movie, ok := st.movies[id]
		if !ok || movie.Deletion.IsDeleted() {
			return repository.ErrNotFound
		}
		if patch.Title != nil {
			movie.Title = *patch.Title
		}
		if patch.Description != nil {
			movie.Description = *patch.Description
		}
		if patch.ReleaseDate != nil {
			movie.ReleaseDate = *patch.ReleaseDate
		}
		if patch.DurationMinutes != nil {
			movie.DurationMinutes = *patch.DurationMinutes
		}
		if patch.Genre != nil {
			movie.Genre = *patch.Genre
		}
		if patch.Director != nil {
			movie.Director = *patch.Director
		}
		movie.UpdatedAt = m.clock()
		st.movies[id] = movie
		out = movie
		return nil
	})
	return out, err
}

func (m *movieStore) SoftDelete(_ context.Context, id string) (domain.Movie, error) {
	var out domain.Movie
	err := m.v.write(func(st *state) error {
		movie, ok := st.movies[id]
		if !ok || movie.Deletion.IsDeleted() {
			return repository.ErrNotFound
		}
		now := m.clock()
		movie.Deletion = domain.DeletedAt(now)
		movie.UpdatedAt = now
		st.movies[id] = movie
		out = movie
		return nil
	})
	return out, err
}

func (m *movieStore) SetRating(_ context.Context, id string, rating *domain.Rating) error {
	return m.v.write(func(st *state) error {
		movie, ok := st.movies[id]
		if !ok {
			return repository.ErrNotFound
		}
		if rating != nil {
			r := *rating
			movie.Rating = &r
		} else {
			movie.Rating = nil
		}
		movie.UpdatedAt = m.clock()
		st.movies[id] = movie
		return nil
	})
}

func (m *movieStore) List(_ context.Context, filters repository.MovieListFilters, role domain.Role) (repository.MovieListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	} else if filters.Limit > 100 {
		filters.Limit = 100
	}

	var items []domain.Movie
	err := m.v.read(func(st *state) error {
		for _, movie := range st.movies {
			if matchesMovie(movie, filters, role) {
				items = append(items, movie)
			}
		}
		return nil
	})
	if err != nil {
		return repository.MovieListResult{}, err
	}

	sort.Slice(items, func(i, j int) bool { return newerFirst(items[i].CreatedAt, items[i].ID, items[j].CreatedAt, items[j].ID) })
	if len(items) > filters.Limit {
		items = items[:filters.Limit]
	}
	if items == nil {
		items = []domain.Movie{}
	}

	result := repository.MovieListResult{Items: items}
	if len(items) == filters.Limit {
		last := items[len(items)-1]
		token, err := repository.EncodeCursor(repository.MovieCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return repository.MovieListResult{}, err
		}
		result.NextCursor = &token
	}
	return result, nil
}

func matchesMovie(movie domain.Movie, filters repository.MovieListFilters, role domain.Role) bool {
	if !domain.IsVisible(movie, role) {
		return false
	}
	if filters.Query != nil {
		if q := strings.ToLower(strings.TrimSpace(*filters.Query)); q != "" &&
			!strings.Contains(strings.ToLower(movie.Title), q) &&
			!strings.Contains(strings.ToLower(movie.Director), q) {
			return false
		}
	}
	if filters.Genre != nil {
		if g := strings.TrimSpace(*filters.Genre); g != "" && !strings.EqualFold(movie.Genre, g) {
			return false
		}
	}
	if c := filters.Cursor; c != nil {
		if !newerFirst(c.CreatedAt, c.ID, movie.CreatedAt, movie.ID) {
			return false
		}
	}
	return true
}

// newerFirst orders by (created_at, id) descending.
func newerFirst(aAt time.Time, aID string, bAt time.Time, bID string) bool {
	if !aAt.Equal(bAt) {
		return aAt.After(bAt)
	}
	return aID > bID
}

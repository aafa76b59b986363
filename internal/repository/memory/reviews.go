package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
)

type reviewStore struct {
	v     view
	clock func() time.Time
}

func (r *reviewStore) Create(_ context.Context, draft domain.ReviewDraft) (domain.Review, error) {
	if !validID(draft.MovieID) || !validID(draft.AuthorID) {
		return domain.Review{}, repository.ErrReference
	}
	var out domain.Review
	err := r.v.write(func(st *state) error {
		if _, ok := st.movies[draft.MovieID]; !ok {
			return repository.ErrReference
		}
		for _, existing := range st.reviews {
			if existing.Active() && existing.AuthorID == draft.AuthorID && existing.MovieID == draft.MovieID {
				return repository.ErrConflict
			}
		}
		now := r.clock()
		out = domain.Review{
			ID:        uuid.NewString(),
			Text:      draft.Text,
			Rating:    draft.Rating,
			MovieID:   draft.MovieID,
			AuthorID:  draft.AuthorID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.reviews[out.ID] = out
		return nil
	})
	return out, err
}

func (r *reviewStore) Get(ctx context.Context, id string) (domain.Review, error) {
	return r.FindByID(ctx, id, domain.RoleAdmin)
}

func (r *reviewStore) FindByID(_ context.Context, id string, role domain.Role) (domain.Review, error) {
	var out domain.Review
	err := r.v.read(func(st *state) error {
		review, ok := st.reviews[id]
		if !ok || !domain.IsVisible(review, role) {
			return repository.ErrNotFound
		}
		out = review
		return nil
	})
	return out, err
}

func (r *reviewStore) UpdateText(_ context.Context, id, callerID, text string, rating int) (domain.Review, error) {
	var out domain.Review
	err := r.v.write(func(st *state) error {
		review, err := ownedActive(st, id, callerID)
		if err != nil {
			return err
		}
		review.Text = text
		review.Rating = rating
		review.UpdatedAt = r.clock()
		st.reviews[id] = review
		out = review
		return nil
	})
	return out, err
}

func (r *reviewStore) SoftDelete(_ context.Context, id, callerID string) (domain.Review, error) {
	var out domain.Review
	err := r.v.write(func(st *state) error {
		review, err := ownedActive(st, id, callerID)
		if err != nil {
			return err
		}
		now := r.clock()
		review.Deletion = domain.DeletedAt(now)
		review.UpdatedAt = now
		st.reviews[id] = review
		out = review
		return nil
	})
	return out, err
}

func ownedActive(st *state, id, callerID string) (domain.Review, error) {
	review, ok := st.reviews[id]
	if !ok || !review.Active() {
		return domain.Review{}, repository.ErrNotFound
	}
	if review.AuthorID != callerID {
		return domain.Review{}, repository.ErrForbidden
	}
	return review, nil
}

func (r *reviewStore) FindActiveByAuthorAndMovie(_ context.Context, authorID, movieID string) (domain.Review, error) {
	var out domain.Review
	err := r.v.read(func(st *state) error {
		for _, review := range st.reviews {
			if review.Active() && review.AuthorID == authorID && review.MovieID == movieID {
				out = review
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *reviewStore) FindActiveByMovie(_ context.Context, movieID string) ([]domain.Review, error) {
	return r.collect(func(rv domain.Review) bool {
		return rv.MovieID == movieID && rv.Active()
	}, domain.RoleReviewer)
}

func (r *reviewStore) FindByMovie(_ context.Context, movieID string, role domain.Role) ([]domain.Review, error) {
	return r.collect(func(rv domain.Review) bool {
		return rv.MovieID == movieID
	}, role)
}

func (r *reviewStore) FindByUser(_ context.Context, userID string, role domain.Role) ([]domain.Review, error) {
	return r.collect(func(rv domain.Review) bool {
		return rv.AuthorID == userID
	}, role)
}

func (r *reviewStore) FindAll(_ context.Context, role domain.Role) ([]domain.Review, error) {
	return r.collect(func(domain.Review) bool { return true }, role)
}

// collect returns the matching reviews visible to role, newest first.
func (r *reviewStore) collect(keep func(domain.Review) bool, role domain.Role) ([]domain.Review, error) {
	out := make([]domain.Review, 0)
	err := r.v.read(func(st *state) error {
		for _, review := range st.reviews {
			if keep(review) {
				out = append(out, review)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out = domain.FilterVisible(out, role)
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

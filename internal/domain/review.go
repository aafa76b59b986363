package domain

import "time"

// Review is a single user's review of a movie. At most one active review
// exists per (AuthorID, MovieID).
type Review struct {
	ID        string
	Text      string
	Rating    int
	MovieID   string
	AuthorID  string
	CreatedAt time.Time
	UpdatedAt time.Time
	Deletion  Deletion
}

// DeletionState implements SoftDeletable.
func (r Review) DeletionState() Deletion { return r.Deletion }

// Active reports whether the review counts towards its movie's rating.
func (r Review) Active() bool { return !r.Deletion.IsDeleted() }

// ReviewDraft is the validated input for a new review.
type ReviewDraft struct {
	AuthorID string
	MovieID  string
	Text     string
	Rating   int
}

// ActiveRatings extracts the rating values of the active reviews in rs.
func ActiveRatings(rs []Review) []int {
	out := make([]int, 0, len(rs))
	for _, r := range rs {
		if r.Active() {
			out = append(out, r.Rating)
		}
	}
	return out
}

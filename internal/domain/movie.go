package domain

import "time"

// Movie represents the canonical movie entity in the database/service.
// Rating is nil while the movie has no active reviews.
type Movie struct {
	ID              string
	Title           string
	Description     string
	ReleaseDate     time.Time
	DurationMinutes int
	Genre           string
	Director        string
	Rating          *Rating
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Deletion        Deletion
}

// DeletionState implements SoftDeletable.
func (m Movie) DeletionState() Deletion { return m.Deletion }

// MovieFields carries the editable movie columns. Rating is not among them:
// only the review recompute path writes it.
type MovieFields struct {
	Title           string
	Description     string
	ReleaseDate     time.Time
	DurationMinutes int
	Genre           string
	Director        string
}

// MoviePatch is a partial update; nil fields keep their stored value.
type MoviePatch struct {
	Title           *string
	Description     *string
	ReleaseDate     *time.Time
	DurationMinutes *int
	Genre           *string
	Director        *string
}

// Empty reports whether the patch changes nothing.
func (p MoviePatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.ReleaseDate == nil &&
		p.DurationMinutes == nil && p.Genre == nil && p.Director == nil
}

package domain

import "errors"

// Failure taxonomy returned by the review/rating core. Callers match with
// errors.Is; every coordinated-write failure wraps exactly one of these.
var (
	ErrDuplicateReview = errors.New("duplicate review")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrMovieNotFound   = errors.New("movie not found")
	ErrValidation      = errors.New("validation error")
	ErrStorage         = errors.New("storage failure")
)

// Kind names the taxonomy member wrapped by err, for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicateReview):
		return "duplicate_review"
	case errors.Is(err, ErrMovieNotFound):
		return "movie_not_found"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "storage"
	}
}

// Transient reports whether a retry by the caller could succeed.
func Transient(err error) bool {
	return err != nil && Kind(err) == "storage"
}

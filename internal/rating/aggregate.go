// Package rating computes the aggregate movie rating from review ratings.
package rating

import "github.com/Clark-Hu/movie-reviews/internal/domain"

// Aggregate returns the arithmetic mean of ratings with one fractional digit,
// rounding half-up, or nil when ratings is empty. The computation is exact
// integer arithmetic so input order never affects the result.
func Aggregate(ratings []int) *domain.Rating {
	n := len(ratings)
	if n == 0 {
		return nil
	}
	sum := 0
	for _, v := range ratings {
		sum += v
	}
	tenths, rem := (sum*10)/n, (sum*10)%n
	if 2*rem >= n {
		tenths++
	}
	r := domain.Rating(tenths)
	return &r
}

// Equal compares two optional ratings.
func Equal(a, b *domain.Rating) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

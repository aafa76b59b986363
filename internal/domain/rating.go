package domain

import (
	"fmt"
	"math"
	"strconv"
)

// Rating is an aggregate movie rating with one fractional digit, held in
// tenths: 8.5 is Rating(85).
type Rating int

const (
	MinRating Rating = 10
	MaxRating Rating = 100
)

// RatingFromFloat rounds f to the nearest tenth.
func RatingFromFloat(f float64) Rating {
	return Rating(math.Round(f * 10))
}

// Float64 returns the rating as a float, e.g. 8.5.
func (r Rating) Float64() float64 { return float64(r) / 10 }

// String renders the rating with exactly one fractional digit.
func (r Rating) String() string {
	return fmt.Sprintf("%d.%d", int(r)/10, int(r)%10)
}

// Valid reports whether the rating lies in [1.0, 10.0].
func (r Rating) Valid() bool { return r >= MinRating && r <= MaxRating }

// MarshalJSON encodes the rating as a JSON number with one decimal.
func (r Rating) MarshalJSON() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalJSON accepts any JSON number and rounds it to tenths.
func (r *Rating) UnmarshalJSON(data []byte) error {
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("rating: %w", err)
	}
	*r = RatingFromFloat(f)
	return nil
}

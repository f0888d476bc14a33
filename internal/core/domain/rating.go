package domain

import "time"

// Weight bounds for every (parameter, value) pair
const (
	MinWeight     = 0.0
	MaxWeight     = 200.0
	DefaultWeight = 100.0

	// RatingStep converts a signed rating into a weight delta
	RatingStep = 5.0
)

// RatingScale identifies how a stored rating should be read
type RatingScale string

const (
	ScaleSigned    RatingScale = "signed"     // -3, -1, 1, 3
	ScaleFivePoint RatingScale = "five_point" // legacy 1..5
)

// ValidRatings returns the ratings accepted by the rate operation
func ValidRatings() []int {
	return []int{-3, -1, 1, 3}
}

// IsValidRating checks a rating on the signed scale
func IsValidRating(rating int) bool {
	for _, r := range ValidRatings() {
		if r == rating {
			return true
		}
	}
	return false
}

// ClampWeight bounds w to [MinWeight, MaxWeight]
func ClampWeight(w float64) float64 {
	if w < MinWeight {
		return MinWeight
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return w
}

// RatingDelta returns the weight delta for a signed rating
func RatingDelta(rating int) float64 {
	return float64(rating) * RatingStep
}

// Rerate moves a weight from old to the value it would have if the rated
// generation had contributed delta instead of previous. It returns the new
// weight and what the generation now contributes after clamping.
func Rerate(old, previous, delta float64) (next, contributed float64) {
	base := old - previous
	next = ClampWeight(base + delta)
	return next, next - base
}

// RatingWrite is a rating to record on a generation
type RatingWrite struct {
	Rating  int
	Scale   RatingScale
	Comment string
	RatedAt time.Time
}

// WeightDelta is what one generation's rating contributed to one pair
type WeightDelta struct {
	Parameter string  `json:"parameter"`
	Value     string  `json:"value"`
	Delta     float64 `json:"delta"`
}

// WeightPlan returns the next weight of a pair and the generation's contribution to it
type WeightPlan func(key ParameterKey, old float64) (next, contributed float64)

// RatingPlanner inspects a locked generation and returns the pairs to change.
// Returning no keys records the rating without touching any weight.
type RatingPlanner func(gen *Generation) ([]ParameterKey, WeightPlan, error)

// SignedRating converts a rating on the given scale to the signed scale.
// Five-point ratings map 1→-3, 2→-1, 3→0, 4→1, 5→3.
func SignedRating(rating int, scale RatingScale) int {
	if scale != ScaleFivePoint {
		return rating
	}
	switch rating {
	case 1:
		return -3
	case 2:
		return -1
	case 4:
		return 1
	case 5:
		return 3
	default:
		return 0
	}
}

// Sentiment is the liked/disliked reading of a rating
type Sentiment int

const (
	SentimentNeutral Sentiment = iota
	SentimentLiked
	SentimentDisliked
)

// RatingSentiment classifies a rating according to its scale
func RatingSentiment(rating int, scale RatingScale) Sentiment {
	if scale == ScaleFivePoint {
		switch {
		case rating >= 4:
			return SentimentLiked
		case rating <= 2:
			return SentimentDisliked
		default:
			return SentimentNeutral
		}
	}
	switch {
	case rating > 0:
		return SentimentLiked
	case rating < 0:
		return SentimentDisliked
	default:
		return SentimentNeutral
	}
}

package taxonomy

import "github.com/alejandroruanova/preference-engine/internal/core/domain"

// datingCategories is the fixed taxonomy for dating profile photography.
// Order matters: it is the order categories are stored, selected and rendered in.
var datingCategories = []domain.Category{
	{Name: "setting", Values: []string{"coffee_shop", "city_street", "park", "beach", "rooftop_bar", "home_interior"}},
	{Name: "activity", Values: []string{"laughing_with_friends", "walking", "reading", "cooking", "hiking", "playing_guitar"}},
	{Name: "outfit_style", Values: []string{"smart_casual", "streetwear", "business_casual", "athletic", "evening_wear"}},
	{Name: "lighting", Values: []string{"golden_hour", "soft_window_light", "overcast", "warm_indoor", "blue_hour"}},
	{Name: "camera_angle", Values: []string{"eye_level", "slightly_above", "slightly_below", "three_quarter"}},
	{Name: "shot_type", Values: []string{"close_up", "head_and_shoulders", "waist_up", "full_body", "environmental_portrait"}},
	{Name: "expression", Values: []string{"genuine_smile", "soft_smile", "laughing", "confident_neutral", "playful"}},
	{Name: "pose", Values: []string{"candid", "leaning", "seated", "walking_toward_camera", "looking_over_shoulder"}},
	{Name: "time_of_day", Values: []string{"morning", "midday", "afternoon", "sunset", "evening"}},
	{Name: "color_palette", Values: []string{"warm_tones", "cool_tones", "neutral_earth", "vibrant", "muted_pastel"}},
	{Name: "photo_style", Values: []string{"natural_candid", "editorial", "lifestyle", "film_look", "clean_minimal"}},
}

// DatingTaxonomy returns a fresh copy of the fixed dating taxonomy
func DatingTaxonomy() domain.Taxonomy {
	return domain.NewTaxonomy(datingCategories...)
}

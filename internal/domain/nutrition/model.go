package nutrition

import (
	"errors"
	"strings"
)

var (
	ErrNotFound     = errors.New("food not found")
	ErrNameRequired = errors.New("food name is required")
)

// Food is a reference nutrition record looked up by exact name.
type Food struct {
	FoodID           string  `json:"food_id" bson:"food_id"`
	Name             string  `json:"name" bson:"name"`
	Cuisine          string  `json:"cuisine" bson:"cuisine"`
	Category         string  `json:"category" bson:"category"`
	SubCategory      string  `json:"sub_category" bson:"sub_category"`
	Calories         float64 `json:"calories" bson:"calories"`
	Protein          float64 `json:"protein" bson:"protein"`
	Fat              float64 `json:"fat" bson:"fat"`
	Carbs            float64 `json:"carbs" bson:"carbs"`
	Fiber            float64 `json:"fiber" bson:"fiber"`
	Sugar            float64 `json:"sugar" bson:"sugar"`
	Allergens        string  `json:"allergens" bson:"allergens"`
	AyurvedicProfile string  `json:"ayurvedic_profile" bson:"ayurvedic_profile"`
	Vegan            string  `json:"vegan" bson:"vegan"`
	Vegetarian       string  `json:"vegetarian" bson:"vegetarian"`
	Origin           string  `json:"origin" bson:"origin"`
	PopularityScore  float64 `json:"popularity_score" bson:"popularity_score"`
}

// Key is the identity used when seeding. Records without a food_id are
// keyed by name.
func (f Food) Key() string {
	if id := strings.TrimSpace(f.FoodID); id != "" {
		return id
	}
	return strings.TrimSpace(f.Name)
}

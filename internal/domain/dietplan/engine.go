// Package dietplan derives a structured diet plan from a patient's
// Ayurvedic constitution and digestive strength.
package dietplan

import (
	"fmt"
	"time"
)

// FallbackRecommendation is the single entry of a plan generated for an
// unrecognized constitution.
const FallbackRecommendation = "Please consult for personalized diet plan"

var templates = map[Prakriti]Plan{
	Vata: {
		Breakfast:       []string{"Warm oatmeal with nuts", "Hot milk with turmeric", "Stewed fruits"},
		Lunch:           []string{"Warm rice", "Yellow dal", "Cooked vegetables", "Ghee"},
		Dinner:          []string{"Vegetable soup", "Whole grain bread", "Light curry"},
		Snacks:          []string{"Soaked almonds", "Warm herbal tea", "Dates"},
		Restrictions:    []string{"Cold foods", "Raw vegetables", "Carbonated drinks"},
		Recommendations: []string{"Eat warm foods", "Regular meal times", "Include healthy fats"},
	},
	Pitta: {
		Breakfast:       []string{"Sweet fruits", "Coconut water", "Wheat porridge"},
		Lunch:           []string{"Basmati rice", "Green vegetables", "Cucumber salad"},
		Dinner:          []string{"Light khichdi", "Cooling vegetables", "Buttermilk"},
		Snacks:          []string{"Fresh fruits", "Coconut pieces", "Rose tea"},
		Restrictions:    []string{"Spicy foods", "Fermented foods", "Excessive salt"},
		Recommendations: []string{"Cool or room temperature foods", "Light meals", "Avoid skipping meals"},
	},
	Kapha: {
		Breakfast:       []string{"Light fruits", "Dry toast", "Green tea"},
		Lunch:           []string{"Quinoa", "Steamed vegetables", "Lentil soup"},
		Dinner:          []string{"Millet roti", "Grilled vegetables", "Clear soup"},
		Snacks:          []string{"Roasted seeds", "Spiced tea", "Apple"},
		Restrictions:    []string{"Heavy dairy", "Fried foods", "Excessive sweets"},
		Recommendations: []string{"Light and dry foods", "Warm foods", "Exercise before meals"},
	},
}

var agniRecommendations = map[Agni][]string{
	Mandya:  {"Small, frequent meals", "Easy to digest foods", "Avoid heavy foods"},
	Tikshna: {"Regular sized meals", "Include cooling foods", "Avoid excessive spices"},
}

// Engine generates diet charts. It holds no state besides its clock.
type Engine struct {
	Clock func() time.Time
}

func NewEngine() *Engine {
	return &Engine{Clock: func() time.Time { return time.Now().UTC() }}
}

// Plan returns the diet plan for s. It never fails: an unrecognized
// constitution yields the generic fallback plan.
func (e *Engine) Plan(s Subject) Plan {
	base, ok := templates[s.Prakriti]
	if !ok {
		base = Plan{Recommendations: []string{FallbackRecommendation}}
	}
	plan := base.Clone()
	plan.Recommendations = append(plan.Recommendations, agniRecommendations[s.Agni]...)
	return plan
}

// Generate produces a dated chart for s.
func (e *Engine) Generate(s Subject) Chart {
	return Chart{
		Date:  e.now(),
		Diet:  e.Plan(s),
		Notes: Notes(s),
	}
}

// Notes composes the chart note for s. It is deterministic in s.
func Notes(s Subject) string {
	notes := fmt.Sprintf("Diet chart generated for %s", s.Name)
	if s.Prakriti.Valid() && s.Agni.Valid() {
		notes += fmt.Sprintf(" (Prakriti: %s, Agni: %s)", s.Prakriti, s.Agni)
	}
	return notes
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return time.Now().UTC()
	}
	return e.Clock()
}

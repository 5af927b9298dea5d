package dietplan

import "time"

// Prakriti is a patient's dominant constitutional type.
type Prakriti string

const (
	Vata  Prakriti = "Vata"
	Pitta Prakriti = "Pitta"
	Kapha Prakriti = "Kapha"
)

// Valid reports whether p is one of the recognized constitutions.
func (p Prakriti) Valid() bool {
	switch p {
	case Vata, Pitta, Kapha:
		return true
	}
	return false
}

// Agni is a patient's digestive-strength category.
type Agni string

const (
	Mandya   Agni = "Mandya"
	Madhyama Agni = "Madhyama"
	Tikshna  Agni = "Tikshna"
)

func (a Agni) Valid() bool {
	switch a {
	case Mandya, Madhyama, Tikshna:
		return true
	}
	return false
}

// Plan holds the six line-item lists of a diet chart.
type Plan struct {
	Breakfast       []string `json:"breakfast" bson:"breakfast"`
	Lunch           []string `json:"lunch" bson:"lunch"`
	Dinner          []string `json:"dinner" bson:"dinner"`
	Snacks          []string `json:"snacks" bson:"snacks"`
	Restrictions    []string `json:"restrictions" bson:"restrictions"`
	Recommendations []string `json:"recommendations" bson:"recommendations"`
}

// Normalize replaces nil lists with empty ones so the plan always
// serializes six arrays.
func (p Plan) Normalize() Plan {
	return Plan{
		Breakfast:       nonNil(p.Breakfast),
		Lunch:           nonNil(p.Lunch),
		Dinner:          nonNil(p.Dinner),
		Snacks:          nonNil(p.Snacks),
		Restrictions:    nonNil(p.Restrictions),
		Recommendations: nonNil(p.Recommendations),
	}
}

// Clone returns a deep copy of the plan.
func (p Plan) Clone() Plan {
	return Plan{
		Breakfast:       clone(p.Breakfast),
		Lunch:           clone(p.Lunch),
		Dinner:          clone(p.Dinner),
		Snacks:          clone(p.Snacks),
		Restrictions:    clone(p.Restrictions),
		Recommendations: clone(p.Recommendations),
	}
}

// Chart is one generated version in a patient's diet chart history.
type Chart struct {
	Date  time.Time `json:"date" bson:"date"`
	Diet  Plan      `json:"diet" bson:"diet"`
	Notes string    `json:"notes" bson:"notes"`
}

func (c Chart) Clone() Chart {
	return Chart{Date: c.Date, Diet: c.Diet.Clone(), Notes: c.Notes}
}

// Subject is the slice of a patient profile the engine reads.
type Subject struct {
	Name     string
	Prakriti Prakriti
	Agni     Agni
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func clone(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	return out
}

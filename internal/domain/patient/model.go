package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayurclinic/clinic/internal/domain/dietplan"
)

type Gender string

const (
	Male   Gender = "Male"
	Female Gender = "Female"
	Other  Gender = "Other"
)

func (g Gender) Valid() bool {
	switch g {
	case Male, Female, Other:
		return true
	}
	return false
}

// Patient is a clinic patient profile together with its login identity
// and diet chart history.
type Patient struct {
	ID               uuid.UUID         `json:"id" bson:"-"`
	Name             string            `json:"name" bson:"name"`
	Age              *int              `json:"age,omitempty" bson:"age,omitempty"`
	Gender           Gender            `json:"gender" bson:"gender"`
	DominantPrakriti dietplan.Prakriti `json:"dominantPrakriti" bson:"dominantPrakriti"`
	Dosha            string            `json:"dosha,omitempty" bson:"dosha,omitempty"`
	Lifestyle        string            `json:"lifestyle,omitempty" bson:"lifestyle,omitempty"`
	ExistingDisease  string            `json:"existingDisease,omitempty" bson:"existingDisease,omitempty"`
	BP               *string           `json:"bp,omitempty" bson:"bp,omitempty"`
	Weight           *float64          `json:"weight,omitempty" bson:"weight,omitempty"`
	Agni             dietplan.Agni     `json:"agni" bson:"agni"`
	LoginID          string            `json:"loginId" bson:"loginId"`
	PasswordHash     string            `json:"-" bson:"password"`
	AddedBy          string            `json:"addedBy" bson:"addedBy"`
	DietCharts       []dietplan.Chart  `json:"dietCharts" bson:"dietCharts"`
	ChartVersion     int64             `json:"-" bson:"chartVersion"`
	// ChartCount is filled by list queries that skip loading the history.
	ChartCount int        `json:"-" bson:"-"`
	CreatedAt  time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt" bson:"updatedAt"`
	LastLogin  *time.Time `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"`
}

// Subject returns the attributes the diet plan engine works from.
func (p *Patient) Subject() dietplan.Subject {
	return dietplan.Subject{Name: p.Name, Prakriti: p.DominantPrakriti, Agni: p.Agni}
}

// Apply copies the editable attributes of in onto p.
func (p *Patient) Apply(in ProfileInput) {
	p.Name = in.Name
	p.Age = in.Age
	p.Gender = in.Gender
	p.DominantPrakriti = in.DominantPrakriti
	p.Dosha = in.Dosha
	p.Lifestyle = in.Lifestyle
	p.ExistingDisease = in.ExistingDisease
	p.BP = in.BP
	p.Weight = in.Weight
	p.Agni = in.Agni
}

// Input returns a copy of the editable attributes of p. Decoding a patch
// into it leaves p untouched.
func (p *Patient) Input() ProfileInput {
	in := ProfileInput{
		Name:             p.Name,
		Gender:           p.Gender,
		DominantPrakriti: p.DominantPrakriti,
		Dosha:            p.Dosha,
		Lifestyle:        p.Lifestyle,
		ExistingDisease:  p.ExistingDisease,
		Agni:             p.Agni,
	}
	if p.Age != nil {
		age := *p.Age
		in.Age = &age
	}
	if p.BP != nil {
		bp := *p.BP
		in.BP = &bp
	}
	if p.Weight != nil {
		w := *p.Weight
		in.Weight = &w
	}
	return in
}

// ProfileInput is the set of attributes a practitioner may write. Login
// credentials are deliberately absent.
type ProfileInput struct {
	Name             string            `json:"name"`
	Age              *int              `json:"age,omitempty"`
	Gender           Gender            `json:"gender"`
	DominantPrakriti dietplan.Prakriti `json:"dominantPrakriti"`
	Dosha            string            `json:"dosha,omitempty"`
	Lifestyle        string            `json:"lifestyle,omitempty"`
	ExistingDisease  string            `json:"existingDisease,omitempty"`
	BP               *string           `json:"bp,omitempty"`
	Weight           *float64          `json:"weight,omitempty"`
	Agni             dietplan.Agni     `json:"agni"`
}

// Normalize trims every string attribute. An empty bp is treated as absent.
func (in ProfileInput) Normalize() ProfileInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Gender = Gender(strings.TrimSpace(string(in.Gender)))
	in.DominantPrakriti = dietplan.Prakriti(strings.TrimSpace(string(in.DominantPrakriti)))
	in.Agni = dietplan.Agni(strings.TrimSpace(string(in.Agni)))
	in.Dosha = strings.TrimSpace(in.Dosha)
	in.Lifestyle = strings.TrimSpace(in.Lifestyle)
	in.ExistingDisease = strings.TrimSpace(in.ExistingDisease)
	if in.BP != nil {
		bp := strings.TrimSpace(*in.BP)
		if bp == "" {
			in.BP = nil
		} else {
			in.BP = &bp
		}
	}
	return in
}

// Summary is the list-view projection of a patient.
type Summary struct {
	ID               uuid.UUID         `json:"id"`
	Name             string            `json:"name"`
	Age              *int              `json:"age,omitempty"`
	Gender           Gender            `json:"gender"`
	DominantPrakriti dietplan.Prakriti `json:"dominantPrakriti"`
	Agni             dietplan.Agni     `json:"agni"`
	LoginID          string            `json:"loginId"`
	ChartCount       int               `json:"chartCount"`
	CreatedAt        time.Time         `json:"createdAt"`
	LastLogin        *time.Time        `json:"lastLogin,omitempty"`
}

func (p *Patient) Summary() Summary {
	count := len(p.DietCharts)
	if p.ChartCount > count {
		count = p.ChartCount
	}
	return Summary{
		ID:               p.ID,
		Name:             p.Name,
		Age:              p.Age,
		Gender:           p.Gender,
		DominantPrakriti: p.DominantPrakriti,
		Agni:             p.Agni,
		LoginID:          p.LoginID,
		ChartCount:       count,
		CreatedAt:        p.CreatedAt,
		LastLogin:        p.LastLogin,
	}
}

// clone returns a deep copy so stores never share mutable state with callers.
func (p *Patient) clone() *Patient {
	cp := *p
	if p.Age != nil {
		v := *p.Age
		cp.Age = &v
	}
	if p.BP != nil {
		v := *p.BP
		cp.BP = &v
	}
	if p.Weight != nil {
		v := *p.Weight
		cp.Weight = &v
	}
	if p.LastLogin != nil {
		v := *p.LastLogin
		cp.LastLogin = &v
	}
	cp.DietCharts = cloneCharts(p.DietCharts)
	return &cp
}

func cloneCharts(charts []dietplan.Chart) []dietplan.Chart {
	out := make([]dietplan.Chart, len(charts))
	for i, c := range charts {
		out[i] = c.Clone()
	}
	return out
}

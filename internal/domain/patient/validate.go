package patient

import (
	"math"
	"regexp"
	"unicode/utf8"
)

const (
	minNameLength = 2
	minAge        = 1
	maxAge        = 150
)

var bpPattern = regexp.MustCompile(`^\d{2,3}/\d{2,3}$`)

// Validate checks every field rule and returns a *ValidationError listing
// all violations, or nil. The input is expected to be normalized.
func (in ProfileInput) Validate() error {
	verr := &ValidationError{}

	if utf8.RuneCountInString(in.Name) < minNameLength {
		verr.add("name", "Name must be at least 2 characters")
	}
	if in.Age != nil && (*in.Age < minAge || *in.Age > maxAge) {
		verr.add("age", "Age must be between 1 and 150")
	}
	if in.Weight != nil && (math.IsNaN(*in.Weight) || math.IsInf(*in.Weight, 0) || *in.Weight <= 0) {
		verr.add("weight", "Weight must be a positive number")
	}
	if in.BP != nil && !bpPattern.MatchString(*in.BP) {
		verr.add("bp", "BP must be in format like 120/80")
	}

	switch {
	case in.Gender == "":
		verr.add("gender", "Gender is required")
	case !in.Gender.Valid():
		verr.add("gender", "Gender must be one of Male, Female, Other")
	}
	switch {
	case in.DominantPrakriti == "":
		verr.add("dominantPrakriti", "Dominant Prakriti is required")
	case !in.DominantPrakriti.Valid():
		verr.add("dominantPrakriti", "Dominant Prakriti must be one of Vata, Pitta, Kapha")
	}
	switch {
	case in.Agni == "":
		verr.add("agni", "Agni is required")
	case !in.Agni.Valid():
		verr.add("agni", "Agni must be one of Mandya, Madhyama, Tikshna")
	}

	if len(verr.Violations) > 0 {
		return verr
	}
	return nil
}

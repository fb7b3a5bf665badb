package scoring

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SchemaVersion identifies the lookup tables and feature layout this binary
// expects inside an event model artifact.
const SchemaVersion = 1

// FeatureNames is the column order of every feature vector.
var FeatureNames = []string{"category", "department", "target_year", "capacity", "num_tags"}

// Encoding maps categorical event attributes to model indices. Values missing
// from a table encode as 0.
type Encoding struct {
	Version     int            `json:"version"`
	Categories  map[string]int `json:"categories"`
	Departments map[string]int `json:"departments"`
	Years       map[string]int `json:"years"`
}

// DefaultEncoding returns the version 1 lookup tables.
func DefaultEncoding() Encoding {
	return Encoding{
		Version: SchemaVersion,
		Categories: map[string]int{
			"Technology": 0, "Cultural": 1, "Sports": 2, "Academic": 3,
			"Professional": 4, "Workshop": 5, "Seminar": 6, "Competition": 7,
		},
		Departments: map[string]int{
			"Computer": 0, "Management": 1, "Science": 2, "Civil": 3, "Mechanical": 4, "Electrical": 5,
		},
		Years: map[string]int{"1": 0, "2": 1, "3": 2, "4": 3},
	}
}

// Input is the raw event description the feature builder consumes.
type Input struct {
	Category    string
	Department  string
	TargetYear  string
	MaxCapacity int
	Tags        []string
}

// Vector builds [category_idx, department_idx, year_idx, capacity, tag_count].
func (e Encoding) Vector(in Input) []float64 {
	return e.Features(in.Category, in.Department, in.TargetYear, float64(in.MaxCapacity), float64(len(in.Tags)))
}

// Features encodes one row. Training rows from the cleaned dataset go through
// here as well, so both sides share the same normalisation.
func (e Encoding) Features(category, department, year string, capacity, tagCount float64) []float64 {
	return []float64{
		float64(e.Categories[Capitalize(category)]),
		float64(e.Departments[Capitalize(department)]),
		float64(e.Years[strings.TrimSpace(year)]),
		capacity,
		tagCount,
	}
}

// Capitalize upper-cases the first letter of s and lower-cases the rest, after trimming.
func Capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

package fitness

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

var ErrInvalidAssessment = errors.New("invalid assessment")

const (
	maxGenderLength = 10 // assessments.gender column width

	maxSetsOrReps   = 10_000
	maxExerciseReps = 1_000_000 // sets*reps
)

type Exercise struct {
	Name string `json:"exercise"`
	Sets int    `json:"sets"`
	Reps int    `json:"reps"`
}

// Analyzable reports whether the entry takes part in the per-exercise analysis.
func (e Exercise) Analyzable() bool {
	return e.Name != "" && e.Sets != 0 && e.Reps != 0
}

func (e *Exercise) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name string     `json:"exercise"`
		Sets flexNumber `json:"sets"`
		Reps flexNumber `json:"reps"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("exercise: %w", err)
	}
	e.Name = raw.Name
	e.Sets = int(raw.Sets)
	e.Reps = int(raw.Reps)
	return nil
}

// Assessment is the engine input. Height is in meters, weight in kg,
// frequency in sessions per week and duration in hours per session.
type Assessment struct {
	Age       int        `json:"age"`
	Gender    string     `json:"gender"`
	Height    float64    `json:"height"`
	Weight    float64    `json:"weight"`
	Frequency int        `json:"frequency"`
	Duration  float64    `json:"duration"`
	Exercises []Exercise `json:"exercises"`
}

func (a *Assessment) UnmarshalJSON(data []byte) error {
	var raw struct {
		Age       flexNumber `json:"age"`
		Gender    string     `json:"gender"`
		Height    flexNumber `json:"height"`
		Weight    flexNumber `json:"weight"`
		Frequency flexNumber `json:"frequency"`
		Duration  flexNumber `json:"duration"`
		Exercises []Exercise `json:"exercises"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Assessment{
		Age:       int(raw.Age),
		Gender:    raw.Gender,
		Height:    float64(raw.Height),
		Weight:    float64(raw.Weight),
		Frequency: int(raw.Frequency),
		Duration:  float64(raw.Duration),
		Exercises: raw.Exercises,
	}
	return nil
}

// Validate checks the value ranges the engine relies on.
func (a Assessment) Validate() error {
	switch {
	case a.Age <= 0:
		return fmt.Errorf("%w: age must be positive", ErrInvalidAssessment)
	case strings.TrimSpace(a.Gender) == "":
		return fmt.Errorf("%w: gender is required", ErrInvalidAssessment)
	case utf8.RuneCountInString(a.Gender) > maxGenderLength:
		return fmt.Errorf("%w: gender is longer than %d characters", ErrInvalidAssessment, maxGenderLength)
	case a.Height <= 0:
		return fmt.Errorf("%w: height must be positive", ErrInvalidAssessment)
	case a.Weight <= 0:
		return fmt.Errorf("%w: weight must be positive", ErrInvalidAssessment)
	case a.Frequency < 0:
		return fmt.Errorf("%w: frequency must not be negative", ErrInvalidAssessment)
	case a.Duration < 0:
		return fmt.Errorf("%w: duration must not be negative", ErrInvalidAssessment)
	}
	for i, ex := range a.Exercises {
		if ex.Sets < 0 || ex.Reps < 0 {
			return fmt.Errorf("%w: exercise %d has negative sets or reps", ErrInvalidAssessment, i)
		}
		if ex.Sets > maxSetsOrReps || ex.Reps > maxSetsOrReps || ex.Sets*ex.Reps > maxExerciseReps {
			return fmt.Errorf("%w: exercise %d has too many sets or reps", ErrInvalidAssessment, i)
		}
	}
	return nil
}

// WithSingleExercise returns a copy of the assessment restricted to one exercise.
func (a Assessment) WithSingleExercise(ex Exercise) Assessment {
	single := a
	single.Exercises = []Exercise{ex}
	return single
}

func (a Assessment) TotalSets() int {
	total := 0
	for _, ex := range a.Exercises {
		total += ex.Sets
	}
	return total
}

func (a Assessment) TotalReps() int {
	total := 0
	for _, ex := range a.Exercises {
		total += ex.Reps
	}
	return total
}

// BMI returns weight / height^2, or 0 for a non-positive height.
func (a Assessment) BMI() float64 {
	if a.Height <= 0 {
		return 0
	}
	return a.Weight / (a.Height * a.Height)
}

// flexNumber accepts a JSON number, a numeric string, an empty string or null.
// Web clients submit form values as strings.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*n = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			*n = 0
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid number: %s", s)
	}
	*n = flexNumber(v)
	return nil
}

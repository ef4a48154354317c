package assessments

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/2beens/fitsense/internal/fitness"
)

const (
	calorieAnalysisKey = "calorie_analysis"
	maxNameLength      = 100 // assessments.name column width
)

func validateName(name string) error {
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: name is longer than %d characters", fitness.ErrInvalidAssessment, maxNameLength)
	}
	return nil
}

// Assessment is a stored fitness assessment. Each user has at most one,
// resubmitting replaces it.
type Assessment struct {
	ID          int                `json:"id"`
	UserID      int                `json:"user_id"`
	Name        string             `json:"name"`
	Age         int                `json:"age"`
	Gender      string             `json:"gender"`
	Height      float64            `json:"height"`
	Weight      float64            `json:"weight"`
	Frequency   int                `json:"frequency"`
	Duration    float64            `json:"duration"`
	Exercises   []fitness.Exercise `json:"exercises"`
	Predictions json.RawMessage    `json:"predictions"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Input returns the engine input carried by the stored assessment.
func (a *Assessment) Input() fitness.Assessment {
	return fitness.Assessment{
		Age:       a.Age,
		Gender:    a.Gender,
		Height:    a.Height,
		Weight:    a.Weight,
		Frequency: a.Frequency,
		Duration:  a.Duration,
		Exercises: a.Exercises,
	}
}

func (a *Assessment) setInput(in fitness.Assessment) {
	a.Age = in.Age
	a.Gender = in.Gender
	a.Height = in.Height
	a.Weight = in.Weight
	a.Frequency = in.Frequency
	a.Duration = in.Duration
	a.Exercises = in.Exercises
	if a.Exercises == nil {
		a.Exercises = []fitness.Exercise{}
	}
}

// patchableFields are the keys a partial update may change.
var patchableFields = []string{"age", "gender", "height", "weight", "frequency", "duration", "exercises"}

// applyPatch overlays the present keys of patch onto the assessment.
func (a *Assessment) applyPatch(patch map[string]json.RawMessage) error {
	name := a.Name
	if rawName, ok := patch["name"]; ok {
		if err := json.Unmarshal(rawName, &name); err != nil {
			return fmt.Errorf("%w: name: %s", fitness.ErrInvalidAssessment, err)
		}
		if err := validateName(name); err != nil {
			return err
		}
	}

	currentJson, err := json.Marshal(a.Input())
	if err != nil {
		return err
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(currentJson, &merged); err != nil {
		return err
	}
	for _, key := range patchableFields {
		if v, ok := patch[key]; ok {
			merged[key] = v
		}
	}

	mergedJson, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	var in fitness.Assessment
	if err := json.Unmarshal(mergedJson, &in); err != nil {
		return fmt.Errorf("%w: %s", fitness.ErrInvalidAssessment, err)
	}
	if err := in.Validate(); err != nil {
		return err
	}

	a.Name = name
	a.setInput(in)
	return nil
}

// PredictionsDocument is what gets stored and returned as an assessment's predictions:
// the model envelopes keyed by model identifier, plus the calorie analysis.
type PredictionsDocument map[string]any

func newPredictionsDocument(predictions fitness.Predictions, analysis fitness.CalorieAnalysis) PredictionsDocument {
	doc := make(PredictionsDocument, len(predictions)+1)
	for modelName, pred := range predictions {
		doc[modelName] = pred
	}
	doc[calorieAnalysisKey] = analysis
	return doc
}

// parsePredictions reads model envelopes from a client supplied predictions object.
// Entries that are not envelopes are skipped, the engine treats them as missing.
func parsePredictions(raw json.RawMessage) (fitness.Predictions, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}

	predictions := fitness.Predictions{}
	for key, entry := range entries {
		if key == calorieAnalysisKey {
			continue
		}
		var pred fitness.Prediction
		if err := json.Unmarshal(entry, &pred); err != nil {
			continue
		}
		predictions[key] = pred
	}
	return predictions, nil
}

package fitness

import "strings"

const (
	defaultMET          = 3.5
	secondsPerRep       = 3 // rest included
	minExerciseCalories = 1.0
)

type metValue struct {
	keyword string
	met     float64
}

// first match wins
var exerciseMETs = []metValue{
	{"push", 3.5},
	{"squat", 4.0},
	{"deadlift", 5.0},
	{"plank", 3.0},
	{"burpee", 8.0},
	{"jumping", 6.0},
	{"running", 7.0},
	{"cycling", 5.0},
}

// BasicCalorieBurn estimates session calories at a constant moderate intensity (3.5 MET).
func BasicCalorieBurn(weightKg, durationHours float64) float64 {
	return defaultMET * weightKg * durationHours
}

// BasicExerciseCalories estimates the calories of a single exercise entry from its MET value
// and an estimated duration of sets*reps*3 seconds. Never less than 1.
func BasicExerciseCalories(exercise Exercise, weightKg float64) float64 {
	met := exerciseMET(exercise.Name)
	totalReps := exercise.Sets * exercise.Reps
	durationHours := float64(totalReps*secondsPerRep) / 3600

	calories := met * weightKg * durationHours
	if calories < minExerciseCalories {
		return minExerciseCalories
	}
	return calories
}

func exerciseMET(name string) float64 {
	lowerName := strings.ToLower(name)
	for _, m := range exerciseMETs {
		if strings.Contains(lowerName, m.keyword) {
			return m.met
		}
	}
	return defaultMET
}

// BasicWaterIntake returns liters per day: 35ml per kg plus 0.5l per hour of exercise.
func BasicWaterIntake(weightKg, durationHours float64) float64 {
	return 0.035*weightKg + 0.5*durationHours
}

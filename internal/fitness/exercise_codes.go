package fitness

import "sort"

// exercise names as used by the burn calories model training data
var exerciseCodes = map[string]int{
	"Decline Push-ups": 12, "Bear Crawls": 0, "Dips": 13, "Mountain Climbers": 28,
	"Bicep Curls": 2, "Leg Press": 25, "Thrusters": 47, "Turkish Get-ups": 50,
	"Glute Bridges": 18, "Step-ups": 45, "Plank": 30, "Pull-ups": 34,
	"Lunges": 27, "Plyo Squats": 31, "Squats": 44, "Frog Jumps": 17,
	"Deadlifts": 11, "Prone Cobras": 33, "Lat Pulldowns": 23, "Russian Twists": 40,
	"Shoulder Press": 43, "Tricep Dips": 48, "Kettlebell Swings": 22, "Resistance Band Pull-Aparts": 37,
	"Leg Raises": 26, "Tricep Extensions": 49, "Dead Bugs": 9, "Scissors Kicks": 41,
	"Plyometric Push-ups": 32, "Push Ups": 35, "Bench Press": 1, "Inverted Rows": 20,
	"Seated Rows": 42, "Calf Raises": 8, "Reverse Lunges": 38, "Deadlift": 10,
	"Wall Angels": 51, "Lateral Raises": 24, "Face Pulls": 15, "Burpees": 7,
	"Box Jumps": 5, "Rows": 39, "Bird Dogs": 4, "Dragon Flags": 14,
	"Bicycle Crunches": 3, "Flutter Kicks": 16, "Bulgarian Split Squats": 6, "Superman": 46,
	"Incline Push-ups": 19, "Jumping Jacks": 21, "Renegade Rows": 36, "Windshield Wipers": 52,
	"Zottman Curls": 53, "Pistol Squats": 29,
}

// ExerciseCode maps an exercise name (exact match) to its model code; unknown names map to 0.
func ExerciseCode(name string) int {
	return exerciseCodes[name]
}

// exerciseNames lists all known exercise names, sorted.
func exerciseNames() []string {
	names := make([]string, 0, len(exerciseCodes))
	for name := range exerciseCodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

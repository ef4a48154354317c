package fitness

// model identifiers with a dedicated feature contract
const (
	FatModel   = "fat_model_tuned"
	WaterModel = "water_intake_model_tuned"
	BurnModel  = "burnCal_model_tuned"
)

// feature names must stay byte-identical to the ones the artifacts were trained with
const (
	featAge             = "Age"
	featGender          = "Gender"
	featWeight          = "Weight (kg)"
	featHeight          = "Height (m)"
	featBMI             = "BMI"
	featFatPercentage   = "Fat_Percentage"
	featSessionDuration = "Session_Duration (hours)"
	featSets            = "Sets"
	featReps            = "Reps"
	featExerciseCode    = "Exercise_Code"
)

// Features is an ordered, named feature vector.
type Features struct {
	Names  []string
	Values []float64
}

func (f *Features) add(name string, value float64) {
	f.Names = append(f.Names, name)
	f.Values = append(f.Values, value)
}

func (f Features) Get(name string) (float64, bool) {
	for i, n := range f.Names {
		if n == name {
			return f.Values[i], true
		}
	}
	return 0, false
}

// PrepareFeatures builds the feature vector the given model expects. Unknown models get the
// fat model vector. predictedFat, when set, is used as Fat_Percentage instead of the ideal target.
func PrepareFeatures(a Assessment, modelName string, predictedFat *float64) Features {
	genderEncoded := 0.0
	if IsMale(a.Gender) {
		genderEncoded = 1
	}

	fatPercentage := float64(IdealFatPercentage(a.Age, a.Gender))
	if predictedFat != nil {
		fatPercentage = *predictedFat
	}

	var f Features
	switch modelName {
	case WaterModel:
		f.add(featAge, float64(a.Age))
		f.add(featHeight, a.Height)
		f.add(featWeight, a.Weight)
		f.add(featGender, genderEncoded)
		f.add(featFatPercentage, fatPercentage)
		f.add(featSessionDuration, a.Duration)
	case BurnModel:
		exerciseCode := 0
		if len(a.Exercises) > 0 {
			exerciseCode = ExerciseCode(a.Exercises[0].Name)
		}
		f.add(featAge, float64(a.Age))
		f.add(featHeight, a.Height)
		f.add(featWeight, a.Weight)
		f.add(featGender, genderEncoded)
		f.add(featFatPercentage, fatPercentage)
		f.add(featSessionDuration, a.Duration)
		f.add(featSets, float64(a.TotalSets()))
		f.add(featReps, float64(a.TotalReps()))
		f.add(featExerciseCode, float64(exerciseCode))
	default:
		f.add(featAge, float64(a.Age))
		f.add(featGender, genderEncoded)
		f.add(featWeight, a.Weight)
		f.add(featBMI, a.BMI())
	}
	return f
}

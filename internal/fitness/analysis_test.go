package fitness_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/2beens/fitsense/internal/fitness"
	"github.com/2beens/fitsense/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newNoModelsAnalyzer(t *testing.T) *fitness.Analyzer {
	t.Helper()
	ctrl := gomock.NewController(t)
	models := NewMockModelRepository(ctrl)
	models.EXPECT().Has(gomock.Any()).Return(false).AnyTimes()
	models.EXPECT().List().Return(nil).AnyTimes()
	return fitness.NewAnalyzer(models, nil)
}

func TestAnalyzer_Analyze_FallbacksOnly(t *testing.T) {
	analyzer := newNoModelsAnalyzer(t)

	result := analyzer.Analyze(context.Background(), maleAssessment, fitness.Predictions{}, 30)

	assert.Equal(t, 280.0, result.TotalCaloriesPerSession)
	assert.Equal(t, 840.0, result.WeeklyCalories)
	assert.Equal(t, 15.0, result.CurrentFatPercentage)
	assert.Equal(t, 15, result.IdealFatPercentage)
	assert.Equal(t, 12.0, result.CurrentFatMass)
	assert.Equal(t, 12.0, result.IdealFatMass)
	assert.Equal(t, 0.0, result.FatToLose)
	assert.Equal(t, 0.0, result.CaloriesToBurnTotal)
	assert.Equal(t, -280.0, result.ExtraCaloriesPerSession)
	assert.Equal(t, 3.3, result.IdealWaterIntake)

	require.Len(t, result.ExerciseAnalysis, 2)
	assert.Equal(t, fitness.ExerciseAnalysis{
		Exercise:            "Squats",
		CurrentSets:         3,
		CurrentReps:         10,
		CaloriesBurned:      8.0,
		CalPerRep:           0.267,
		TotalReps:           30,
		ExtraReps:           -543,
		NewTotalReps:        -513,
		ExtraCaloriesTarget: -144.7,
		Weight:              2.828,
		ExtraRepsTotal:      -543,
		DailyIncrease:       -18,
		TargetTotalReps:     -513,
	}, result.ExerciseAnalysis[0])
	assert.Equal(t, fitness.ExerciseAnalysis{
		Exercise:            "Push Ups",
		CurrentSets:         3,
		CurrentReps:         10,
		CaloriesBurned:      7.0,
		CalPerRep:           0.233,
		TotalReps:           30,
		ExtraReps:           -580,
		NewTotalReps:        -550,
		ExtraCaloriesTarget: -135.3,
		Weight:              2.646,
		ExtraRepsTotal:      -580,
		DailyIncrease:       -19,
		TargetTotalReps:     -550,
	}, result.ExerciseAnalysis[1])
}

func TestAnalyzer_Analyze_RoundingGolden(t *testing.T) {
	analyzer := newNoModelsAnalyzer(t)
	predictions := fitness.Predictions{
		fitness.FatModel: {ModelName: fitness.FatModel, Prediction: []float64{25.0}},
	}

	result := analyzer.Analyze(context.Background(), maleAssessment, predictions, 30)

	assert.Equal(t, 25.0, result.CurrentFatPercentage)
	assert.Equal(t, 15, result.IdealFatPercentage)
	assert.Equal(t, 20.0, result.CurrentFatMass)
	assert.Equal(t, 12.0, result.IdealFatMass)
	assert.Equal(t, 8.0, result.FatToLose)
	assert.Equal(t, 61600.0, result.CaloriesToBurnTotal)
	assert.Equal(t, 20253.3, result.ExtraCaloriesPerSession)
	// 3.3 - 0.05 * (25 - 15)
	assert.Equal(t, 2.8, result.IdealWaterIntake)

	require.Len(t, result.ExerciseAnalysis, 2)
	squats := result.ExerciseAnalysis[0]
	assert.Equal(t, 39242, squats.ExtraReps)
	assert.Equal(t, 10464.6, squats.ExtraCaloriesTarget)
	assert.Equal(t, 1309, squats.DailyIncrease)
	assert.Equal(t, 39272, squats.TargetTotalReps)
	pushUps := result.ExerciseAnalysis[1]
	assert.Equal(t, 41952, pushUps.ExtraReps)
	assert.Equal(t, 9788.7, pushUps.ExtraCaloriesTarget)
	assert.Equal(t, 1399, pushUps.DailyIncrease)
}

func TestAnalyzer_Analyze_MixedExercisesAndPredictions(t *testing.T) {
	analyzer := newNoModelsAnalyzer(t)
	a := fitness.Assessment{
		Age:       40,
		Gender:    "female",
		Height:    1.8,
		Weight:    70,
		Frequency: 4,
		Duration:  1.5,
		Exercises: []fitness.Exercise{
			{Name: "Burpees", Sets: 4, Reps: 12},
			{Name: "Plank", Sets: 3, Reps: 1},
			{Name: "", Sets: 3, Reps: 3},
			{Name: "Rows", Sets: 0, Reps: 10},
		},
	}
	predictions := fitness.Predictions{
		fitness.FatModel:   {Prediction: []float64{31.7}},
		fitness.WaterModel: {Prediction: []float64{2.4}},
	}

	result := analyzer.Analyze(context.Background(), a, predictions, 14)

	assert.Equal(t, 367.5, result.TotalCaloriesPerSession)
	assert.Equal(t, 1470.0, result.WeeklyCalories)
	assert.Equal(t, 31.7, result.CurrentFatPercentage)
	assert.Equal(t, 25, result.IdealFatPercentage)
	assert.Equal(t, 22.19, result.CurrentFatMass)
	assert.Equal(t, 17.5, result.IdealFatMass)
	assert.Equal(t, 4.69, result.FatToLose)
	assert.Equal(t, 36113.0, result.CaloriesToBurnTotal)
	assert.Equal(t, 8660.8, result.ExtraCaloriesPerSession)
	assert.Equal(t, 2.1, result.IdealWaterIntake)

	// unnamed and zero-set entries are skipped
	require.Len(t, result.ExerciseAnalysis, 2)
	burpees := result.ExerciseAnalysis[0]
	assert.Equal(t, "Burpees", burpees.Exercise)
	assert.Equal(t, 22.4, burpees.CaloriesBurned)
	assert.Equal(t, 0.467, burpees.CalPerRep)
	assert.Equal(t, 4.733, burpees.Weight)
	assert.Equal(t, 15321, burpees.ExtraReps)
	assert.Equal(t, 7150.0, burpees.ExtraCaloriesTarget)
	assert.Equal(t, 1095, burpees.DailyIncrease)

	plank := result.ExerciseAnalysis[1]
	assert.Equal(t, 1.0, plank.CaloriesBurned)
	assert.Equal(t, 0.333, plank.CalPerRep)
	assert.Equal(t, 1.0, plank.Weight)
	assert.Equal(t, 4532, plank.ExtraReps)
	assert.Equal(t, 1510.7, plank.ExtraCaloriesTarget)
	assert.Equal(t, 324, plank.DailyIncrease)
	assert.Equal(t, 4535, plank.TargetTotalReps)
}

func TestAnalyzer_Analyze_ZeroFrequency(t *testing.T) {
	analyzer := newNoModelsAnalyzer(t)
	a := maleAssessment
	a.Frequency = 0
	predictions := fitness.Predictions{
		fitness.FatModel: {Prediction: []float64{30}},
	}

	var result fitness.CalorieAnalysis
	assert.NotPanics(t, func() {
		result = analyzer.Analyze(context.Background(), a, predictions, 30)
	})
	assert.Equal(t, 0.0, result.WeeklyCalories)
	assert.Equal(t, 0.0, result.ExtraCaloriesPerSession)
	assert.Equal(t, 280.0, result.TotalCaloriesPerSession)
	for _, e := range result.ExerciseAnalysis {
		assert.Equal(t, 0, e.ExtraReps)
		assert.Equal(t, 0.0, e.ExtraCaloriesTarget)
		assert.Equal(t, e.TotalReps, e.TargetTotalReps)
	}
}

func TestAnalyzer_Analyze_SingleExerciseTakesFullShare(t *testing.T) {
	analyzer := newNoModelsAnalyzer(t)
	a := maleAssessment
	a.Exercises = []fitness.Exercise{{Name: "Deadlifts", Sets: 5, Reps: 5}}
	predictions := fitness.Predictions{
		fitness.FatModel: {Prediction: []float64{22}},
	}

	result := analyzer.Analyze(context.Background(), a, predictions, 30)
	require.Len(t, result.ExerciseAnalysis, 1)
	assert.Greater(t, result.ExerciseAnalysis[0].Weight, 0.0)
	assert.Equal(t, result.ExtraCaloriesPerSession, result.ExerciseAnalysis[0].ExtraCaloriesTarget)
}

func TestAnalyzer_Analyze_Idempotent(t *testing.T) {
	analyzer := newNoModelsAnalyzer(t)
	predictions := fitness.Predictions{
		fitness.FatModel:   {Prediction: []float64{23.456}},
		fitness.WaterModel: {Prediction: []float64{3.21}},
		fitness.BurnModel:  {Prediction: []float64{512.3}},
	}

	first := analyzer.Analyze(context.Background(), maleAssessment, predictions, 21)
	second := analyzer.Analyze(context.Background(), maleAssessment, predictions, 21)
	assert.Equal(t, first, second)

	firstJson, err := json.Marshal(first)
	require.NoError(t, err)
	secondJson, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJson, secondJson)
}

func TestAnalyzer_Analyze_HorizonNotPositive(t *testing.T) {
	analyzer := newNoModelsAnalyzer(t)
	predictions := fitness.Predictions{
		fitness.FatModel: {Prediction: []float64{25}},
	}

	for _, horizon := range []int{0, -5} {
		result := analyzer.Analyze(context.Background(), maleAssessment, predictions, horizon)
		require.Len(t, result.ExerciseAnalysis, 2)
		for _, e := range result.ExerciseAnalysis {
			assert.Equal(t, 0, e.DailyIncrease)
			assert.NotZero(t, e.ExtraReps)
		}
	}
}

func TestAnalyzer_Analyze_BurnModelPerExercise(t *testing.T) {
	ctrl := gomock.NewController(t)
	models := NewMockModelRepository(ctrl)
	analyzer := fitness.NewAnalyzer(models, nil)

	models.EXPECT().Has(fitness.BurnModel).Return(true).AnyTimes()
	models.EXPECT().
		Invoke(gomock.Any(), fitness.BurnModel, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, f fitness.Features) ([]float64, error) {
			fat, _ := f.Get("Fat_Percentage")
			// never the predicted fat, always the ideal target
			assert.Equal(t, 15.0, fat)
			code, _ := f.Get("Exercise_Code")
			switch code {
			case 44: // Squats
				sets, _ := f.Get("Sets")
				assert.Equal(t, 3.0, sets)
				return []float64{30}, nil
			case 35: // Push Ups
				return nil, errors.New("model exploded")
			}
			t.Fatalf("unexpected exercise code: %v", code)
			return nil, nil
		}).Times(2)

	predictions := fitness.Predictions{
		fitness.FatModel:  {Prediction: []float64{25}},
		fitness.BurnModel: {Prediction: []float64{500}},
	}
	result := analyzer.Analyze(context.Background(), maleAssessment, predictions, 30)

	assert.Equal(t, 500.0, result.TotalCaloriesPerSession)
	require.Len(t, result.ExerciseAnalysis, 2)
	assert.Equal(t, 30.0, result.ExerciseAnalysis[0].CaloriesBurned)
	assert.Equal(t, 1.0, result.ExerciseAnalysis[0].CalPerRep)
	// fallback estimate
	assert.Equal(t, 7.0, result.ExerciseAnalysis[1].CaloriesBurned)
}

func TestAnalyzer_Analyze_ZeroCalPerRepGetsNoReps(t *testing.T) {
	ctrl := gomock.NewController(t)
	models := NewMockModelRepository(ctrl)
	analyzer := fitness.NewAnalyzer(models, nil)

	models.EXPECT().Has(fitness.BurnModel).Return(true).AnyTimes()
	models.EXPECT().Invoke(gomock.Any(), fitness.BurnModel, gomock.Any()).Return([]float64{0}, nil).AnyTimes()

	predictions := fitness.Predictions{fitness.FatModel: {Prediction: []float64{25}}}
	result := analyzer.Analyze(context.Background(), maleAssessment, predictions, 30)

	require.Len(t, result.ExerciseAnalysis, 2)
	for _, e := range result.ExerciseAnalysis {
		assert.Equal(t, 0.0, e.CalPerRep)
		assert.Equal(t, 0.0, e.Weight)
		assert.Equal(t, 0, e.ExtraReps)
		assert.Equal(t, 0.0, e.ExtraCaloriesTarget)
	}
}

func TestAnalyzer_Analyze_FaultReturnsZeroResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	models := NewMockModelRepository(ctrl)
	metricsManager := metrics.NewTestManager()
	analyzer := fitness.NewAnalyzer(models, metricsManager)

	models.EXPECT().Has(fitness.BurnModel).Return(true).AnyTimes()

	// negative calories per rep make the hybrid weight undefined
	models.EXPECT().Invoke(gomock.Any(), fitness.BurnModel, gomock.Any()).Return([]float64{-12}, nil).Times(2)
	result := analyzer.Analyze(context.Background(), maleAssessment, fitness.Predictions{}, 30)
	assert.Equal(t, fitness.ZeroCalorieAnalysis(), result)
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterAnalysisFallbacks))

	zeroJson, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"total_calories_per_session": 0,
		"weekly_calories": 0,
		"current_fat_percentage": 0,
		"ideal_fat_percentage": 0,
		"current_fat_mass": 0,
		"ideal_fat_mass": 0,
		"fat_to_lose": 0,
		"calories_to_burn_total": 0,
		"extra_calories_per_session": 0,
		"exercise_analysis": [],
		"ideal_water_intake": 0
	}`, string(zeroJson))
}

func TestAnalyzer_Analyze_BurnModelPanicFallsBackPerExercise(t *testing.T) {
	ctrl := gomock.NewController(t)
	models := NewMockModelRepository(ctrl)
	metricsManager := metrics.NewTestManager()
	analyzer := fitness.NewAnalyzer(models, metricsManager)

	models.EXPECT().Has(fitness.BurnModel).Return(true).AnyTimes()
	models.EXPECT().Invoke(gomock.Any(), fitness.BurnModel, gomock.Any()).DoAndReturn(
		func(context.Context, string, fitness.Features) ([]float64, error) {
			panic("bad artifact")
		},
	).Times(2)

	var result fitness.CalorieAnalysis
	assert.NotPanics(t, func() {
		result = analyzer.Analyze(context.Background(), maleAssessment, fitness.Predictions{}, 30)
	})
	assert.NotEqual(t, fitness.ZeroCalorieAnalysis(), result)
	assert.Equal(t, float64(0), testutil.ToFloat64(metricsManager.CounterAnalysisFallbacks))

	assert.Equal(t, 280.0, result.TotalCaloriesPerSession)
	assert.Equal(t, 840.0, result.WeeklyCalories)
	assert.Equal(t, 15.0, result.CurrentFatPercentage)
	assert.Equal(t, 3.3, result.IdealWaterIntake)

	require.Len(t, result.ExerciseAnalysis, 2)
	assert.Equal(t, "Squats", result.ExerciseAnalysis[0].Exercise)
	assert.Equal(t, 8.0, result.ExerciseAnalysis[0].CaloriesBurned)
	assert.Equal(t, 0.267, result.ExerciseAnalysis[0].CalPerRep)
	assert.Equal(t, "Push Ups", result.ExerciseAnalysis[1].Exercise)
	assert.Equal(t, 7.0, result.ExerciseAnalysis[1].CaloriesBurned)
	assert.Equal(t, 0.233, result.ExerciseAnalysis[1].CalPerRep)
}

func TestIdealWaterIntake(t *testing.T) {
	a := maleAssessment

	// no predictions: basic water, fat equals ideal
	assert.InDelta(t, 3.3, fitness.IdealWaterIntake(a, fitness.Predictions{}), 1e-9)

	// literal formula: intake goes down when fat is above the ideal
	overFat := fitness.Predictions{
		fitness.FatModel:   {Prediction: []float64{25}},
		fitness.WaterModel: {Prediction: []float64{3.0}},
	}
	assert.InDelta(t, 2.5, fitness.IdealWaterIntake(a, overFat), 1e-9)

	underFat := fitness.Predictions{
		fitness.FatModel:   {Prediction: []float64{10}},
		fitness.WaterModel: {Prediction: []float64{3.0}},
	}
	assert.InDelta(t, 3.25, fitness.IdealWaterIntake(a, underFat), 1e-9)

	// errored water envelope falls back to the basic estimate
	erroredWater := fitness.Predictions{
		fitness.WaterModel: {Error: "prediction failed"},
	}
	assert.InDelta(t, 3.3, fitness.IdealWaterIntake(a, erroredWater), 1e-9)
}

func TestIdealWaterIntake_Floor(t *testing.T) {
	a := maleAssessment
	a.Weight = 40
	a.Duration = 0

	for _, tc := range []fitness.Predictions{
		{},
		{fitness.FatModel: {Prediction: []float64{45}}},
		{fitness.WaterModel: {Prediction: []float64{0.3}}},
		{fitness.FatModel: {Prediction: []float64{60}}, fitness.WaterModel: {Prediction: []float64{2.2}}},
	} {
		assert.Equal(t, 2.0, fitness.IdealWaterIntake(a, tc))
	}
}

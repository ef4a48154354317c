package fitness

import (
	"context"
	"errors"
	"math"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/2beens/fitsense/internal/telemetry/metrics"
	"github.com/2beens/fitsense/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// kcal per kg of body fat
	caloriesPerKgFat = 7700
	// hybrid weight exponents for calorie efficiency and volume
	calPerRepExponent = 0.5
	volumeExponent    = 0.5

	minWaterIntakeLiters  = 2.0
	waterPerFatPercentage = 0.05

	DefaultHorizonDays = 30
)

var errNonFiniteResult = errors.New("non-finite value in analysis")

type ExerciseAnalysis struct {
	Exercise            string  `json:"exercise"`
	CurrentSets         int     `json:"current_sets"`
	CurrentReps         int     `json:"current_reps"`
	CaloriesBurned      float64 `json:"calories_burned"`
	CalPerRep           float64 `json:"cal_per_rep"`
	TotalReps           int     `json:"total_reps"`
	ExtraReps           int     `json:"extra_reps"`
	NewTotalReps        int     `json:"new_total_reps"`
	ExtraCaloriesTarget float64 `json:"extra_calories_target"`
	Weight              float64 `json:"weight"`
	ExtraRepsTotal      int     `json:"extra_reps_total"`
	DailyIncrease       int     `json:"daily_increase"`
	TargetTotalReps     int     `json:"target_total_reps"`
}

type CalorieAnalysis struct {
	TotalCaloriesPerSession float64            `json:"total_calories_per_session"`
	WeeklyCalories          float64            `json:"weekly_calories"`
	CurrentFatPercentage    float64            `json:"current_fat_percentage"`
	IdealFatPercentage      int                `json:"ideal_fat_percentage"`
	CurrentFatMass          float64            `json:"current_fat_mass"`
	IdealFatMass            float64            `json:"ideal_fat_mass"`
	FatToLose               float64            `json:"fat_to_lose"`
	CaloriesToBurnTotal     float64            `json:"calories_to_burn_total"`
	ExtraCaloriesPerSession float64            `json:"extra_calories_per_session"`
	ExerciseAnalysis        []ExerciseAnalysis `json:"exercise_analysis"`
	IdealWaterIntake        float64            `json:"ideal_water_intake"`
}

// ZeroCalorieAnalysis is returned when the analysis cannot be computed.
func ZeroCalorieAnalysis() CalorieAnalysis {
	return CalorieAnalysis{ExerciseAnalysis: []ExerciseAnalysis{}}
}

type Analyzer struct {
	models         ModelRepository
	metricsManager *metrics.Manager
}

func NewAnalyzer(models ModelRepository, metricsManager *metrics.Manager) *Analyzer {
	return &Analyzer{
		models:         models,
		metricsManager: metricsManager,
	}
}

// Analyze turns the assessment and its model predictions into a fat loss plan, spreading
// the extra calorie deficit over the exercises as rep increases over horizonDays.
// It never fails: internal faults produce ZeroCalorieAnalysis.
func (an *Analyzer) Analyze(ctx context.Context, a Assessment, predictions Predictions, horizonDays int) (result CalorieAnalysis) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "fitness.analyze")
	span.SetAttributes(
		attribute.Int("exercises", len(a.Exercises)),
		attribute.Int("horizon_days", horizonDays),
	)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("calorie analysis panic: %v\n%s", r, debug.Stack())
			result = an.zeroResult()
		}
		if an.metricsManager != nil {
			an.metricsManager.HistAnalysisDuration.Observe(time.Since(start).Seconds())
		}
		span.End()
	}()

	result, err := an.analyze(ctx, a, predictions, horizonDays)
	if err != nil {
		log.Errorf("calorie analysis: %s", err)
		span.RecordError(err)
		return an.zeroResult()
	}
	return result
}

func (an *Analyzer) zeroResult() CalorieAnalysis {
	if an.metricsManager != nil {
		an.metricsManager.CounterAnalysisFallbacks.Inc()
	}
	return ZeroCalorieAnalysis()
}

func (an *Analyzer) analyze(ctx context.Context, a Assessment, predictions Predictions, horizonDays int) (CalorieAnalysis, error) {
	idealFat := IdealFatPercentage(a.Age, a.Gender)

	fatPercentage, ok := predictions.Value(FatModel)
	if !ok {
		fatPercentage = float64(idealFat)
	}

	totalCalories, ok := predictions.Value(BurnModel)
	if !ok {
		totalCalories = BasicCalorieBurn(a.Weight, a.Duration)
	}

	weeklyCalories := 0.0
	if a.Frequency > 0 {
		weeklyCalories = totalCalories * float64(a.Frequency)
	}

	currentFatMass := fatPercentage / 100 * a.Weight
	idealFatMass := float64(idealFat) / 100 * a.Weight
	// negative when already below the ideal, not clamped
	fatToLose := currentFatMass - idealFatMass
	caloriesToBurnTotal := fatToLose * caloriesPerKgFat

	extraPerSession := 0.0
	if a.Frequency > 0 {
		extraPerSession = (caloriesToBurnTotal - weeklyCalories) / float64(a.Frequency)
	}

	exerciseAnalysis := an.analyzeExercises(ctx, a, extraPerSession, horizonDays)
	idealWater := IdealWaterIntake(a, predictions)

	raw := []float64{
		fatPercentage, totalCalories, weeklyCalories, currentFatMass,
		idealFatMass, fatToLose, caloriesToBurnTotal, extraPerSession, idealWater,
	}
	for _, v := range raw {
		if !isFinite(v) {
			return CalorieAnalysis{}, errNonFiniteResult
		}
	}
	for _, e := range exerciseAnalysis {
		if !isFinite(e.CaloriesBurned) || !isFinite(e.CalPerRep) || !isFinite(e.Weight) || !isFinite(e.ExtraCaloriesTarget) {
			return CalorieAnalysis{}, errNonFiniteResult
		}
	}

	return CalorieAnalysis{
		TotalCaloriesPerSession: roundTo(totalCalories, 1),
		WeeklyCalories:          roundTo(weeklyCalories, 1),
		CurrentFatPercentage:    roundTo(fatPercentage, 1),
		IdealFatPercentage:      idealFat,
		CurrentFatMass:          roundTo(currentFatMass, 2),
		IdealFatMass:            roundTo(idealFatMass, 2),
		FatToLose:               roundTo(fatToLose, 2),
		CaloriesToBurnTotal:     roundTo(caloriesToBurnTotal, 0),
		ExtraCaloriesPerSession: roundTo(extraPerSession, 1),
		ExerciseAnalysis:        exerciseAnalysis,
		IdealWaterIntake:        roundTo(idealWater, 1),
	}, nil
}

type exerciseStats struct {
	exercise  Exercise
	calories  float64
	calPerRep float64
	totalReps int
	weight    float64
}

func (an *Analyzer) analyzeExercises(ctx context.Context, a Assessment, extraPerSession float64, horizonDays int) []ExerciseAnalysis {
	var stats []exerciseStats
	for _, ex := range a.Exercises {
		if !ex.Analyzable() {
			continue
		}

		calories := an.exerciseCalories(ctx, a, ex)
		totalReps := ex.Sets * ex.Reps
		calPerRep := 0.0
		if totalReps > 0 {
			calPerRep = calories / float64(totalReps)
		}

		stats = append(stats, exerciseStats{
			exercise:  ex,
			calories:  calories,
			calPerRep: calPerRep,
			totalReps: totalReps,
			weight:    math.Pow(calPerRep, calPerRepExponent) * math.Pow(float64(totalReps), volumeExponent),
		})
	}

	totalWeight := 0.0
	for _, s := range stats {
		totalWeight += s.weight
	}

	analysis := make([]ExerciseAnalysis, 0, len(stats))
	for _, s := range stats {
		extraCalories := 0.0
		if totalWeight > 0 {
			extraCalories = extraPerSession * (s.weight / totalWeight)
		}

		// may under-deliver the target when cal per rep is 0
		extraReps := 0
		if s.calPerRep > 0 {
			extraReps = int(math.RoundToEven(extraCalories / s.calPerRep))
		}

		dailyIncrease := 0
		if horizonDays > 0 {
			dailyIncrease = int(math.Ceil(float64(extraReps) / float64(horizonDays)))
		}

		analysis = append(analysis, ExerciseAnalysis{
			Exercise:            s.exercise.Name,
			CurrentSets:         s.exercise.Sets,
			CurrentReps:         s.exercise.Reps,
			CaloriesBurned:      roundTo(s.calories, 1),
			CalPerRep:           roundTo(s.calPerRep, 3),
			TotalReps:           s.totalReps,
			ExtraReps:           extraReps,
			NewTotalReps:        s.totalReps + extraReps,
			ExtraCaloriesTarget: roundTo(extraCalories, 1),
			Weight:              roundTo(s.weight, 3),
			ExtraRepsTotal:      extraReps,
			DailyIncrease:       dailyIncrease,
			TargetTotalReps:     s.totalReps + extraReps,
		})
	}
	return analysis
}

// exerciseCalories runs the burn model on the assessment restricted to a single exercise,
// without a predicted fat override. Falls back to BasicExerciseCalories.
func (an *Analyzer) exerciseCalories(ctx context.Context, a Assessment, ex Exercise) (calories float64) {
	if an.models == nil || !an.models.Has(BurnModel) {
		return BasicExerciseCalories(ex, a.Weight)
	}

	// a broken artifact only costs this exercise its model estimate
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("burn model for exercise [%s] panicked: %v, using fallback", ex.Name, r)
			calories = BasicExerciseCalories(ex, a.Weight)
		}
	}()

	features := PrepareFeatures(a.WithSingleExercise(ex), BurnModel, nil)
	output, err := an.models.Invoke(ctx, BurnModel, features)
	if err != nil {
		log.Debugf("burn model for exercise [%s]: %s, using fallback", ex.Name, err)
		return BasicExerciseCalories(ex, a.Weight)
	}
	if len(output) == 0 {
		return BasicExerciseCalories(ex, a.Weight)
	}
	return output[0]
}

// IdealWaterIntake adjusts the water baseline (model prediction or BasicWaterIntake) by
// 0.05l per percentage point of fat above the ideal, subtracted, and floors it at 2l.
func IdealWaterIntake(a Assessment, predictions Predictions) float64 {
	idealFat := float64(IdealFatPercentage(a.Age, a.Gender))

	currentFat, ok := predictions.Value(FatModel)
	if !ok {
		currentFat = idealFat
	}

	baseline, ok := predictions.Value(WaterModel)
	if !ok {
		baseline = BasicWaterIntake(a.Weight, a.Duration)
	}

	ideal := baseline - waterPerFatPercentage*(currentFat-idealFat)
	return math.Max(ideal, minWaterIntakeLiters)
}

// roundTo rounds to the given decimal places using the exact binary value,
// ties to even.
func roundTo(x float64, places int) float64 {
	if !isFinite(x) {
		return x
	}
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', places, 64), 64)
	if err != nil {
		return x
	}
	return rounded
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

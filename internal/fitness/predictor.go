package fitness

import (
	"context"
	"fmt"
	"sort"

	"github.com/2beens/fitsense/internal/telemetry/metrics"
	"github.com/2beens/fitsense/internal/telemetry/tracing"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=predictor_mocks_test.go -package=fitness_test

// ModelRepository is the read-only set of loaded prediction models.
type ModelRepository interface {
	List() []string
	Has(name string) bool
	Invoke(ctx context.Context, name string, features Features) ([]float64, error)
}

type Predictor struct {
	models         ModelRepository
	metricsManager *metrics.Manager
}

func NewPredictor(models ModelRepository, metricsManager *metrics.Manager) *Predictor {
	return &Predictor{
		models:         models,
		metricsManager: metricsManager,
	}
}

// Models lists the available model identifiers, sorted.
func (p *Predictor) Models() []string {
	models := append([]string{}, p.models.List()...)
	sort.Strings(models)
	return models
}

// Predict runs a single model against the assessment. Failures are reported
// in the envelope's Error field, never returned or panicked.
func (p *Predictor) Predict(ctx context.Context, modelName string, a Assessment, predictedFat *float64) (pred Prediction) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "fitness.predict")
	span.SetAttributes(attribute.String("model", modelName))
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("predict [%s] panic: %v", modelName, r)
			pred = Prediction{Error: fmt.Sprintf("prediction error: %v", r)}
		}
		p.observe(modelName, pred)
		if pred.Error != "" {
			span.SetAttributes(attribute.String("prediction.error", pred.Error))
		}
		span.End()
	}()

	features := PrepareFeatures(a, modelName, predictedFat)

	if !p.models.Has(modelName) {
		return Prediction{Error: fmt.Sprintf("model '%s' not found", modelName)}
	}

	output, err := p.models.Invoke(ctx, modelName, features)
	if err != nil {
		return Prediction{Error: fmt.Sprintf("prediction error: %s", err)}
	}
	if len(output) == 0 {
		return Prediction{Error: "prediction failed"}
	}

	return Prediction{
		ModelName:    modelName,
		Prediction:   output,
		FeaturesUsed: features.Names,
	}
}

// PredictAll runs every available model. The fat model runs first and its value feeds
// the water and burn models; any other model gets the raw assessment.
func (p *Predictor) PredictAll(ctx context.Context, a Assessment) Predictions {
	ctx, span := tracing.GlobalTracer.Start(ctx, "fitness.predict.all")
	defer span.End()

	predictions := Predictions{}
	var predictedFat *float64

	if p.models.Has(FatModel) {
		fatPred := p.Predict(ctx, FatModel, a, nil)
		predictions[FatModel] = fatPred
		if fatPred.OK() {
			fat := fatPred.Prediction[0]
			predictedFat = &fat
		}
	}

	for _, modelName := range []string{WaterModel, BurnModel} {
		if p.models.Has(modelName) {
			predictions[modelName] = p.Predict(ctx, modelName, a, predictedFat)
		}
	}

	for _, modelName := range p.Models() {
		switch modelName {
		case FatModel, WaterModel, BurnModel:
			continue
		}
		predictions[modelName] = p.Predict(ctx, modelName, a, nil)
	}

	span.SetAttributes(attribute.Int("predictions.count", len(predictions)))
	return predictions
}

func (p *Predictor) observe(modelName string, pred Prediction) {
	if p.metricsManager == nil {
		return
	}
	status := "ok"
	if pred.Error != "" {
		status = "error"
	}
	// keep label cardinality bounded for names coming from request paths
	if !p.models.Has(modelName) {
		modelName = "unknown"
	}
	p.metricsManager.CounterPredictions.With(prometheus.Labels{
		"model":  modelName,
		"status": status,
	}).Inc()
}

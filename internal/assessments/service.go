package assessments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/2beens/fitsense/internal/fitness"
	"github.com/2beens/fitsense/internal/telemetry/metrics"
	"github.com/2beens/fitsense/internal/telemetry/tracing"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=assessments_test

type assessmentsRepo interface {
	Upsert(ctx context.Context, a *Assessment) (*Assessment, bool, error)
	Update(ctx context.Context, a *Assessment) error
	ListByUser(ctx context.Context, userID int) ([]Assessment, error)
	Latest(ctx context.Context, userID int) (*Assessment, error)
}

// Evaluation is the outcome of running the models and the analysis on an assessment.
type Evaluation struct {
	Assessment      *Assessment
	Predictions     PredictionsDocument
	AvailableModels []string
	Created         bool
}

type Service struct {
	repo           assessmentsRepo
	predictor      *fitness.Predictor
	analyzer       *fitness.Analyzer
	metricsManager *metrics.Manager
	horizonDays    int
}

func NewService(
	repo assessmentsRepo,
	predictor *fitness.Predictor,
	analyzer *fitness.Analyzer,
	metricsManager *metrics.Manager,
	horizonDays int,
) *Service {
	if horizonDays <= 0 {
		horizonDays = fitness.DefaultHorizonDays
	}
	return &Service{
		repo:           repo,
		predictor:      predictor,
		analyzer:       analyzer,
		metricsManager: metricsManager,
		horizonDays:    horizonDays,
	}
}

// Submit evaluates the assessment and stores it as the user's current one.
func (s *Service) Submit(ctx context.Context, a *Assessment) (_ *Evaluation, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.assessments.submit")
	span.SetAttributes(attribute.Int("user_id", a.UserID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	doc, err := s.evaluate(ctx, a)
	if err != nil {
		return nil, err
	}

	stored, created, err := s.repo.Upsert(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("upsert assessment: %w", err)
	}

	operation := "update"
	if created {
		operation = "create"
	}
	s.count(operation)
	log.Debugf("assessment of user %d stored [%s]", a.UserID, operation)

	return &Evaluation{
		Assessment:      stored,
		Predictions:     doc,
		AvailableModels: s.predictor.Models(),
		Created:         created,
	}, nil
}

// Update applies a partial update to the user's stored assessment and evaluates it again.
func (s *Service) Update(ctx context.Context, userID int, patch map[string]json.RawMessage) (_ *Evaluation, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.assessments.update")
	span.SetAttributes(attribute.Int("user_id", userID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	existing, err := s.repo.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := existing.applyPatch(patch); err != nil {
		return nil, err
	}

	doc, err := s.evaluate(ctx, existing)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("update assessment: %w", err)
	}
	s.count("update")

	return &Evaluation{
		Assessment:      existing,
		Predictions:     doc,
		AvailableModels: s.predictor.Models(),
	}, nil
}

// Recalculate reruns the analysis for a different horizon on client supplied data. Nothing is stored.
func (s *Service) Recalculate(ctx context.Context, a fitness.Assessment, predictions fitness.Predictions, horizonDays int) fitness.CalorieAnalysis {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.assessments.recalculate")
	defer span.End()

	s.count("recalculate")
	return s.analyzer.Analyze(ctx, a, predictions, horizonDays)
}

func (s *Service) List(ctx context.Context, userID int) ([]Assessment, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) Latest(ctx context.Context, userID int) (*Assessment, error) {
	return s.repo.Latest(ctx, userID)
}

// evaluate runs every model and the analysis, and sets the predictions document on the assessment.
func (s *Service) evaluate(ctx context.Context, a *Assessment) (PredictionsDocument, error) {
	input := a.Input()
	predictions := s.predictor.PredictAll(ctx, input)
	analysis := s.analyzer.Analyze(ctx, input, predictions, s.horizonDays)

	doc := newPredictionsDocument(predictions, analysis)
	docJson, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal predictions: %w", err)
	}
	a.Predictions = docJson

	return doc, nil
}

func (s *Service) count(operation string) {
	if s.metricsManager == nil {
		return
	}
	s.metricsManager.CounterAssessments.With(prometheus.Labels{"operation": operation}).Inc()
}

package assessments

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/2beens/fitsense/internal/auth"
	"github.com/2beens/fitsense/internal/fitness"
	"github.com/2beens/fitsense/internal/telemetry/tracing"
	"github.com/2beens/fitsense/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// requiredFields are checked in this order on submit.
var requiredFields = []string{"user_id", "name", "age", "gender", "height", "weight", "frequency", "duration", "exercises"}

type EvaluationResponse struct {
	Message         string              `json:"message"`
	Assessment      *Assessment         `json:"assessment"`
	Predictions     PredictionsDocument `json:"predictions"`
	AvailableModels []string            `json:"available_models"`
}

type AssessmentsListResponse struct {
	Assessments []Assessment `json:"assessments"`
}

type LatestAssessmentResponse struct {
	Assessment *Assessment `json:"assessment"`
}

type RecalculateResponse struct {
	Message         string                  `json:"message"`
	CalorieAnalysis fitness.CalorieAnalysis `json:"calorie_analysis"`
	DurationDays    int                     `json:"duration_days"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (handler *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.assessments.submit")
	defer span.End()

	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		log.Debugf("submit assessment, unmarshal json params: %s", err)
		pkg.WriteJSONError(w, "invalid assessment data", http.StatusBadRequest)
		return
	}

	for _, field := range requiredFields {
		if isBlank(body[field]) {
			pkg.WriteJSONError(w, fmt.Sprintf("%s is required", field), http.StatusBadRequest)
			return
		}
	}

	userID, ok := parseUserID(body["user_id"])
	if !ok {
		pkg.WriteJSONError(w, "invalid user_id", http.StatusBadRequest)
		return
	}
	if !auth.CanAccessUser(ctx, userID) {
		pkg.WriteJSONError(w, "forbidden", http.StatusForbidden)
		return
	}

	var name string
	if err := json.Unmarshal(body["name"], &name); err != nil {
		pkg.WriteJSONError(w, "invalid name", http.StatusBadRequest)
		return
	}
	if err := validateName(name); err != nil {
		pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	input, err := decodeInput(body)
	if err != nil {
		pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(input.Exercises) == 0 {
		pkg.WriteJSONError(w, "At least one exercise is required", http.StatusBadRequest)
		return
	}

	a := &Assessment{
		UserID: userID,
		Name:   name,
	}
	a.setInput(input)

	evaluation, err := handler.service.Submit(ctx, a)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			pkg.WriteJSONError(w, "User not found", http.StatusNotFound)
			return
		}
		log.Errorf("submit assessment of user %d: %s", userID, err)
		pkg.WriteJSONError(w, "failed to save assessment", http.StatusInternalServerError)
		return
	}

	message := "Assessment updated successfully"
	if evaluation.Created {
		message = "Assessment created successfully"
	}
	pkg.WriteJSON(w, EvaluationResponse{
		Message:         message,
		Assessment:      evaluation.Assessment,
		Predictions:     evaluation.Predictions,
		AvailableModels: evaluation.AvailableModels,
	}, http.StatusCreated)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.assessments.update")
	defer span.End()

	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || isBlank(body["user_id"]) {
		pkg.WriteJSONError(w, "User ID is required", http.StatusBadRequest)
		return
	}

	userID, ok := parseUserID(body["user_id"])
	if !ok {
		pkg.WriteJSONError(w, "invalid user_id", http.StatusBadRequest)
		return
	}
	if !auth.CanAccessUser(ctx, userID) {
		pkg.WriteJSONError(w, "forbidden", http.StatusForbidden)
		return
	}

	evaluation, err := handler.service.Update(ctx, userID, body)
	if err != nil {
		switch {
		case errors.Is(err, ErrAssessmentNotFound):
			pkg.WriteJSONError(w, "No assessment found for this user", http.StatusNotFound)
		case errors.Is(err, fitness.ErrInvalidAssessment):
			pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			log.Errorf("update assessment of user %d: %s", userID, err)
			pkg.WriteJSONError(w, "failed to update assessment", http.StatusInternalServerError)
		}
		return
	}

	pkg.WriteJSON(w, EvaluationResponse{
		Message:         "Assessment updated successfully",
		Assessment:      evaluation.Assessment,
		Predictions:     evaluation.Predictions,
		AvailableModels: evaluation.AvailableModels,
	}, http.StatusOK)
}

func (handler *Handler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.assessments.recalculate")
	defer span.End()

	var body struct {
		AssessmentData json.RawMessage `json:"assessment_data"`
		Predictions    json.RawMessage `json:"predictions"`
		DurationDays   json.RawMessage `json:"duration_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || isBlank(body.AssessmentData) || isBlank(body.Predictions) {
		pkg.WriteJSONError(w, "Assessment data and predictions are required", http.StatusBadRequest)
		return
	}

	horizonDays := fitness.DefaultHorizonDays
	if len(body.DurationDays) > 0 {
		days, ok := parseHorizonDays(body.DurationDays)
		if !ok {
			pkg.WriteJSONError(w, "Duration days must be a positive number", http.StatusBadRequest)
			return
		}
		horizonDays = days
	}

	var input fitness.Assessment
	if err := json.Unmarshal(body.AssessmentData, &input); err != nil {
		pkg.WriteJSONError(w, "invalid assessment data", http.StatusBadRequest)
		return
	}
	predictions, err := parsePredictions(body.Predictions)
	if err != nil {
		pkg.WriteJSONError(w, "invalid predictions", http.StatusBadRequest)
		return
	}

	analysis := handler.service.Recalculate(ctx, input, predictions, horizonDays)
	pkg.WriteJSON(w, RecalculateResponse{
		Message:         "Calorie analysis recalculated successfully",
		CalorieAnalysis: analysis,
		DurationDays:    horizonDays,
	}, http.StatusOK)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.assessments.list")
	defer span.End()

	userID, ok := handler.pathUserID(w, r)
	if !ok {
		return
	}

	assessments, err := handler.service.List(ctx, userID)
	if err != nil {
		log.Errorf("list assessments of user %d: %s", userID, err)
		pkg.WriteJSONError(w, "failed to get assessments", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, AssessmentsListResponse{Assessments: assessments}, http.StatusOK)
}

func (handler *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.assessments.latest")
	defer span.End()

	userID, ok := handler.pathUserID(w, r)
	if !ok {
		return
	}

	assessment, err := handler.service.Latest(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrAssessmentNotFound) {
			pkg.WriteJSONError(w, "No assessments found for this user", http.StatusNotFound)
			return
		}
		log.Errorf("latest assessment of user %d: %s", userID, err)
		pkg.WriteJSONError(w, "failed to get assessment", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, LatestAssessmentResponse{Assessment: assessment}, http.StatusOK)
}

func (handler *Handler) pathUserID(w http.ResponseWriter, r *http.Request) (int, bool) {
	userID, err := strconv.Atoi(mux.Vars(r)["user_id"])
	if err != nil {
		pkg.WriteJSONError(w, "invalid user id", http.StatusBadRequest)
		return 0, false
	}
	if !auth.CanAccessUser(r.Context(), userID) {
		pkg.WriteJSONError(w, "forbidden", http.StatusForbidden)
		return 0, false
	}
	return userID, true
}

// decodeInput reads the engine input out of the submitted fields.
func decodeInput(body map[string]json.RawMessage) (fitness.Assessment, error) {
	inputJson, err := json.Marshal(body)
	if err != nil {
		return fitness.Assessment{}, err
	}
	var input fitness.Assessment
	if err := json.Unmarshal(inputJson, &input); err != nil {
		return fitness.Assessment{}, fmt.Errorf("invalid assessment data: %s", err)
	}
	if err := input.Validate(); err != nil {
		return fitness.Assessment{}, err
	}
	return input, nil
}

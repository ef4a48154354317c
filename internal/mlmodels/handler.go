package mlmodels

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/2beens/fitsense/internal/fitness"
	"github.com/2beens/fitsense/internal/telemetry/tracing"
	"github.com/2beens/fitsense/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type ModelsListResponse struct {
	Models []string `json:"models"`
	Count  int      `json:"count"`
}

type Handler struct {
	predictor *fitness.Predictor
}

func NewHandler(predictor *fitness.Predictor) *Handler {
	return &Handler{
		predictor: predictor,
	}
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.models.list")
	defer span.End()

	models := handler.predictor.Models()
	pkg.WriteJSON(w, ModelsListResponse{
		Models: models,
		Count:  len(models),
	}, http.StatusOK)
}

// HandlePredict runs a single model against the assessment in the request body.
// The body may carry predicted_fat_percentage to feed the water and burn models.
func (handler *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.models.predict")
	defer span.End()

	modelName := mux.Vars(r)["model_name"]
	span.SetAttributes(attribute.String("model", modelName))
	if modelName == "" {
		pkg.WriteJSONError(w, "model name empty", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Errorf("predict [%s], read body: %s", modelName, err)
		pkg.WriteJSONError(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		pkg.WriteJSONError(w, "No data provided", http.StatusBadRequest)
		return
	}

	var assessment fitness.Assessment
	if err := json.Unmarshal(body, &assessment); err != nil {
		log.Debugf("predict [%s], unmarshal assessment: %s", modelName, err)
		pkg.WriteJSONError(w, "invalid assessment data", http.StatusBadRequest)
		return
	}

	var params struct {
		PredictedFat *float64 `json:"predicted_fat_percentage"`
	}
	if err := json.Unmarshal(body, &params); err != nil {
		pkg.WriteJSONError(w, "invalid predicted_fat_percentage", http.StatusBadRequest)
		return
	}

	prediction := handler.predictor.Predict(ctx, modelName, assessment, params.PredictedFat)
	if prediction.Error != "" {
		pkg.WriteJSON(w, prediction, http.StatusBadRequest)
		return
	}

	pkg.WriteJSON(w, prediction, http.StatusOK)
}

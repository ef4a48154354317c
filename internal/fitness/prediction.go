package fitness

// Prediction is the uniform envelope for a single model run.
// Either Prediction is set or Error is.
type Prediction struct {
	ModelName    string    `json:"model_name,omitempty"`
	Prediction   []float64 `json:"prediction,omitempty"`
	FeaturesUsed []string  `json:"features_used,omitempty"`
	Error        string    `json:"error,omitempty"`
}

func (p Prediction) OK() bool {
	return p.Error == "" && len(p.Prediction) > 0
}

// Predictions maps model identifiers to their envelopes.
type Predictions map[string]Prediction

// Value returns the first predicted value of the model, if there is a usable one.
func (p Predictions) Value(modelName string) (float64, bool) {
	pred, ok := p[modelName]
	if !ok || !pred.OK() {
		return 0, false
	}
	return pred.Prediction[0], true
}

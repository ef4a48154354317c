package internal

import (
	"net/http"

	"github.com/2beens/fitsense/pkg"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version,omitempty"`
}

type HealthHandler struct {
	versionInfo string
}

func NewHealthHandler(versionInfo string) *HealthHandler {
	return &HealthHandler{versionInfo: versionInfo}
}

func (handler *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteJSON(w, HealthResponse{
		Status:  "healthy",
		Message: "FitSense API is running",
		Version: handler.versionInfo,
	}, http.StatusOK)
}

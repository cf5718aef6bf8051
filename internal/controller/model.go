package controller

import (
	"net/http"

	"bloodmatch/internal/service"

	"github.com/labstack/echo"
	"go.uber.org/zap"
)

type modelRoutesHandler struct {
	predictionService service.Prediction
	maxUploadBytes    int64
	logger            *zap.Logger
}

func newModelRoutesHandler(outer *echo.Group, services *service.Services, opts Options) *modelRoutesHandler {
	h := &modelRoutesHandler{
		predictionService: services.Prediction,
		maxUploadBytes:    opts.MaxUploadBytes,
		logger:            opts.Logger,
	}

	outer.POST("/model/predict", h.Predict)
	outer.GET("/model/health", h.Health)

	return h
}

// /model/predict
func (h *modelRoutesHandler) Predict(c echo.Context) error {
	image, err := readImage(c, fingerprintField, h.maxUploadBytes)
	if err != nil {
		return writeUploadError(c, err)
	}

	prediction, err := h.predictionService.Predict(c.Request().Context(), image, c.RealIP())
	if err != nil {
		return writeServiceError(c, err)
	}
	if e := c.JSON(http.StatusOK, prediction); e != nil {
		return e
	}

	return nil
}

type healthOutput struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Error       string `json:"error,omitempty"`
}

// /model/health
func (h *modelRoutesHandler) Health(c echo.Context) error {
	if err := h.predictionService.Health(c.Request().Context()); err != nil {
		h.logger.Warn("Classifier health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, healthOutput{Status: "unhealthy", Error: err.Error()})
	}

	return c.JSON(http.StatusOK, healthOutput{Status: "healthy", ModelLoaded: true})
}

package controller

import (
	"bloodmatch/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo"
	"go.uber.org/zap"
)

type Options struct {
	// MaxUploadBytes caps fingerprint uploads.
	MaxUploadBytes int64
	// PublicBaseURL prefixes links encoded into request QR codes. When empty the
	// scheme and host of the incoming request are used.
	PublicBaseURL string
	Logger        *zap.Logger
}

func SetupRoutesHandlers(handler *echo.Echo, services *service.Services, opts Options) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	api := handler.Group("/api")
	newDiagnosticRoutesHandler(api, services)
	newBloodRequestRoutesHandler(api, services, validate, opts)
	newDonorRoutesHandler(api, services, validate, opts)
	newModelRoutesHandler(api, services, opts)
}

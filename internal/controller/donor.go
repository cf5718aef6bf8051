package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bloodmatch/internal/entity"
	"bloodmatch/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type donorRoutesHandler struct {
	donorService   service.Donor
	validate       *validator.Validate
	maxUploadBytes int64
	logger         *zap.Logger
}

func newDonorRoutesHandler(outer *echo.Group, services *service.Services, v *validator.Validate, opts Options) *donorRoutesHandler {
	h := &donorRoutesHandler{
		donorService:   services.Donor,
		validate:       v,
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         opts.Logger,
	}

	outer.POST("/requests/:requestId/optin", h.PostOptIn)
	outer.GET("/requests/:requestId/donors", h.GetDonors)
	outer.GET("/requests/:requestId/donors/export", h.ExportDonors)

	return h
}

type postOptInInput struct {
	DonorName                string   `json:"donor_name" validate:"required,max=100"`
	DonorContact             string   `json:"donor_contact" validate:"required,max=120"`
	DonorBloodGroup          string   `json:"donor_blood_group" validate:"required,oneof=A+ A- AB+ AB- B+ B- O+ O-"`
	Confidence               *float64 `json:"confidence" validate:"omitempty,gte=0,lte=1"`
	ProceedWithoutPrediction bool     `json:"proceed_without_prediction"`
}

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// bindMultipartOptIn reads the opt-in form and an optional fingerprint upload.
// A form that cannot be parsed is an error, not a missing file.
func (h *donorRoutesHandler) bindMultipartOptIn(c echo.Context, input *postOptInInput) ([]byte, error) {
	image, err := readImage(c, fingerprintField, h.maxUploadBytes)
	if err != nil && !errors.Is(err, errNoFile) {
		return nil, err
	}

	input.DonorName = c.FormValue("donor_name")
	input.DonorContact = c.FormValue("donor_contact")
	input.DonorBloodGroup = c.FormValue("donor_blood_group")

	if raw := c.FormValue("confidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("'confidence': should be a number")
		}
		input.Confidence = &v
	}
	if raw := c.FormValue("proceed_without_prediction"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("'proceed_without_prediction': should be a boolean")
		}
		input.ProceedWithoutPrediction = v
	}

	return image, nil
}

func newOptInOutput(res *entity.OptInResult) *entity.OptInOutputModel {
	out := &entity.OptInOutputModel{
		DonorId:             res.DonorId,
		RequestId:           res.RequestId,
		CreatedAt:           res.CreatedAt.UTC().Format(time.RFC3339),
		PredictionAvailable: res.PredictionAvailable,
		Confidence:          res.Confidence,
		AllowedToDonate:     res.AllowedToDonate,
		Threshold:           res.Threshold,
	}

	switch {
	case res.AllowedToDonate == nil:
		out.Message = "Successfully registered as donor, eligibility could not be determined"
	case *res.AllowedToDonate:
		out.Message = "Successfully registered as donor"
	default:
		out.Message = "Registered as donor, but prediction confidence is below the donation threshold"
	}

	return out
}

// /requests/:requestId/optin
func (h *donorRoutesHandler) PostOptIn(c echo.Context) error {
	id, err := parseRequestId(c)
	if err != nil {
		return badRequest(c, err.Error(), err)
	}

	var input postOptInInput
	var image []byte
	if isMultipart(c) {
		image, err = h.bindMultipartOptIn(c, &input)
		if err != nil {
			if uploadErrorStatus(err) != http.StatusInternalServerError {
				return writeUploadError(c, err)
			}

			return badRequest(c, err.Error(), err)
		}
	} else if err := c.Bind(&input); err != nil {
		return badRequest(c, "Input data is not formed correctly", err)
	}

	if err := h.validate.Struct(input); err != nil {
		return badRequest(c, getAllErrorMessages(err), err)
	}

	res, err := h.donorService.OptIn(c.Request().Context(), &service.OptInInput{
		RequestId: id,
		Donor: entity.DonorInfo{
			Name:       input.DonorName,
			Contact:    input.DonorContact,
			BloodGroup: input.DonorBloodGroup,
		},
		Image:                    image,
		ReportedConfidence:       input.Confidence,
		ProceedWithoutPrediction: input.ProceedWithoutPrediction,
		IpAddress:                c.RealIP(),
	})
	if err != nil {
		return writeServiceError(c, err)
	}

	if e := c.JSON(http.StatusCreated, newOptInOutput(res)); e != nil {
		return e
	}

	return nil
}

// /requests/:requestId/donors
func (h *donorRoutesHandler) GetDonors(c echo.Context) error {
	id, err := parseRequestId(c)
	if err != nil {
		return badRequest(c, err.Error(), err)
	}

	donors, err := h.donorService.GetRequestDonors(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	if e := c.JSON(http.StatusOK, donors); e != nil {
		return e
	}

	return nil
}

// /requests/:requestId/donors/export
func (h *donorRoutesHandler) ExportDonors(c echo.Context) error {
	id, err := parseRequestId(c)
	if err != nil {
		return badRequest(c, err.Error(), err)
	}

	data, err := h.donorService.ExportRequestDonors(c.Request().Context(), id)
	if err != nil {
		if !errors.Is(err, service.ErrNotFound) {
			h.logger.Error("Failed to export donors", zap.Int64("request_id", id), zap.Error(err))
		}

		return writeServiceError(c, err)
	}

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=request-%d-donors.xlsx", id))
	return c.Blob(http.StatusOK, xlsxContentType, data)
}

package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bloodmatch/internal/common"
	"bloodmatch/internal/entity"
	"bloodmatch/internal/service"
	"bloodmatch/pkg/geo"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const qrCodeSize = 256

var errLocationPair = errors.New("'lat', 'lng': should be given together")

// Layouts accepted for expires_at. Timestamps without a zone are UTC.
var timestampLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05"}

func parseTimestamp(s string) (*time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}

	return nil, fmt.Errorf("'expires_at': should be an ISO 8601 timestamp")
}

type bloodRequestRoutesHandler struct {
	bloodRequestService service.BloodRequest
	lifecycleService    service.Lifecycle
	validate            *validator.Validate
	publicBaseURL       string
	logger              *zap.Logger
}

func newBloodRequestRoutesHandler(outer *echo.Group, services *service.Services, v *validator.Validate, opts Options) *bloodRequestRoutesHandler {
	h := &bloodRequestRoutesHandler{
		bloodRequestService: services.BloodRequest,
		lifecycleService:    services.Lifecycle,
		validate:            v,
		publicBaseURL:       strings.TrimRight(opts.PublicBaseURL, "/"),
		logger:              opts.Logger,
	}

	outer.GET("/requests", h.GetRequests)
	outer.POST("/requests", h.PostRequest)
	outer.POST("/requests/cleanup-expired", h.CleanupExpired)
	outer.GET("/requests/:requestId", h.GetRequest)
	outer.POST("/requests/:requestId/close", h.CloseRequest)
	outer.GET("/requests/:requestId/qrcode", h.GetRequestQRCode)

	return h
}

type getRequestsInput struct {
	BloodGroup string   `validate:"omitempty,oneof=A+ A- AB+ AB- B+ B- O+ O-"`
	Lat        *float64 `validate:"omitempty,gte=-90,lte=90"`
	Lng        *float64 `validate:"omitempty,gte=-180,lte=180"`
	RadiusKm   *float64 `validate:"omitempty,gte=0"`
	Page       int      `validate:"gte=1"`
	PerPage    int      `validate:"gte=1,lte=100"`
}

// echo v3 cannot bind optional numbers from the query string, so they are parsed here.
func parseGetRequestsInput(c echo.Context) (getRequestsInput, error) {
	input := getRequestsInput{Page: common.DefaultPage, PerPage: common.DefaultPerPage}

	// A raw '+' in a query string decodes to a space.
	input.BloodGroup = strings.TrimSpace(strings.Replace(c.QueryParam("blood_group"), " ", "+", 1))

	floats := []struct {
		name string
		dst  **float64
	}{
		{"lat", &input.Lat},
		{"lng", &input.Lng},
		{"radius_km", &input.RadiusKm},
	}
	for _, f := range floats {
		raw := c.QueryParam(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return input, fmt.Errorf("'%s': should be a number", f.name)
		}
		*f.dst = &v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"page", &input.Page},
		{"per_page", &input.PerPage},
	}
	for _, i := range ints {
		raw := c.QueryParam(i.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return input, fmt.Errorf("'%s': should be an integer", i.name)
		}
		*i.dst = v
	}

	if (input.Lat == nil) != (input.Lng == nil) {
		return input, errLocationPair
	}

	return input, nil
}

// /requests
func (h *bloodRequestRoutesHandler) GetRequests(c echo.Context) error {
	input, err := parseGetRequestsInput(c)
	if err != nil {
		return badRequest(c, err.Error(), err)
	}

	if err := h.validate.Struct(input); err != nil {
		return badRequest(c, getAllErrorMessages(err), err)
	}

	filter := &entity.RequestFilter{
		BloodGroup: input.BloodGroup,
		RadiusKm:   input.RadiusKm,
		Pagination: entity.NewPaginationInput(input.Page, input.PerPage),
	}
	if input.Lat != nil && input.Lng != nil {
		filter.Location = &geo.Point{Lat: *input.Lat, Lng: *input.Lng}
	}

	requests, total, err := h.bloodRequestService.ListRequests(c.Request().Context(), filter)
	if err != nil {
		return writeServiceError(c, err)
	}

	out := entity.BloodRequestListOutputModel{
		Requests: requests,
		Total:    total,
		Page:     filter.Pagination.Page,
		PerPage:  filter.Pagination.PerPage,
	}
	if e := c.JSON(http.StatusOK, out); e != nil {
		return e
	}

	return nil
}

type postRequestInput struct {
	Title        string     `json:"title" validate:"required,max=200"`
	BloodGroup   string     `json:"blood_group" validate:"required,oneof=A+ A- AB+ AB- B+ B- O+ O-"`
	UnitsNeeded  *int       `json:"units_needed" validate:"omitempty,gte=1"`
	ContactName  string     `json:"contact_name" validate:"required,max=100"`
	ContactPhone string     `json:"contact_phone" validate:"required,max=30"`
	ContactEmail string     `json:"contact_email" validate:"omitempty,email,max=120"`
	Address      string     `json:"address" validate:"max=300"`
	Lat          *float64   `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lng          *float64   `json:"lng" validate:"omitempty,gte=-180,lte=180"`
	ExpiresAt    string     `json:"expires_at"`
	Description  string     `json:"description"`
}

type postRequestOutput struct {
	Message string                          `json:"message"`
	Id      int64                           `json:"id"`
	Request *entity.BloodRequestOutputModel `json:"request"`
}

// /requests
func (h *bloodRequestRoutesHandler) PostRequest(c echo.Context) error {
	var input postRequestInput
	if err := c.Bind(&input); err != nil {
		return badRequest(c, "Input data is not formed correctly", err)
	}

	if err := h.validate.Struct(input); err != nil {
		return badRequest(c, getAllErrorMessages(err), err)
	}

	if (input.Lat == nil) != (input.Lng == nil) {
		return badRequest(c, errLocationPair.Error(), errLocationPair)
	}

	model := &entity.CreateBloodRequestInput{
		Title: input.Title, BloodGroup: input.BloodGroup,
		ContactName: input.ContactName, ContactPhone: input.ContactPhone, ContactEmail: input.ContactEmail,
		Address: input.Address, Lat: input.Lat, Lng: input.Lng, Description: input.Description,
	}
	if input.ExpiresAt != "" {
		expiresAt, err := parseTimestamp(input.ExpiresAt)
		if err != nil {
			return badRequest(c, err.Error(), err)
		}
		model.ExpiresAt = expiresAt
	}
	if input.UnitsNeeded != nil {
		model.UnitsNeeded = *input.UnitsNeeded
	}

	request, err := h.bloodRequestService.CreateRequest(c.Request().Context(), model)
	if err != nil {
		return writeServiceError(c, err)
	}

	out := postRequestOutput{Message: "Request created successfully", Id: request.Id, Request: request}
	if e := c.JSON(http.StatusCreated, out); e != nil {
		return e
	}

	return nil
}

func parseRequestId(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("requestId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("'requestId': should be a positive integer")
	}

	return id, nil
}

// /requests/:requestId
func (h *bloodRequestRoutesHandler) GetRequest(c echo.Context) error {
	id, err := parseRequestId(c)
	if err != nil {
		return badRequest(c, err.Error(), err)
	}

	request, err := h.bloodRequestService.GetRequestById(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	if e := c.JSON(http.StatusOK, request); e != nil {
		return e
	}

	return nil
}

// /requests/:requestId/close
func (h *bloodRequestRoutesHandler) CloseRequest(c echo.Context) error {
	id, err := parseRequestId(c)
	if err != nil {
		return badRequest(c, err.Error(), err)
	}

	request, err := h.bloodRequestService.CloseRequest(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	if e := c.JSON(http.StatusOK, request); e != nil {
		return e
	}

	return nil
}

type cleanupOutput struct {
	Message      string `json:"message"`
	ExpiredCount int    `json:"expired_count"`
}

// /requests/cleanup-expired
func (h *bloodRequestRoutesHandler) CleanupExpired(c echo.Context) error {
	n, err := h.lifecycleService.ExpireStaleRequests(c.Request().Context(), time.Now())
	if err != nil {
		return writeServiceError(c, err)
	}

	out := cleanupOutput{Message: fmt.Sprintf("Closed %d expired requests", n), ExpiredCount: n}
	if e := c.JSON(http.StatusOK, out); e != nil {
		return e
	}

	return nil
}

func (h *bloodRequestRoutesHandler) requestURL(c echo.Context, id int64) string {
	base := h.publicBaseURL
	if base == "" {
		base = c.Scheme() + "://" + c.Request().Host
	}

	return fmt.Sprintf("%s/requests/%d", base, id)
}

// /requests/:requestId/qrcode
func (h *bloodRequestRoutesHandler) GetRequestQRCode(c echo.Context) error {
	id, err := parseRequestId(c)
	if err != nil {
		return badRequest(c, err.Error(), err)
	}

	if _, err := h.bloodRequestService.GetRequestById(c.Request().Context(), id); err != nil {
		return writeServiceError(c, err)
	}

	png, err := qrcode.Encode(h.requestURL(c, id), qrcode.Medium, qrCodeSize)
	if err != nil {
		h.logger.Error("Failed to encode QR code", zap.Int64("request_id", id), zap.Error(err))
		return writeServiceError(c, err)
	}

	return c.Blob(http.StatusOK, "image/png", png)
}

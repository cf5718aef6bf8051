package classifier

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// HTTPClassifier calls a remote predictor over JSON.
type HTTPClassifier struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewHTTPClassifier(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClassifier {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPClassifier{
		httpClient: client,
		logger:     logger,
	}
}

func (c *HTTPClassifier) Predict(ctx context.Context, image []byte) (*Prediction, error) {
	var response predictResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(predictRequest{ImageBase64: base64.StdEncoding.EncodeToString(image)}).
		SetResult(&response).
		SetError(&response).
		Post("/predict")
	if err != nil {
		c.logger.Error("Predictor call failed", zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}

		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.IsError() {
		c.logger.Error("Predictor returned error status",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("error", response.Error),
		)

		return nil, fmt.Errorf("%w: status %d %s", ErrUnavailable, resp.StatusCode(), response.Error)
	}

	p, err := response.prediction()
	if err != nil {
		c.logger.Warn("Predictor response rejected", zap.Error(err))
		return nil, err
	}

	c.logger.Debug("Prediction received",
		zap.String("predicted_group", p.Label),
		zap.Float64("confidence", p.Confidence),
	)

	return p, nil
}

// Package classifier is the client side of the fingerprint blood-group predictor.
// The model itself runs elsewhere; implementations here only move bytes and
// validate what comes back.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"bloodmatch/internal/common"
)

var (
	ErrUnavailable     = errors.New("classifier unavailable")
	ErrTimeout         = errors.New("classifier timed out")
	ErrMalformedOutput = errors.New("classifier returned malformed output")
)

type Prediction struct {
	Label      string  `json:"predicted_group"`
	Confidence float64 `json:"confidence"`
}

type Classifier interface {
	Predict(ctx context.Context, image []byte) (*Prediction, error)
}

type predictRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// predictResponse is shared by the http and exec predictors.
type predictResponse struct {
	Success        bool     `json:"success"`
	PredictedGroup string   `json:"predicted_group"`
	Confidence     *float64 `json:"confidence"`
	Error          string   `json:"error"`
}

func (r *predictResponse) prediction() (*Prediction, error) {
	if !r.Success {
		msg := r.Error
		if msg == "" {
			msg = "unknown prediction error"
		}

		return nil, fmt.Errorf("%w: %s", ErrUnavailable, msg)
	}

	if r.Confidence == nil {
		return nil, fmt.Errorf("%w: missing confidence", ErrMalformedOutput)
	}

	p := &Prediction{Label: r.PredictedGroup, Confidence: *r.Confidence}
	if err := Validate(p); err != nil {
		return nil, err
	}

	return p, nil
}

// Validate checks the label is a known blood group and confidence lies in [0,1].
func Validate(p *Prediction) error {
	if p == nil {
		return fmt.Errorf("%w: empty prediction", ErrMalformedOutput)
	}
	if !common.IsBloodGroup(p.Label) {
		return fmt.Errorf("%w: unknown label %q", ErrMalformedOutput, p.Label)
	}
	if math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range", ErrMalformedOutput, p.Confidence)
	}

	return nil
}

type timeoutClassifier struct {
	next    Classifier
	timeout time.Duration
}

// WithTimeout bounds every call to next. The caller gets ErrTimeout once the
// deadline passes even if next ignores its context.
func WithTimeout(next Classifier, timeout time.Duration) Classifier {
	return &timeoutClassifier{next: next, timeout: timeout}
}

type predictOutcome struct {
	prediction *Prediction
	err        error
}

func (c *timeoutClassifier) Predict(ctx context.Context, image []byte) (*Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan predictOutcome, 1)
	go func() {
		p, err := c.next.Predict(ctx, image)
		done <- predictOutcome{p, err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(out.err, ErrTimeout) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, out.err)
		}

		return out.prediction, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}

		return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
}

type unavailable struct{}

// Unavailable is used when no predictor is configured.
func Unavailable() Classifier {
	return unavailable{}
}

func (unavailable) Predict(context.Context, []byte) (*Prediction, error) {
	return nil, fmt.Errorf("%w: no predictor configured", ErrUnavailable)
}

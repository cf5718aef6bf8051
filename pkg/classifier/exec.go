package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// ExecClassifier runs the predictor as a child process per call: the image goes
// base64 encoded on stdin, one JSON document is expected on stdout.
type ExecClassifier struct {
	name   string
	args   []string
	logger *zap.Logger
}

func NewExecClassifier(name string, args []string, logger *zap.Logger) *ExecClassifier {
	return &ExecClassifier{name: name, args: args, logger: logger}
}

func (c *ExecClassifier) Predict(ctx context.Context, image []byte) (*Prediction, error) {
	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Stdin = strings.NewReader(base64.StdEncoding.EncodeToString(image))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}

		c.logger.Error("Predictor process failed",
			zap.String("command", c.name),
			zap.Error(err),
			zap.String("stderr", strings.TrimSpace(stderr.String())),
		)

		return nil, fmt.Errorf("%w: %v: %s", ErrUnavailable, err, strings.TrimSpace(stderr.String()))
	}

	var response predictResponse
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	return response.prediction()
}

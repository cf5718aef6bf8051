package classifier

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubClassifier struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	p     *Prediction
	err   error
}

func (s *stubClassifier) Predict(ctx context.Context, image []byte) (*Prediction, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.p, s.err
}

func (s *stubClassifier) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(&Prediction{Label: "AB-", Confidence: 0.5}))
	require.NoError(t, Validate(&Prediction{Label: "O+", Confidence: 0}))
	require.NoError(t, Validate(&Prediction{Label: "O+", Confidence: 1}))

	assert.ErrorIs(t, Validate(nil), ErrMalformedOutput)
	assert.ErrorIs(t, Validate(&Prediction{Label: "Unknown", Confidence: 0.5}), ErrMalformedOutput)
	assert.ErrorIs(t, Validate(&Prediction{Label: "o+", Confidence: 0.5}), ErrMalformedOutput)
	assert.ErrorIs(t, Validate(&Prediction{Label: "A+", Confidence: 1.2}), ErrMalformedOutput)
	assert.ErrorIs(t, Validate(&Prediction{Label: "A+", Confidence: -0.1}), ErrMalformedOutput)
}

func TestWithTimeout_SlowPredictorReturnsTimeout(t *testing.T) {
	slow := &stubClassifier{delay: 200 * time.Millisecond, p: &Prediction{Label: "A+", Confidence: 0.9}}
	c := WithTimeout(slow, 20*time.Millisecond)

	start := time.Now()
	p, err := c.Predict(context.Background(), []byte("img"))

	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestWithTimeout_PassesThrough(t *testing.T) {
	fast := &stubClassifier{p: &Prediction{Label: "B-", Confidence: 0.7}}
	c := WithTimeout(fast, time.Second)

	p, err := c.Predict(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "B-", p.Label)

	failing := &stubClassifier{err: ErrUnavailable}
	_, err = WithTimeout(failing, time.Second).Predict(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable().Predict(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPClassifier_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)

		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		raw, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		require.NoError(t, err)
		assert.Equal(t, "fingerprint", string(raw))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"predicted_group":"O-","confidence":0.83}`))
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, time.Second, zap.NewNop())
	p, err := c.Predict(context.Background(), []byte("fingerprint"))

	require.NoError(t, err)
	assert.Equal(t, "O-", p.Label)
	assert.InDelta(t, 0.83, p.Confidence, 1e-9)
}

func TestHTTPClassifier_Failures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unsuccessful", http.StatusOK, `{"success":false,"error":"model not loaded"}`, ErrUnavailable},
		{"server error", http.StatusInternalServerError, `{"success":false,"error":"boom"}`, ErrUnavailable},
		{"bad label", http.StatusOK, `{"success":true,"predicted_group":"Unknown","confidence":0.5}`, ErrMalformedOutput},
		{"missing confidence", http.StatusOK, `{"success":true,"predicted_group":"A+"}`, ErrMalformedOutput},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewHTTPClassifier(srv.URL, time.Second, zap.NewNop()).Predict(context.Background(), []byte("x"))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestHTTPClassifier_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPClassifier(url, time.Second, zap.NewNop()).Predict(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestExecClassifier(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	ok := NewExecClassifier("sh", []string{"-c", `cat >/dev/null; printf '{"success":true,"predicted_group":"AB+","confidence":0.91}'`}, zap.NewNop())
	p, err := ok.Predict(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "AB+", p.Label)

	crash := NewExecClassifier("sh", []string{"-c", `echo broken >&2; exit 3`}, zap.NewNop())
	_, err = crash.Predict(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrUnavailable)

	garbage := NewExecClassifier("sh", []string{"-c", `cat >/dev/null; echo not-json`}, zap.NewNop())
	_, err = garbage.Predict(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

type memoryCache struct {
	values map[string]string
	getErr error
	setErr error
}

func newMemoryCache() *memoryCache { return &memoryCache{values: map[string]string{}} }

func (m *memoryCache) Get(ctx context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func TestCachedClassifier_HitsCacheOnSecondCall(t *testing.T) {
	next := &stubClassifier{p: &Prediction{Label: "A-", Confidence: 0.66}}
	cache := newMemoryCache()
	c := NewCachedClassifier(next, cache, time.Hour, zap.NewNop())

	for i := 0; i < 3; i++ {
		p, err := c.Predict(context.Background(), []byte("same image"))
		require.NoError(t, err)
		assert.Equal(t, "A-", p.Label)
	}
	assert.Equal(t, 1, next.Calls())

	_, err := c.Predict(context.Background(), []byte("other image"))
	require.NoError(t, err)
	assert.Equal(t, 2, next.Calls())
}

func TestCachedClassifier_CacheErrorsAreIgnored(t *testing.T) {
	next := &stubClassifier{p: &Prediction{Label: "B+", Confidence: 0.7}}
	cache := newMemoryCache()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	c := NewCachedClassifier(next, cache, time.Hour, zap.NewNop())

	p, err := c.Predict(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "B+", p.Label)
}

func TestCachedClassifier_DoesNotCacheFailures(t *testing.T) {
	next := &stubClassifier{err: ErrUnavailable}
	cache := newMemoryCache()
	c := NewCachedClassifier(next, cache, time.Hour, zap.NewNop())

	_, err := c.Predict(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Empty(t, cache.values)
}

package analyzer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtualfit/internal/domain"
	"virtualfit/internal/infra/config"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type upload struct {
	filename    string
	contentType string
	data        []byte
}

// analysisServer answers /analyze-food with handler and records uploads.
func analysisServer(t *testing.T, handler func(w http.ResponseWriter, u upload)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/analyze-food" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		handler(w, upload{filename: hdr.Filename, contentType: hdr.Header.Get("Content-Type"), data: data})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(t *testing.T, baseURL string, cfg config.AnalyzerConfig) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: baseURL, Analyzer: cfg, Logger: newTestLogger()})
	require.NoError(t, err)
	return c
}

func writeImage(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestAnalyzeSuccess(t *testing.T) {
	var got upload
	srv, _ := analysisServer(t, func(w http.ResponseWriter, u upload) {
		got = u
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "success",
			"filename":       u.filename,
			"classification": "Food",
			"food_name":      "apple pie",
			"nutrition": map[string]any{
				"minutes":   70,
				"nutrition": "[353.1, 22.0, 118.0, 13.0, 6.0, 28.0, 17.0]",
			},
		})
	})
	c := newClient(t, srv.URL+"/", config.AnalyzerConfig{})

	res, err := c.Analyze(context.Background(), writeImage(t, "pie.png", pngBytes))
	require.NoError(t, err)

	assert.Equal(t, "pie.png", got.filename)
	assert.Equal(t, "image/png", got.contentType)
	assert.Equal(t, pngBytes, got.data)

	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "apple pie", res.FoodName)
	assert.True(t, res.IsFood())
	assert.Contains(t, domain.FormatAnalysis(res), "Calories: 353.1 kcal")
	assert.Equal(t, srv.URL+"/analyze-food", c.Endpoint())
}

func TestAnalyzeRejectsNonImageLocally(t *testing.T) {
	srv, hits := analysisServer(t, func(w http.ResponseWriter, u upload) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
	})
	c := newClient(t, srv.URL, config.AnalyzerConfig{})

	_, err := c.Analyze(context.Background(), writeImage(t, "notes.txt", []byte("just some text")))
	require.ErrorIs(t, err, domain.ErrNotAnImage)
	assert.Equal(t, "File must be an image", domain.DetailOf(err))
	assert.Zero(t, hits.Load())
}

func TestAnalyzeLocalFailures(t *testing.T) {
	c := newClient(t, "http://127.0.0.1:1", config.AnalyzerConfig{MaxUploadBytes: 8})

	_, err := c.Analyze(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = c.Analyze(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, domain.ErrNotAnImage)

	_, err = c.Analyze(context.Background(), writeImage(t, "big.png", pngBytes))
	assert.ErrorIs(t, err, domain.ErrUploadTooLarge)
	assert.Equal(t, domain.CodeUploadTooLarge, domain.ErrorCodeOf(err))
}

func TestAnalyzeServerErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		detail string
	}{
		{"fastapi detail", http.StatusBadRequest, map[string]any{"detail": "File must be an image"}, "File must be an image"},
		{"server failure", http.StatusInternalServerError, map[string]any{"detail": "Error processing image: boom"}, "Error processing image: boom"},
		{"validation list", http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]any{{"msg": "field required"}}}, "field required"},
		{"message body", http.StatusBadGateway, map[string]any{"message": "upstream down"}, "upstream down"},
		{"opaque body", http.StatusServiceUnavailable, "nope", "server returned 503 Service Unavailable"},
		{"failed status", http.StatusOK, map[string]any{"status": "error"}, "analysis status: error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := analysisServer(t, func(w http.ResponseWriter, u upload) {
				writeJSON(w, tt.status, tt.body)
			})
			c := newClient(t, srv.URL, config.AnalyzerConfig{})

			_, err := c.AnalyzeBytes(context.Background(), "meal.png", pngBytes)
			require.ErrorIs(t, err, domain.ErrAnalysisFailed)
			assert.Equal(t, tt.detail, domain.DetailOf(err))
		})
	}
}

func TestAnalyzeCircuitBreaker(t *testing.T) {
	status := http.StatusInternalServerError
	srv, hits := analysisServer(t, func(w http.ResponseWriter, u upload) {
		writeJSON(w, status, map[string]any{"detail": "down"})
	})
	c := newClient(t, srv.URL, config.AnalyzerConfig{
		CircuitBreaker: config.CircuitBreakerConfig{Enabled: true, MaxFailures: 2, Timeout: time.Minute},
	})

	for range 2 {
		_, err := c.AnalyzeBytes(context.Background(), "a.png", pngBytes)
		require.ErrorIs(t, err, domain.ErrAnalysisFailed)
	}
	_, err := c.AnalyzeBytes(context.Background(), "a.png", pngBytes)
	require.ErrorIs(t, err, domain.ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load())
}

func TestAnalyzeClientErrorsDoNotTripBreaker(t *testing.T) {
	srv, hits := analysisServer(t, func(w http.ResponseWriter, u upload) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "bad upload"})
	})
	c := newClient(t, srv.URL, config.AnalyzerConfig{
		CircuitBreaker: config.CircuitBreakerConfig{Enabled: true, MaxFailures: 1, Timeout: time.Minute},
	})

	for range 3 {
		_, err := c.AnalyzeBytes(context.Background(), "a.png", pngBytes)
		require.ErrorIs(t, err, domain.ErrAnalysisFailed)
		assert.NotErrorIs(t, err, domain.ErrCircuitOpen)
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestAnalyzeRateLimit(t *testing.T) {
	srv, hits := analysisServer(t, func(w http.ResponseWriter, u upload) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "food_name": "Non-Food"})
	})
	c := newClient(t, srv.URL, config.AnalyzerConfig{RequestsPerMinute: 1, Burst: 1})

	_, err := c.AnalyzeBytes(context.Background(), "a.png", pngBytes)
	require.NoError(t, err)
	_, err = c.AnalyzeBytes(context.Background(), "a.png", pngBytes)
	require.ErrorIs(t, err, domain.ErrRateLimit)
	assert.Equal(t, int32(1), hits.Load())
}

func TestAnalyzeCancel(t *testing.T) {
	release := make(chan struct{})
	srv, _ := analysisServer(t, func(w http.ResponseWriter, u upload) {
		<-release
	})
	defer close(release)
	c := newClient(t, srv.URL, config.AnalyzerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := c.AnalyzeBytes(ctx, "a.png", pngBytes)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://host", "localhost:8000", "http://"} {
		_, err := New(Options{BaseURL: raw})
		assert.ErrorIs(t, err, domain.ErrInvalidInput, raw)
	}
}

func TestSniffImage(t *testing.T) {
	mime, err := SniffImage([]byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)

	_, err = SniffImage([]byte("%PDF-1.7"))
	assert.ErrorIs(t, err, domain.ErrNotAnImage)
}

// Package analyzer uploads food images to the /analyze-food REST endpoint.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"virtualfit/internal/domain"
	"virtualfit/internal/infra/breaker"
	"virtualfit/internal/infra/config"
	"virtualfit/internal/infra/middleware"
	"virtualfit/internal/infra/tracer"
)

const (
	endpointPath     = "/analyze-food"
	maxResponseBody  = 1 << 20
	defaultTimeout   = 60 * time.Second
	defaultMaxUpload = 10 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL    string // e.g. http://localhost:8000
	Timeout    time.Duration
	Analyzer   config.AnalyzerConfig
	HTTPClient *http.Client // optional, for tests
	Logger     *slog.Logger
}

// Client calls the image analysis endpoint. It is safe for concurrent use.
type Client struct {
	endpoint string
	http     *http.Client
	maxBytes int64
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[*domain.FoodAnalysis] // nil when disabled
	logger   *slog.Logger
}

// New creates a Client for the API at opts.BaseURL.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: analyzer base url %q", domain.ErrInvalidInput, opts.BaseURL)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	maxBytes := opts.Analyzer.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUpload
	}

	c := &Client{
		endpoint: u.String() + endpointPath,
		http:     hc,
		maxBytes: maxBytes,
		limiter:  middleware.NewLimiter(opts.Analyzer.RequestsPerMinute, opts.Analyzer.Burst),
		logger:   logger.With("component", "analyzer"),
	}
	if opts.Analyzer.CircuitBreaker.Enabled {
		c.breaker = breaker.New[*domain.FoodAnalysis]("analyzer", opts.Analyzer.CircuitBreaker, logger, isBreakerSuccess)
	}
	return c, nil
}

// Endpoint returns the full analysis URL.
func (c *Client) Endpoint() string { return c.endpoint }

// MaxUploadBytes returns the largest image the client will send.
func (c *Client) MaxUploadBytes() int64 { return c.maxBytes }

// Analyze implements domain.ImageAnalyzer. ref is a local file path.
func (c *Client) Analyze(ctx context.Context, ref string) (*domain.FoodAnalysis, error) {
	const op = "analyzer.Analyze"

	info, err := os.Stat(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewSubSystemError("analyzer", op, domain.ErrNotFound, "image file not found: "+ref)
		}
		return nil, domain.NewSubSystemError("analyzer", op, domain.ErrAnalysisFailed, err.Error())
	}
	if info.IsDir() {
		return nil, domain.NewSubSystemError("analyzer", op, domain.ErrNotAnImage, ref+" is a directory")
	}
	if info.Size() > c.maxBytes {
		return nil, tooLarge(op, c.maxBytes)
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, domain.NewSubSystemError("analyzer", op, domain.ErrAnalysisFailed, err.Error())
	}
	return c.AnalyzeBytes(ctx, filepath.Base(ref), data)
}

// AnalyzeBytes uploads an in-memory image.
func (c *Client) AnalyzeBytes(ctx context.Context, filename string, data []byte) (*domain.FoodAnalysis, error) {
	const op = "analyzer.AnalyzeBytes"

	if int64(len(data)) > c.maxBytes {
		return nil, tooLarge(op, c.maxBytes)
	}
	mime, err := SniffImage(data)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	if !c.limiter.Allow() {
		return nil, domain.NewSubSystemError("analyzer", op, domain.ErrRateLimit, "too many image requests")
	}

	ctx, span := tracer.StartSpan(ctx, "analyzer.analyze",
		tracer.StringAttr("image.filename", filename),
		tracer.StringAttr("image.mime", mime),
		tracer.IntAttr("image.bytes", len(data)),
	)
	defer span.End()

	call := func() (*domain.FoodAnalysis, error) {
		return c.post(ctx, filename, mime, data)
	}
	var result *domain.FoodAnalysis
	if c.breaker != nil {
		result, err = c.breaker.Execute(call)
		err = breaker.MapError("analyzer", err)
	} else {
		result, err = call()
	}
	var rej *rejected
	if errors.As(err, &rej) {
		err = rej.err
	}
	if err != nil {
		tracer.RecordError(span, err)
		c.logger.Warn("image analysis failed", "filename", filename, "error", err)
		return nil, err
	}

	tracer.SetOK(span)
	c.logger.Info("image analyzed", "filename", filename, "food", result.FoodName, "classification", result.Classification)
	return result, nil
}

func (c *Client) post(ctx context.Context, filename, mime string, data []byte) (*domain.FoodAnalysis, error) {
	const op = "analyzer.post"

	body, contentType, err := encodeUpload(filename, mime, data)
	if err != nil {
		return nil, domain.NewSubSystemError("analyzer", op, domain.ErrAnalysisFailed, err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, domain.NewSubSystemError("analyzer", op, domain.ErrAnalysisFailed, err.Error())
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return nil, domain.WrapOp(op, context.Canceled)
		case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
			return nil, domain.NewSubSystemError("analyzer", op, domain.ErrTimeout,
				"the analysis server did not respond in time")
		}
		return nil, domain.NewSubSystemError("analyzer", op, domain.ErrAnalysisFailed,
			"could not reach the analysis server")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, domain.NewSubSystemError("analyzer", op, domain.ErrAnalysisFailed, "read response: "+err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		derr := domain.NewSubSystemError("analyzer", op, domain.ErrAnalysisFailed, errorDetail(resp.StatusCode, raw))
		if resp.StatusCode < 500 {
			return nil, &rejected{err: derr}
		}
		return nil, derr
	}

	var result domain.FoodAnalysis
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, domain.NewSubSystemError("analyzer", op, domain.ErrAnalysisFailed, "malformed response from the analysis server")
	}
	if result.Status != "" && result.Status != "success" {
		return nil, domain.NewSubSystemError("analyzer", op, domain.ErrAnalysisFailed, "analysis status: "+result.Status)
	}
	return &result, nil
}

func encodeUpload(filename, mime string, data []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", mime)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// SniffImage detects the content type of data and rejects anything that is
// not an image.
func SniffImage(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", domain.NewSubSystemError("analyzer", "analyzer.SniffImage", domain.ErrNotAnImage, "File must be an image")
	}
	mime, _, _ := strings.Cut(mt.String(), ";")
	return mime, nil
}

// errorDetail extracts FastAPI-style {"detail": ...} or {"message": ...}
// bodies, falling back to the status text.
func errorDetail(status int, body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if len(payload.Detail) > 0 {
			var s string
			if json.Unmarshal(payload.Detail, &s) == nil && s != "" {
				return s
			}
			// Validation errors arrive as a list of {"msg": ...}.
			var list []struct {
				Msg string `json:"msg"`
			}
			if json.Unmarshal(payload.Detail, &list) == nil && len(list) > 0 && list[0].Msg != "" {
				return list[0].Msg
			}
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fmt.Sprintf("server returned %d %s", status, http.StatusText(status))
}

func tooLarge(op string, limit int64) error {
	return domain.NewSubSystemError("analyzer", op, domain.ErrUploadTooLarge,
		fmt.Sprintf("image is larger than %d MB", limit>>20))
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// rejected marks a 4xx answer so it does not count against the breaker.
type rejected struct{ err error }

func (r *rejected) Error() string { return r.err.Error() }
func (r *rejected) Unwrap() error { return r.err }

func isBreakerSuccess(err error) bool {
	var rej *rejected
	return errors.As(err, &rej) || breaker.IgnoreCallerErrors(err)
}

var _ domain.ImageAnalyzer = (*Client)(nil)

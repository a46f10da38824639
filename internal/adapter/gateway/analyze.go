package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"

	"virtualfit/internal/adapter/analyzer"
	"virtualfit/internal/domain"
	"virtualfit/internal/infra/middleware"
)

const (
	defaultMaxUpload = 10 << 20
	multipartSlack   = 1 << 20
)

// ImageAnalyzer runs food analysis on an uploaded image.
type ImageAnalyzer interface {
	AnalyzeBytes(ctx context.Context, filename string, data []byte) (*domain.FoodAnalysis, error)
}

// handleAnalyze serves POST /analyze-food. The upload must be a multipart
// "file" field whose content sniffs as an image.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		middleware.WriteDetail(w, http.StatusNotImplemented, "Image analysis is not configured on this server")
		return
	}
	s.metrics.Analyses.Add(1)

	maxBytes := s.cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartSlack)

	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			middleware.WriteDetail(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		middleware.WriteDetail(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		middleware.WriteDetail(w, http.StatusBadRequest, "could not read upload")
		return
	}
	if int64(len(data)) > maxBytes {
		middleware.WriteDetail(w, http.StatusRequestEntityTooLarge, "Upload too large")
		return
	}
	if _, err := analyzer.SniffImage(data); err != nil {
		middleware.WriteDetail(w, http.StatusBadRequest, "File must be an image")
		return
	}

	result, err := s.analyzer.AnalyzeBytes(r.Context(), hdr.Filename, data)
	if err != nil {
		s.logger.Warn("analysis proxy failed", "filename", hdr.Filename, "error", err)
		middleware.WriteDetail(w, analyzeStatus(err), "Error processing image: "+domain.DetailOf(err))
		return
	}
	if result.Filename == "" {
		result.Filename = hdr.Filename
	}
	writeJSON(w, http.StatusOK, result)
}

func analyzeStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrRateLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrNotAnImage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadGateway
	}
}

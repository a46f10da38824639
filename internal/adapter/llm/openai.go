package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"virtualfit/internal/domain"
	"virtualfit/internal/infra/config"
	"virtualfit/internal/infra/tracer"
)

// OpenAIResponder streams replies from any OpenAI-compatible chat completions
// API, including Ollama's /v1 endpoint.
type OpenAIResponder struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewOpenAIResponder creates a responder with configured timeouts. For the
// ollama provider the base URL is pointed at its OpenAI-compatible API.
func NewOpenAIResponder(cfg config.AssistantConfig, logger *slog.Logger) *OpenAIResponder {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	switch {
	case baseURL == "" && cfg.Provider == "ollama":
		baseURL = "http://localhost:11434/v1"
	case baseURL == "":
		baseURL = "https://api.openai.com/v1"
	case cfg.Provider == "ollama" && !strings.HasSuffix(baseURL, "/v1"):
		baseURL += "/v1"
	}
	name := cfg.Provider
	if name == "" {
		name = "openai"
	}
	model := cfg.Model
	if model == "" {
		model = config.DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIResponder{
		name:    name,
		model:   model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  NewHTTPClient(cfg),
		logger:  logger,
	}
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model    string          `json:"model"`
	Messages []openaiMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	User     string          `json:"user,omitempty"`
}

type openaiStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Respond implements domain.Responder.
func (p *OpenAIResponder) Respond(ctx context.Context, req domain.ReplyRequest) (<-chan domain.StreamDelta, error) {
	ctx, span := tracer.StartSpan(ctx, "llm.stream",
		tracer.StringAttr("llm.provider", p.name),
		tracer.StringAttr("llm.model", p.model),
	)
	defer span.End()

	text := ClampInput(req.Text)
	if text == "" {
		err := fmt.Errorf("%w: empty prompt", domain.ErrInvalidInput)
		tracer.RecordError(span, err)
		return nil, err
	}

	body, err := json.Marshal(openaiRequest{
		Model: p.model,
		Messages: []openaiMessage{
			{Role: "system", Content: SystemPrompt(req.UserData)},
			{Role: "user", Content: text},
		},
		Stream: true,
		User:   req.UserID,
	})
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	httpResp, err := doStreamRequest(ctx, p.client, p.baseURL+"/chat/completions", body, headers)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	tracer.SetOK(span)
	p.logger.Debug("llm stream started", "provider", p.name, "model", p.model, "user_id", req.UserID)

	return parseSSEStream(ctx, httpResp.Body, parseOpenAIChunk), nil
}

func parseOpenAIChunk(data []byte) (*domain.StreamDelta, error) {
	var chunk openaiStreamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, err
	}
	if chunk.Error != nil {
		return &domain.StreamDelta{
			Done: true,
			Err:  fmt.Errorf("%w: %s", domain.ErrProviderError, chunk.Error.Message),
		}, nil
	}

	delta := &domain.StreamDelta{}
	if len(chunk.Choices) > 0 {
		c := chunk.Choices[0]
		delta.Content = c.Delta.Content
		if c.FinishReason != nil && *c.FinishReason != "" {
			delta.Done = true
		}
	}
	if delta.Content == "" && !delta.Done {
		return nil, nil
	}
	return delta, nil
}

// Name implements domain.Responder.
func (p *OpenAIResponder) Name() string { return p.name }

var _ domain.Responder = (*OpenAIResponder)(nil)

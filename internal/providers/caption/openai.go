package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"photopipe/internal/domain"
)

type OpenAIOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Options    Options
	Fallback   domain.CaptionGenerator
	OnFallback func(reason string, err error)
}

// OpenAIGenerator captions through an OpenAI-compatible chat completions
// endpoint. Any failure is reported through OnFallback and answered by the
// fallback generator.
type OpenAIGenerator struct {
	apiKey     string
	model      string
	baseURL    string
	client     *http.Client
	opts       Options
	fallback   domain.CaptionGenerator
	onFallback func(reason string, err error)
}

const openAIDefaultTimeout = 15 * time.Second

const defaultOpenAIModel = "gpt-4o-mini"

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float32         `json:"temperature,omitempty"`
	TopP        float32         `json:"top_p,omitempty"`
	MaxTokens   int32           `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewOpenAIGenerator(opts OpenAIOptions) *OpenAIGenerator {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	inference := opts.Options
	if inference == (Options{}) {
		inference = DefaultOptions()
	}
	fallback := opts.Fallback
	if fallback == nil {
		fallback = NewStaticGenerator()
	}
	return &OpenAIGenerator{
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      model,
		baseURL:    baseURL,
		client:     client,
		opts:       inference,
		fallback:   fallback,
		onFallback: opts.OnFallback,
	}
}

func (o *OpenAIGenerator) Generate(ctx context.Context, labels []string) (string, error) {
	if o.apiKey == "" {
		return o.useFallback(ctx, labels, "missing_api_key", nil)
	}
	payload := openAIChatRequest{
		Model:       o.model,
		Temperature: o.opts.Temperature,
		TopP:        o.opts.TopP,
		MaxTokens:   o.opts.MaxTokens,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(labels)},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return o.useFallback(ctx, labels, "encode_request", err)
	}
	endpoint := fmt.Sprintf("%s/chat/completions", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return o.useFallback(ctx, labels, "build_request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return o.useFallback(ctx, labels, "http_request", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return o.useFallback(ctx, labels, fmt.Sprintf("http_%d", resp.StatusCode), fmt.Errorf("openai status %d", resp.StatusCode))
	}
	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return o.useFallback(ctx, labels, "decode_response", err)
	}
	if len(out.Choices) == 0 {
		return o.useFallback(ctx, labels, "empty_choices", errors.New("no choices"))
	}
	caption, err := extractCaption(out.Choices[0].Message.Content)
	if err != nil {
		return o.useFallback(ctx, labels, "empty_response", err)
	}
	return caption, nil
}

func (o *OpenAIGenerator) useFallback(ctx context.Context, labels []string, reason string, err error) (string, error) {
	if o.onFallback != nil {
		o.onFallback(reason, err)
	}
	return o.fallback.Generate(ctx, labels)
}

var _ domain.CaptionGenerator = (*OpenAIGenerator)(nil)

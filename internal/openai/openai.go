package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/ageless-collectibles/cardcataloger/internal/models"
	"github.com/ageless-collectibles/cardcataloger/internal/providers"
)

const (
	defaultURL   = "https://api.openai.com/v1/chat/completions"
	DefaultModel = "gpt-4o"
)

// OpenAI is a provider for OpenAI chat completions with image input
type OpenAI struct {
	url        string
	httpClient *http.Client
	retry      providers.RetryPolicy
}

// Option customizes the provider.
type Option func(*OpenAI)

// WithBaseURL overrides the chat completions endpoint.
func WithBaseURL(url string) Option {
	return func(o *OpenAI) {
		if strings.TrimSpace(url) != "" {
			o.url = strings.TrimSpace(url)
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *OpenAI) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithRetryPolicy overrides the default backoff policy.
func WithRetryPolicy(policy providers.RetryPolicy) Option {
	return func(o *OpenAI) {
		o.retry = policy
	}
}

// New returns a new OpenAI provider
func New(opts ...Option) *OpenAI {
	o := &OpenAI{
		url:        defaultURL,
		httpClient: &http.Client{},
		retry:      providers.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Live() bool { return true }

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []message         `json:"messages"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Analyze sends the card images and hints to OpenAI and decodes the JSON reply
func (o *OpenAI) Analyze(ctx context.Context, req providers.Request) (models.RawResponse, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY environment variable not set", providers.ErrMissingCredential)
	}

	var parts []contentPart
	for _, text := range providers.UserPromptParts(req) {
		parts = append(parts, contentPart{Type: "text", Text: text})
	}
	for _, path := range []string{req.FrontImage, req.BackImage} {
		dataURL, err := encodeImage(path)
		if err != nil {
			return nil, err
		}
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: dataURL}})
	}

	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	requestBody, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []message{
			{Role: "system", Content: providers.SystemPrompt(req)},
			{Role: "user", Content: parts},
		},
		MaxTokens:      req.MaxTokens,
		Temperature:    req.Temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	var body []byte
	err = o.retry.Do(ctx, "openai analyze", func(ctx context.Context) error {
		var sendErr error
		body, sendErr = o.send(ctx, apiKey, requestBody)
		return sendErr
	})
	if err != nil {
		return nil, err
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response body: %v", providers.ErrMalformedResponse, err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned from OpenAI", providers.ErrMalformedResponse)
	}
	choice := response.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, fmt.Errorf("%w: empty content (finish_reason=%q, refusal=%q)",
			providers.ErrMalformedResponse, choice.FinishReason, choice.Message.Refusal)
	}
	return providers.DecodeResponse(choice.Message.Content)
}

func (o *OpenAI) send(ctx context.Context, apiKey string, requestBody []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &providers.StatusError{
			Provider:   "openai",
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: providers.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return body, nil
}

func encodeImage(path string) (string, error) {
	data, err := providers.ReadImage(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("data:%s;base64,%s", providers.ImageMIMEType(path), base64.StdEncoding.EncodeToString(data)), nil
}

package ollama

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

// DefaultModel is used when no model name is configured.
const DefaultModel = "mistral-small3.2:24b"

// Ollama is a provider for a local Ollama server
type Ollama struct {
	baseURL    string
	httpClient *http.Client
	retry      providers.RetryPolicy
}

// Option customizes the provider.
type Option func(*Ollama)

// WithBaseURL overrides the server address. OLLAMA_URL and OLLAMA_HOST are used otherwise.
func WithBaseURL(baseURL string) Option {
	return func(o *Ollama) {
		if strings.TrimSpace(baseURL) != "" {
			o.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
		}
	}
}

// WithRetryPolicy overrides the default backoff policy.
func WithRetryPolicy(policy providers.RetryPolicy) Option {
	return func(o *Ollama) {
		o.retry = policy
	}
}

// New returns a new Ollama provider
func New(opts ...Option) *Ollama {
	o := &Ollama{
		httpClient: &http.Client{},
		retry:      providers.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Live() bool { return true }

func (o *Ollama) host() string {
	if o.baseURL != "" {
		return o.baseURL
	}
	host := os.Getenv("OLLAMA_URL")
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	return strings.TrimRight(host, "/")
}

// Analyze sends the card images and hints to Ollama and decodes the JSON reply
func (o *Ollama) Analyze(ctx context.Context, req providers.Request) (models.RawResponse, error) {
	var images []string
	for _, path := range []string{req.FrontImage, req.BackImage} {
		data, err := providers.ReadImage(path)
		if err != nil {
			return nil, err
		}
		images = append(images, base64.StdEncoding.EncodeToString(data))
	}

	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	options := map[string]interface{}{
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	requestBody, err := json.Marshal(map[string]interface{}{
		"model":   model,
		"system":  providers.SystemPrompt(req),
		"prompt":  providers.UserPrompt(req),
		"images":  images,
		"stream":  false,
		"format":  "json",
		"options": options,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	var body []byte
	err = o.retry.Do(ctx, "ollama analyze", func(ctx context.Context) error {
		var sendErr error
		body, sendErr = o.send(ctx, requestBody)
		return sendErr
	})
	if err != nil {
		return nil, err
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: failed to decode Ollama response: %v", providers.ErrMalformedResponse, err)
	}
	return providers.DecodeResponse(response.Response)
}

func (o *Ollama) send(ctx context.Context, requestBody []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host()+"/api/generate", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Ollama API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &providers.StatusError{
			Provider:   "ollama",
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: providers.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return body, nil
}

package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/ageless-collectibles/cardcataloger/internal/models"
	"github.com/ageless-collectibles/cardcataloger/internal/providers"
	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-1.5-flash"

// Gemini is a provider for Google Gemini
type Gemini struct {
	retry providers.RetryPolicy
	opts  []option.ClientOption
}

// Option customizes the provider.
type Option func(*Gemini)

// WithRetryPolicy overrides the default backoff policy.
func WithRetryPolicy(policy providers.RetryPolicy) Option {
	return func(g *Gemini) {
		g.retry = policy
	}
}

// WithClientOptions appends Google API client options, e.g. a custom endpoint.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(g *Gemini) {
		g.opts = append(g.opts, opts...)
	}
}

// New returns a new Gemini provider
func New(opts ...Option) *Gemini {
	g := &Gemini{retry: providers.DefaultRetryPolicy()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Live() bool { return true }

// Analyze sends the card images and hints to Gemini and decodes the JSON reply
func (g *Gemini) Analyze(ctx context.Context, req providers.Request) (models.RawResponse, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY environment variable not set", providers.ErrMissingCredential)
	}

	var parts []genai.Part
	for _, text := range providers.UserPromptParts(req) {
		parts = append(parts, genai.Text(text))
	}
	for _, path := range []string{req.FrontImage, req.BackImage} {
		data, err := providers.ReadImage(path)
		if err != nil {
			return nil, err
		}
		format := strings.TrimPrefix(providers.ImageMIMEType(path), "image/")
		parts = append(parts, genai.ImageData(format, data))
	}

	clientOpts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, g.opts...)
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	name := req.Model
	if name == "" {
		name = DefaultModel
	}
	model := client.GenerativeModel(name)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(providers.SystemPrompt(req))}}

	var resp *genai.GenerateContentResponse
	err = g.retry.Do(ctx, "gemini analyze", func(ctx context.Context) error {
		var genErr error
		resp, genErr = model.GenerateContent(ctx, parts...)
		if genErr != nil {
			return classifyError(genErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	return providers.DecodeResponse(text)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates returned from Gemini", providers.ErrMalformedResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty content returned from Gemini", providers.ErrMalformedResponse)
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("%w: unexpected response format from Gemini", providers.ErrMalformedResponse)
	}
	return b.String(), nil
}

var grpcToHTTP = map[codes.Code]int{
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.Unauthenticated:    http.StatusUnauthorized,
	codes.PermissionDenied:   http.StatusForbidden,
	codes.NotFound:           http.StatusNotFound,
	codes.Aborted:            http.StatusConflict,
	codes.ResourceExhausted:  http.StatusTooManyRequests,
	codes.Internal:           http.StatusInternalServerError,
	codes.Unavailable:        http.StatusServiceUnavailable,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
	codes.Unimplemented:      http.StatusNotImplemented,
	codes.FailedPrecondition: http.StatusBadRequest,
}

// classifyError maps Google API errors onto providers.StatusError so the
// shared retry policy can tell transient faults from permanent ones.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &providers.StatusError{Provider: "gemini", StatusCode: gerr.Code, Body: gerr.Message}
	}

	if apiErr, ok := apierror.FromError(err); ok {
		code := apiErr.HTTPCode()
		if code <= 0 {
			if mapped, ok := grpcToHTTP[apiErr.GRPCStatus().Code()]; ok {
				code = mapped
			}
		}
		if code > 0 {
			return &providers.StatusError{Provider: "gemini", StatusCode: code, Body: apiErr.Error()}
		}
	}
	return fmt.Errorf("failed to generate content: %w", err)
}

package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"lyriscope/internal/services"
)

const (
	// DefaultModel is the embeddings model used when none is configured.
	DefaultModel = "text-embedding-3-small"

	// DefaultDimensions matches the index the import tool builds by default.
	DefaultDimensions = 512

	// maxBatch is the provider's per-request input ceiling.
	maxBatch = 2048
)

// OpenAI implements Encoder against the OpenAI embeddings API. Any
// OpenAI-compatible provider works by overriding the base URL.
type OpenAI struct {
	client *openai.Client
	model  string
	dim    int
}

var _ Encoder = (*OpenAI)(nil)

// Option customizes the OpenAI encoder.
type Option func(*openaiConfig)

type openaiConfig struct {
	model      string
	dim        int
	baseURL    string
	httpClient *http.Client
}

// WithModel sets the embeddings model name.
func WithModel(model string) Option {
	return func(c *openaiConfig) {
		if strings.TrimSpace(model) != "" {
			c.model = strings.TrimSpace(model)
		}
	}
}

// WithDimensions sets the requested output dimensionality.
func WithDimensions(dim int) Option {
	return func(c *openaiConfig) {
		if dim > 0 {
			c.dim = dim
		}
	}
}

// WithBaseURL overrides the API base URL (useful for compatible providers
// and tests).
func WithBaseURL(url string) Option {
	return func(c *openaiConfig) {
		c.baseURL = strings.TrimSpace(url)
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *openaiConfig) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewOpenAI constructs an encoder backed by the OpenAI embeddings API.
func NewOpenAI(apiKey string, opts ...Option) (*OpenAI, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "embedding", "new", "embedding API key is required", nil)
	}

	cfg := openaiConfig{
		model:      DefaultModel,
		dim:        DefaultDimensions,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	client := openai.NewClient(clientOpts...)

	return &OpenAI{client: &client, model: cfg.model, dim: cfg.dim}, nil
}

// Encode returns the embedding for a single text.
func (o *OpenAI) Encode(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrValidation, "embedding", "encode", "empty text", nil)
	}
	vecs, err := o.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EncodeBatch returns embeddings for multiple texts. Batches beyond the
// provider limit are split across requests.
func (o *OpenAI) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, services.Wrap(services.ErrValidation, "embedding", "encode", "no texts", nil)
	}

	result := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := start + maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := o.callAPI(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		copy(result[start:], vecs)
	}
	return result, nil
}

// Dimension returns the configured vector dimensionality.
func (o *OpenAI) Dimension() int {
	return o.dim
}

// Model returns the embeddings model identifier.
func (o *OpenAI) Model() string {
	return o.model
}

func (o *OpenAI) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model:          o.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions:     openai.Int(int64(o.dim)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, services.Wrap(classifyError(err), "embedding", "encode", "embeddings request failed", err)
	}

	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= int64(len(texts)) {
			return nil, services.Wrap(services.ErrPermanent, "embedding", "encode",
				fmt.Sprintf("embedding index %d out of range for batch of %d", item.Index, len(texts)), nil)
		}
		vecs[item.Index] = toFloat32s(item.Embedding)
	}
	for i, vec := range vecs {
		if vec == nil {
			return nil, services.Wrap(services.ErrPermanent, "embedding", "encode",
				fmt.Sprintf("provider returned no embedding for input %d", i), nil)
		}
	}
	return vecs, nil
}

// classifyError maps provider failures onto service markers: auth problems are
// configuration mistakes, rate limits and server errors may clear on retry, and
// remaining client errors will not.
func classifyError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return services.ErrTransient
	}
	switch {
	case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
		return services.ErrConfiguration
	case apiErr.StatusCode == http.StatusRequestTimeout,
		apiErr.StatusCode == http.StatusTooManyRequests,
		apiErr.StatusCode >= http.StatusInternalServerError:
		return services.ErrTransient
	default:
		return services.ErrPermanent
	}
}

func toFloat32s(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}

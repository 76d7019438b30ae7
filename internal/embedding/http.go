package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/bayan/internal/retry"
	"github.com/hyperjump/bayan/pkg/utils"
	"go.uber.org/zap"
)

// HTTPConfig configures an OpenAI-compatible /embeddings endpoint.
type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
	Retry      retry.Policy
}

// HTTPEmbedder calls an OpenAI-compatible embeddings API. Rate-limited and
// 5xx responses are retried under the configured policy.
type HTTPEmbedder struct {
	cfg    HTTPConfig
	client *http.Client
	logger *zap.Logger
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// NewHTTPEmbedder creates an HTTP embedder. logger may be nil.
func NewHTTPEmbedder(cfg HTTPConfig, logger *zap.Logger) (*HTTPEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("embedding base URL is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("embedding model is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("invalid embedding dimensions %d", cfg.Dimensions)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: utils.LoggerOrNop(logger),
	}, nil
}

// Embed embeds a single text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request, in input order.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	body, err := json.Marshal(embeddingRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var out [][]float32
	err = e.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		vecs, err := e.post(ctx, body, len(texts))
		if err != nil {
			return err
		}
		out = vecs
		return nil
	}, func(attempt int, err error, delay time.Duration) {
		e.logger.Warn("embedding request failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *HTTPEmbedder) post(ctx context.Context, body []byte, n int) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("embeddings API status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, retry.Permanent(err)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Data) != n {
		return nil, retry.Permanent(fmt.Errorf("expected %d embeddings, got %d", n, len(parsed.Data)))
	}

	vecs := make([][]float32, n)
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= n {
			return nil, retry.Permanent(fmt.Errorf("embedding index %d out of range", d.Index))
		}
		if len(d.Embedding) != e.cfg.Dimensions {
			return nil, retry.Permanent(fmt.Errorf("embedding has %d dimensions, want %d", len(d.Embedding), e.cfg.Dimensions))
		}
		v := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			v[i] = float32(x)
		}
		utils.NormalizeL2(v)
		vecs[d.Index] = v
	}
	for i, v := range vecs {
		if v == nil {
			return nil, retry.Permanent(fmt.Errorf("missing embedding for input %d", i))
		}
	}
	return vecs, nil
}

// Dimensions returns the configured embedding dimension.
func (e *HTTPEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

// Close releases idle connections.
func (e *HTTPEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

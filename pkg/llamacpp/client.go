// Package llamacpp talks to a llama.cpp server through its OpenAI-compatible
// chat and embeddings endpoints.
package llamacpp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/luizh3/fashion-extractor-api/internal/metrics"
)

const (
	defaultServerURL = "http://localhost:8080"
	chatPath         = "/v1/chat/completions"
	embeddingsPath   = "/v1/embeddings"
	queryTimeout     = 300 * time.Second
	maxErrorBody     = 4 << 10
)

var errEmptyReply = errors.New("llamacpp: no text content in response")

// StatusError reports a non-200 answer from the server.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llamacpp: server returned status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

// replyContent is the assistant message content, which servers send either
// as a plain string or as a list of typed parts.
type replyContent string

func (r *replyContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = replyContent(s)
		return nil
	}
	var parts []contentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("unexpected message content: %w", err)
	}
	for _, p := range parts {
		if p.Text != "" {
			*r = replyContent(p.Text)
			return nil
		}
	}
	*r = ""
	return nil
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content replyContent `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewClient returns a client for serverURL, defaulting to localhost:8080.
func NewClient(serverURL string) (*Client, error) {
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	return &Client{
		baseURL:    strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// SimpleQuery sends one user turn with an optional base64 JPEG attached and
// returns the first text reply.
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (reply string, err error) {
	start := time.Now()
	defer func() { metrics.RecordModelCall("llamacpp", "chat", start, err) }()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, queryTimeout)
		defer cancel()
	}

	parts := []contentPart{{Type: "text", Text: prompt}}
	if imgB64 != "" {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: "data:image/jpeg;base64," + imgB64}})
	}

	resp, err := post[chatResponse](ctx, c, chatPath, chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: parts}},
		Temperature: 0.2,
		MaxTokens:   2048,
		TopP:        0.8,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errEmptyReply
	}
	return string(resp.Choices[0].Message.Content), nil
}

// Embed returns one embedding per text, in input order.
func (c *Client) Embed(ctx context.Context, model string, texts []string) (vecs [][]float32, err error) {
	if len(texts) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { metrics.RecordModelCall("llamacpp", "embed", start, err) }()

	resp, err := post[embeddingsResponse](ctx, c, embeddingsPath, embeddingsRequest{Model: model, Input: texts})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("llamacpp: %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	vecs = make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vecs) || vecs[d.Index] != nil {
			return nil, fmt.Errorf("llamacpp: bad embedding index %d", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	if slices.ContainsFunc(vecs, func(v []float32) bool { return len(v) == 0 }) {
		return nil, errors.New("llamacpp: empty embedding in response")
	}
	return vecs, nil
}

func post[T any](ctx context.Context, c *Client, path string, payload any) (T, error) {
	var out T
	body, err := json.Marshal(payload)
	if err != nil {
		return out, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("llamacpp %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return out, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("llamacpp %s: decode response: %w", path, err)
	}
	return out, nil
}

// Package llm talks to an Ollama-compatible server for text generation and
// embeddings.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"meeting-insights-go/internal/logger"
)

const (
	maxLineBytes = 4 << 20

	defaultRetryMaxElapsed = 30 * time.Second
)

// ErrEmptyEmbedding is returned when the server answers without a vector.
var ErrEmptyEmbedding = errors.New("empty embedding")

// StatusError is a non-2xx reply from the model server.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm http %d: %s", e.Code, e.Body)
}

type Client struct {
	GenerateURL string
	EmbedURL    string
	Model       string
	EmbedModel  string

	HTTP            *http.Client
	GenerateTimeout time.Duration
	EmbedTimeout    time.Duration
	RetryMaxElapsed time.Duration

	log *logger.Logger
}

type Options struct {
	GenerateURL     string
	EmbedURL        string
	Model           string
	EmbedModel      string
	GenerateTimeout time.Duration
	EmbedTimeout    time.Duration
	RetryMaxElapsed time.Duration
}

func New(opts Options, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}
	return &Client{
		GenerateURL:     opts.GenerateURL,
		EmbedURL:        opts.EmbedURL,
		Model:           opts.Model,
		EmbedModel:      opts.EmbedModel,
		HTTP:            &http.Client{},
		GenerateTimeout: opts.GenerateTimeout,
		EmbedTimeout:    opts.EmbedTimeout,
		RetryMaxElapsed: opts.RetryMaxElapsed,
		log:             log.Component("llm"),
	}
}

// GenerateRequest is one prompt. Format "json" asks the model for a JSON
// object; Stream selects incremental delivery. Both modes are read the same way.
type GenerateRequest struct {
	Prompt string
	Format string
	Stream bool
}

type generatePayload struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format,omitempty"`
	Stream bool   `json:"stream"`
}

type generateLine struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Generate sends the prompt and calls fn with every response fragment in
// arrival order. Connection failures are retried until the server starts
// answering; once the body is being read nothing is retried.
func (c *Client) Generate(ctx context.Context, req GenerateRequest, fn func(fragment string) error) error {
	if c.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.GenerateTimeout)
		defer cancel()
	}

	body, err := json.Marshal(generatePayload{
		Model:  c.Model,
		Prompt: req.Prompt,
		Format: req.Format,
		Stream: req.Stream,
	})
	if err != nil {
		return fmt.Errorf("marshal generate request: %w", err)
	}

	resp, err := c.post(ctx, c.GenerateURL, body, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return readLines(resp.Body, fn)
}

// Complete collects every fragment of Generate into one string.
func (c *Client) Complete(ctx context.Context, req GenerateRequest) (string, error) {
	var sb strings.Builder
	err := c.Generate(ctx, req, func(fragment string) error {
		sb.WriteString(fragment)
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

func readLines(r io.Reader, fn func(string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var l generateLine
		if err := json.Unmarshal(line, &l); err != nil {
			return fmt.Errorf("decode generate line: %w", err)
		}
		if l.Error != "" {
			return fmt.Errorf("llm: %s", l.Error)
		}
		if l.Response != "" {
			if err := fn(l.Response); err != nil {
				return err
			}
		}
		if l.Done {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read generate stream: %w", err)
	}
	return nil
}

type embedPayload struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for text. It makes a single attempt.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.EmbedTimeout)
		defer cancel()
	}

	body, err := json.Marshal(embedPayload{Model: c.EmbedModel, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}
	resp, err := c.post(ctx, c.EmbedURL, body, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return out.Embedding, nil
}

// post returns a response with a 2xx status. With retry set, transport
// errors and 5xx replies are retried with exponential backoff.
func (c *Client) post(ctx context.Context, url string, body []byte, retry bool) (*http.Response, error) {
	if url == "" {
		return nil, errors.New("llm endpoint not configured")
	}

	var resp *http.Response
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		r, err := c.HTTP.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.log.WithError(err).WithField("url", url).Warn("llm request failed")
			return err
		}
		if r.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
			r.Body.Close()
			serr := &StatusError{Code: r.StatusCode, Body: strings.TrimSpace(string(raw))}
			if r.StatusCode < 500 {
				return backoff.Permanent(serr)
			}
			return serr
		}
		resp = r
		return nil
	}

	if !retry {
		if err := op(); err != nil {
			var perm *backoff.PermanentError
			if errors.As(err, &perm) {
				return nil, perm.Err
			}
			return nil, err
		}
		return resp, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.RetryMaxElapsed
	if c.RetryMaxElapsed <= 0 {
		bo.MaxElapsedTime = defaultRetryMaxElapsed
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

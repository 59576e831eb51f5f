package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"meeting-insights-go/internal/audio"
	"meeting-insights-go/internal/logger"
)

// Backend turns one audio segment into text.
type Backend interface {
	Transcribe(ctx context.Context, seg audio.Segment) (string, error)
}

const defaultRetryMaxElapsed = 30 * time.Second

type whisperResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// WhisperBackend posts WAV segments to a whisper-compatible inference server.
type WhisperBackend struct {
	URL             string
	Model           string
	HTTP            *http.Client
	RetryMaxElapsed time.Duration
	log             *logger.Logger
}

func NewWhisperBackend(url, model string, retryMaxElapsed time.Duration, log *logger.Logger) *WhisperBackend {
	if log == nil {
		log = logger.Discard()
	}
	return &WhisperBackend{
		URL:             url,
		Model:           model,
		HTTP:            &http.Client{},
		RetryMaxElapsed: retryMaxElapsed,
		log:             log.Component("whisper"),
	}
}

func (w *WhisperBackend) Transcribe(ctx context.Context, seg audio.Segment) (string, error) {
	if w.URL == "" {
		return "", errors.New("whisper url not set")
	}
	body, contentType, err := w.encode(seg)
	if err != nil {
		return "", err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = w.RetryMaxElapsed
	if w.RetryMaxElapsed <= 0 {
		bo.MaxElapsedTime = defaultRetryMaxElapsed
	}

	var out whisperResponse
	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := w.HTTP.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			w.log.WithError(err).WithField("segment", seg.Index).WithField("attempt", attempt).Warn("whisper request failed")
			return err
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("whisper server error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("whisper rejected segment %d: %d %s", seg.Index, resp.StatusCode, strings.TrimSpace(string(raw))))
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode whisper response: %w", err))
		}
		if out.Error != "" {
			return backoff.Permanent(fmt.Errorf("whisper: %s", out.Error))
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}

func (w *WhisperBackend) encode(seg audio.Segment) ([]byte, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if w.Model != "" {
		if err := mw.WriteField("model", w.Model); err != nil {
			return nil, "", err
		}
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return nil, "", err
	}
	fw, err := mw.CreateFormFile("file", fmt.Sprintf("segment-%04d.wav", seg.Index))
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(seg.WAV()); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body.Bytes(), mw.FormDataContentType(), nil
}

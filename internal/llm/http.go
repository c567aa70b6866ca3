package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxResponseBytes caps how much of a provider response is read.
const DefaultMaxResponseBytes = 8 << 20

// JSONRequest describes one provider call. The URL and headers are provider specific.
type JSONRequest struct {
	URL     string
	Body    any
	Headers map[string]string
	// RequestID is sent as X-Request-ID and attached to every log line; generated when empty.
	RequestID string
	// MaxResponseBytes defaults to DefaultMaxResponseBytes.
	MaxResponseBytes int64
}

// PostJSON posts req.Body as JSON and returns the raw response body and status code.
// A non-2xx status is an error; the body is still returned so callers can report it.
func PostJSON(ctx context.Context, client *http.Client, req JSONRequest, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	limit := req.MaxResponseBytes
	if limit <= 0 {
		limit = DefaultMaxResponseBytes
	}
	logger = logger.With("req_id", req.RequestID)
	start := time.Now()

	bs, err := json.Marshal(req.Body)
	if err != nil {
		logger.Error("llm.http.encode_error", "error", err)
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(bs))
	if err != nil {
		logger.Error("llm.http.build_request_error", "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", req.RequestID)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	logger.Debug("llm.http.request", "url", req.URL, "content_length", len(bs))

	resp, err := client.Do(httpReq)
	if err != nil {
		logger.Error("llm.http.send_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warn("llm.http.response_body_close_error", "error", err)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		logger.Error("llm.http.read_error", "status", resp.StatusCode, "error", err)
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if int64(len(raw)) > limit {
		logger.Error("llm.http.response_too_large", "status", resp.StatusCode, "limit", limit)
		return nil, resp.StatusCode, fmt.Errorf("response exceeds %d bytes", limit)
	}

	logger.Info("llm.http.response",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}

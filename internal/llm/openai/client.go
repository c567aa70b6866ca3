package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docrefine/constants"
	"github.com/joseph-ayodele/docrefine/internal/common"
	"github.com/joseph-ayodele/docrefine/internal/llm"
)

var _ llm.Rewriter = (*Client)(nil)

var errMissingAPIKey = errors.New("openai api key is not configured")

// maxErrBody caps how much of a non-2xx body ends up in the error message.
const maxErrBody = 512

// Rewrite implements llm.Rewriter using chat/completions in JSON mode.
func (c *Client) Rewrite(ctx context.Context, text string, style constants.WritingStyle) (llm.Result, error) {
	rid := uuid.New().String()
	start := time.Now()

	logger := c.logger
	if id, ok := common.DocumentIDFromContext(ctx); ok {
		logger = logger.With("document_id", id)
	}

	logger.Info("llm.rewrite.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"style", style,
		"text_len", len(text),
	)

	if c.cfg.APIKey == "" {
		logger.Error("llm.rewrite.missing_api_key", "req_id", rid)
		return llm.Result{}, fmt.Errorf("%w: %w", llm.ErrRewriteFailed, errMissingAPIKey)
	}

	user, err := llm.BuildUserPrompt(text, style)
	if err != nil {
		return llm.Result{}, fmt.Errorf("%w: %w", llm.ErrRewriteFailed, err)
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.SystemPrompt},
			{"role": "user", "content": user},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, status, err := llm.PostJSON(ctx, c.http, llm.JSONRequest{
		URL:       endpoint,
		Body:      body,
		Headers:   map[string]string{"Authorization": "Bearer " + c.cfg.APIKey},
		RequestID: rid,
	}, logger)
	if err != nil {
		logger.Error("llm.rewrite.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		if status != 0 {
			return llm.Result{}, fmt.Errorf("%w: openai status %d: %s", llm.ErrRewriteFailed, status, truncate(string(raw), maxErrBody))
		}
		return llm.Result{}, fmt.Errorf("%w: %w", llm.ErrRewriteFailed, err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		logger.Error("llm.rewrite.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Result{}, fmt.Errorf("%w: decode openai response: %w", llm.ErrRewriteFailed, err)
	}
	if len(cc.Choices) == 0 {
		logger.Error("llm.rewrite.no_choices",
			"req_id", rid, "elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Result{}, fmt.Errorf("%w: no choices in openai response", llm.ErrRewriteFailed)
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	if content == "" {
		logger.Error("llm.rewrite.empty_content", "req_id", rid)
		return llm.Result{}, fmt.Errorf("%w: empty message content", llm.ErrRewriteFailed)
	}

	out, err := decodeFields([]byte(content), text)
	if err != nil {
		logger.Error("llm.rewrite.schema_validation_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Result{}, fmt.Errorf("%w: %w", llm.ErrRewriteFailed, err)
	}
	out.ModelName = c.cfg.Model
	if len(out.Defaulted) > 0 {
		logger.Warn("llm.rewrite.lenient_defaults_applied",
			"req_id", rid, "defaulted", out.Defaulted,
		)
	}

	logger.Info("llm.rewrite.ok",
		"req_id", rid,
		"grammar", out.Corrections.Grammar,
		"style", out.Corrections.Style,
		"clarity", out.Corrections.Clarity,
		"corrected_len", len(out.CorrectedText),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// decodeFields normalizes the model's JSON, validates it and converts it.
func decodeFields(content []byte, original string) (llm.Result, error) {
	cleaned, defaulted, err := llm.NormalizeRewriteJSON(content, original)
	if err != nil {
		return llm.Result{}, err
	}
	if err := llm.ValidateJSONAgainstSchema(llm.BuildRewriteJSONSchema(), cleaned); err != nil {
		return llm.Result{}, err
	}
	var f llm.RewriteFields
	if err := json.Unmarshal(cleaned, &f); err != nil {
		return llm.Result{}, fmt.Errorf("unmarshal fields: %w", err)
	}
	res := f.ToResult()
	res.Defaulted = defaulted
	return res, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

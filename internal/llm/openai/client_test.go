package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docrefine/constants"
	"github.com/joseph-ayodele/docrefine/internal/entity"
	"github.com/joseph-ayodele/docrefine/internal/llm"
)

func chatResponse(t *testing.T, content string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	require.NoError(t, err)
	return b
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"}, nil)
}

func TestRewrite_Success(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write(chatResponse(t, `{"correctedContent":"She goes to school.","grammarCorrections":1,"styleImprovements":2,"clarityEnhancements":0}`))
	})

	res, err := c.Rewrite(context.Background(), "she go to school", constants.Professional)
	require.NoError(t, err)
	assert.Equal(t, "She goes to school.", res.CorrectedText)
	assert.Equal(t, entity.Corrections{Grammar: 1, Style: 2, Clarity: 0}, res.Corrections)
	assert.Empty(t, res.Defaulted)
	assert.Equal(t, DefaultModel, res.ModelName)

	assert.Equal(t, DefaultModel, got["model"])
	assert.InDelta(t, 0.3, got["temperature"], 1e-6)
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	sys := msgs[0].(map[string]any)
	assert.Equal(t, "system", sys["role"])
	assert.Equal(t, llm.SystemPrompt, sys["content"])
	user := msgs[1].(map[string]any)["content"].(string)
	assert.Contains(t, user, "professional, formal")
	assert.Contains(t, user, "she go to school")
}

func TestRewrite_LenientDefaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(chatResponse(t, `{"grammarCorrections":3}`))
	})

	res, err := c.Rewrite(context.Background(), "original text", constants.Casual)
	require.NoError(t, err)
	assert.Equal(t, "original text", res.CorrectedText)
	assert.Equal(t, entity.Corrections{Grammar: 3}, res.Corrections)
	assert.NotEmpty(t, res.Defaulted)
}

func TestRewrite_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>gateway</html>"))
		}},
		{"no choices", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}},
		{"content not json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(chatResponse(t, "Sure! Here is your text."))
		}},
		{"content is an array", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(chatResponse(t, `[1,2,3]`))
		}},
		{"empty content", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(chatResponse(t, "  "))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			res, err := c.Rewrite(context.Background(), "text", constants.Academic)
			require.Error(t, err)
			assert.ErrorIs(t, err, llm.ErrRewriteFailed)
			assert.Empty(t, res.CorrectedText)
		})
	}
}

func TestRewrite_StatusInError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
	_, err := c.Rewrite(context.Background(), "text", constants.Creative)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "401"), err.Error())
}

func TestRewrite_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY_ENV_VAR", "")

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	_, err := c.Rewrite(context.Background(), "text", constants.Casual)
	assert.ErrorIs(t, err, llm.ErrRewriteFailed)
	assert.False(t, called)
}

func TestRewrite_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Rewrite(ctx, "text", constants.Casual)
	assert.ErrorIs(t, err, llm.ErrRewriteFailed)
}

func TestNewClient_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")
	c := NewClient(Config{}, nil)
	assert.Equal(t, "from-env", c.cfg.APIKey)
	assert.Equal(t, DefaultBaseURL, c.cfg.BaseURL)
	assert.Equal(t, DefaultModel, c.Model())
	assert.InDelta(t, DefaultTemperature, c.cfg.Temperature, 1e-6)
}

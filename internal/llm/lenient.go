package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxCount is the largest counter kept; bigger values are clamped so they fit a
// 32-bit INTEGER column.
const MaxCount = math.MaxInt32

var countFields = []string{"grammarCorrections", "styleImprovements", "clarityEnhancements"}

// NormalizeRewriteJSON fills in what the model left out so the document validates:
// missing or empty correctedContent becomes original, missing or malformed counts
// become zero, negative counts are clamped to zero, counts above MaxCount are
// clamped to MaxCount and unknown keys are dropped.
// Only a body that is not a JSON object is an error.
func NormalizeRewriteJSON(raw []byte, original string) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("normalize: decode: %w", err)
	}
	if m == nil {
		return nil, nil, fmt.Errorf("normalize: response is not a JSON object")
	}

	var defaulted []string

	switch v := m["correctedContent"].(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			m["correctedContent"] = original
			defaulted = append(defaulted, "correctedContent(empty)")
		}
	case nil:
		m["correctedContent"] = original
		defaulted = append(defaulted, "correctedContent")
	default:
		m["correctedContent"] = original
		defaulted = append(defaulted, "correctedContent(type)")
	}

	for _, k := range countFields {
		n, note := coerceCount(m[k])
		m[k] = n
		if note != "" {
			defaulted = append(defaulted, k+note)
		}
	}

	out := map[string]any{"correctedContent": m["correctedContent"]}
	for _, k := range countFields {
		out[k] = m[k]
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, defaulted, fmt.Errorf("normalize: encode: %w", err)
	}
	return b, defaulted, nil
}

func coerceCount(v any) (int, string) {
	switch t := v.(type) {
	case nil:
		return 0, "(missing)"
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, "(type)"
		}
		if t < 0 {
			return 0, "(negative)"
		}
		if t > MaxCount {
			return MaxCount, "(overflow)"
		}
		if t != math.Trunc(t) {
			return int(t), "(fraction)"
		}
		return int(t), ""
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		switch {
		case err != nil && errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(strings.TrimSpace(t), "-"):
			return MaxCount, "(overflow)"
		case err != nil || n < 0:
			return 0, "(string)"
		case n > MaxCount:
			return MaxCount, "(overflow)"
		}
		return int(n), "(string)"
	default:
		return 0, "(type)"
	}
}

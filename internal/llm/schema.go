package llm

// BuildRewriteJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// Responses are validated against it after lenient normalization.
func BuildRewriteJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"correctedContent":    map[string]any{"type": "string"},
			"grammarCorrections":  countProp(),
			"styleImprovements":   countProp(),
			"clarityEnhancements": countProp(),
		},
		"required": []string{"correctedContent", "grammarCorrections", "styleImprovements", "clarityEnhancements"},
	}
}

func countProp() map[string]any {
	return map[string]any{"type": "integer", "minimum": 0}
}

package llm

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/docrefine/constants"
)

// SystemPrompt is sent as the first message of every rewrite request.
const SystemPrompt = "You are an expert grammar correction and writing enhancement AI. Always respond with valid JSON."

var stylePrompts = map[constants.WritingStyle]string{
	constants.Professional: "Convert this text to a professional, formal, business-appropriate style with clear and concise language.",
	constants.Casual:       "Convert this text to a casual, conversational, friendly tone that's easy to read and engaging.",
	constants.Academic:     "Convert this text to an academic style with scholarly language, precise terminology, and research-oriented tone.",
	constants.Creative:     "Convert this text to a creative, expressive, imaginative style with artistic and engaging language.",
}

// StyleInstruction returns the fixed tone template for style.
func StyleInstruction(style constants.WritingStyle) (string, error) {
	p, ok := stylePrompts[style]
	if !ok {
		return "", fmt.Errorf("unknown writing style %q", style)
	}
	return p, nil
}

// BuildUserPrompt composes the style instruction, the correction request, the
// original text and the expected response shape.
func BuildUserPrompt(text string, style constants.WritingStyle) (string, error) {
	instr, err := StyleInstruction(style)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(instr)
	b.WriteString("\n\nPlease correct the grammar and improve the following text while maintaining its original meaning and intent.\n\n")
	b.WriteString("Original text:\n")
	b.WriteString(text)
	b.WriteString("\n\nReturn your response in JSON format with:\n")
	b.WriteString(`- "correctedContent": the improved text` + "\n")
	b.WriteString(`- "grammarCorrections": number of grammar fixes made` + "\n")
	b.WriteString(`- "styleImprovements": number of style improvements made` + "\n")
	b.WriteString(`- "clarityEnhancements": number of clarity enhancements made`)
	return b.String(), nil
}

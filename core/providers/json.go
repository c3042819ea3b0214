package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	navierrors "github.com/SankrityaT/Navia-sub000/core/errors"
)

// DecodeJSON parses a model reply into v. Replies wrapped in markdown
// fences or surrounded by prose are tolerated; the outermost JSON object
// or array is decoded. Failures wrap navierrors.ErrMalformedOutput.
func DecodeJSON(text string, v any) error {
	payload := ExtractJSON(text)
	if payload == "" {
		return fmt.Errorf("%w: no JSON found", navierrors.ErrMalformedOutput)
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("%w: %v", navierrors.ErrMalformedOutput, err)
	}
	return nil
}

// ExtractJSON returns the outermost JSON object or array in text, or ""
// when there is none.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end < start {
		return ""
	}
	return text[start : end+1]
}

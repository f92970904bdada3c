package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrMalformedOutput indicates the model text could not be parsed into a
// JSON object. The extractor never retries; the caller owns the single
// repair re-prompt.
var ErrMalformedOutput = errors.New("malformed model output")

// ExtractJSON pulls a single JSON object out of free-form model text.
// Code fences are stripped, then a direct parse is attempted, then the first
// brace-delimited block. Arrays and scalars count as malformed.
func ExtractJSON(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrMalformedOutput
	}

	if strings.HasPrefix(text, "```") {
		text = strings.ReplaceAll(text, "```json", "")
		text = strings.ReplaceAll(text, "```", "")
		text = strings.TrimSpace(text)
	}

	parsed, err := parseObject(text)
	if err == nil {
		return parsed, nil
	}

	// Fall back to the widest brace-delimited block.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")

	if start >= 0 && end > start {
		parsed, err = parseObject(text[start : end+1])
		if err == nil {
			return parsed, nil
		}
	}

	return nil, ErrMalformedOutput
}

func parseObject(text string) (map[string]any, error) {
	var value any

	err := json.Unmarshal([]byte(text), &value)
	if err != nil {
		return nil, ErrMalformedOutput
	}

	object, ok := value.(map[string]any)
	if !ok {
		return nil, ErrMalformedOutput
	}

	return object, nil
}

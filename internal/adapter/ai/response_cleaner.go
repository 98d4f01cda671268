// Package ai holds provider-independent helpers for model calls: response
// cleanup, JSON decoding and the instrumented client wrapper.
package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fairyhunter13/mainalyze/internal/domain"
	"github.com/fairyhunter13/mainalyze/pkg/textx"
)

// rawSnippetLen bounds how much model output is kept in error context.
const rawSnippetLen = 500

// StripFences removes a surrounding markdown code fence (```json ... ```).
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the info string, e.g. "json"
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		if info := strings.TrimSpace(s[:i]); !strings.ContainsAny(info, "{[") {
			s = s[i+1:]
		}
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractJSON returns the first balanced JSON object in s, or s unchanged
// when no object is found. Braces inside string literals are ignored.
func ExtractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s
}

// DecodeJSON parses model output into v. Fences and leading or trailing
// prose are tolerated; anything else is ErrSchemaInvalid with a snippet of
// the raw text attached.
func DecodeJSON(raw string, v any) error {
	cleaned := StripFences(raw)
	err := json.Unmarshal([]byte(cleaned), v)
	if err == nil {
		return nil
	}
	if obj := ExtractJSON(cleaned); obj != cleaned {
		if err2 := json.Unmarshal([]byte(obj), v); err2 == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: decode model output: %v (raw: %s)", domain.ErrSchemaInvalid, err, textx.Truncate(raw, rawSnippetLen))
}

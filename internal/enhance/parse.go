package enhance

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Pre-compiled patterns for lenient response parsing. Model output is
// frequently wrapped in code fences or preceded by prose despite the prompt
// demanding bare JSON.
var (
	codeFenceRegex     = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
	objectRegex        = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
)

// ParseResponse parses a raw model reply into a Response, applying fallback
// strategies in order:
//  1. Direct JSON parse
//  2. Strip code fences and retry
//  3. Remove trailing commas and retry
//  4. Extract the outermost object from mixed content and retry
func ParseResponse(text string) (*Response, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("empty response")
	}

	if resp, err := tryParse(trimmed); err == nil {
		return resp, nil
	}

	withoutFences := removeCodeFences(trimmed)
	if withoutFences != trimmed {
		if resp, err := tryParse(withoutFences); err == nil {
			return resp, nil
		}
	}

	cleaned := trailingCommaRegex.ReplaceAllString(withoutFences, "$1")
	if resp, err := tryParse(cleaned); err == nil {
		return resp, nil
	}

	if extracted := objectRegex.FindString(cleaned); extracted != "" {
		if resp, err := tryParse(extracted); err == nil {
			return resp, nil
		}
	}

	return nil, fmt.Errorf("no parseable JSON object in response")
}

func tryParse(text string) (*Response, error) {
	var resp Response
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func removeCodeFences(text string) string {
	cleaned := codeFenceRegex.ReplaceAllString(text, "$1")
	return strings.TrimSpace(cleaned)
}

package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errNoJSONObject = errors.New("no JSON object in response")

// cleanJSONResponse strips markdown fences and surrounding prose from a model
// response, leaving the outermost {...} span.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```JSON", "")
	content = strings.ReplaceAll(content, "```", "")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return content[start : end+1]
}

// decodeModelJSON decodes a model response into v. Responses that only parse
// after swapping single quotes for double quotes are accepted as a last resort.
func decodeModelJSON(content string, v interface{}) error {
	raw := cleanJSONResponse(content)
	if raw == "" {
		return errNoJSONObject
	}

	err := json.Unmarshal([]byte(raw), v)
	if err == nil {
		return nil
	}

	if strings.Contains(raw, "'") {
		if retryErr := json.Unmarshal([]byte(strings.ReplaceAll(raw, "'", `"`)), v); retryErr == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to parse JSON: %w", err)
}

// lenientInt accepts numbers, numeric strings and null
type lenientInt int

func (l *lenientInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		*l = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*l = 0
		return nil
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*l = lenientInt(int(f))
		return nil
	}

	// Unparseable values are dropped rather than failing the whole document
	*l = 0
	return nil
}

// lenientString accepts strings, null and other scalars
type lenientString string

func (l *lenientString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = lenientString(s)
		return nil
	}
	if strings.TrimSpace(string(data)) == "null" {
		*l = ""
		return nil
	}
	*l = lenientString(strings.Trim(string(data), `"`))
	return nil
}

// lenientStrings accepts a list of strings, a single string or null
type lenientStrings []string

func (l *lenientStrings) UnmarshalJSON(data []byte) error {
	var list []interface{}
	if err := json.Unmarshal(data, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		*l = out
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			*l = []string{single}
		}
		return nil
	}

	*l = nil
	return nil
}

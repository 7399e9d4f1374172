package report

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadStructured reads a YAML or JSON document into a report_json payload.
func LoadStructured(path string) (map[string]any, error) {
	fileContent, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseStructured(fileContent)
}

func ParseStructured(data []byte) (map[string]any, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("structured report is empty")
	}

	out, ok := normalize(doc).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("structured report must be a mapping, got %T", doc)
	}
	return out, nil
}

// normalize makes a decoded document JSON-encodable: mappings with
// non-string keys become map[string]any and integers become float64,
// which is what encoding/json produces for the same payload.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}

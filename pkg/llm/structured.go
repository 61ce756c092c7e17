package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// GenerateSchema describes the struct behind v as a JSON schema suitable for
// strict json_schema mode. Fields tagged omitempty are optional; a
// description tag documents a field and an enum tag (values separated by |)
// restricts a string field.
func GenerateSchema(v any) (map[string]any, error) {
	if v == nil {
		return nil, errors.New("schema value cannot be nil")
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema must be a struct, got %s", t.Kind())
	}
	return schemaOf(t), nil
}

// ParseStructured decodes a model reply into target. Markdown code fences and
// prose around the outermost JSON object are tolerated since several
// providers ignore json mode.
func ParseStructured(content string, target any) error {
	if target == nil {
		return errors.New("target cannot be nil")
	}
	if reflect.ValueOf(target).Kind() != reflect.Ptr {
		return errors.New("target must be a pointer")
	}
	payload := ExtractJSON(content)
	if payload == "" {
		return errors.New("decode structured response: no json object found")
	}
	if err := json.Unmarshal([]byte(payload), target); err != nil {
		return fmt.Errorf("decode structured response: %w", err)
	}
	return nil
}

// ExtractJSON returns the outermost {...} span of s after stripping code
// fences, or "" when there is none.
func ExtractJSON(s string) string {
	s = trimContent(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

func trimContent(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// jsonField reports the wire name of a struct field and whether it may be
// omitted. ok is false for fields encoding/json skips.
func jsonField(f reflect.StructField) (name string, optional, ok bool) {
	if !f.IsExported() {
		return "", false, false
	}
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, false
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	for _, opt := range strings.Split(opts, ",") {
		if opt == "omitempty" || opt == "omitzero" {
			optional = true
		}
	}
	return name, optional, true
}

func schemaOf(t reflect.Type) map[string]any {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct:
		props := make(map[string]any, t.NumField())
		var required []string
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name, optional, ok := jsonField(f)
			if !ok {
				continue
			}
			prop := schemaOf(f.Type)
			if desc := f.Tag.Get("description"); desc != "" {
				prop["description"] = desc
			}
			if enum := f.Tag.Get("enum"); enum != "" {
				prop["enum"] = strings.Split(enum, "|")
			}
			props[name] = prop
			if !optional {
				required = append(required, name)
			}
		}
		schema := map[string]any{
			"type":                 "object",
			"properties":           props,
			"additionalProperties": false,
		}
		if len(required) > 0 {
			schema["required"] = required
		}
		return schema
	case reflect.Slice, reflect.Array:
		return map[string]any{"type": "array", "items": schemaOf(t.Elem())}
	case reflect.Map:
		return map[string]any{"type": "object", "additionalProperties": schemaOf(t.Elem())}
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	default:
		// strings, decimals and anything else that marshals as text
		return map[string]any{"type": "string"}
	}
}

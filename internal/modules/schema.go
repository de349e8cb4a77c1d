package modules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PropType is the declared type of a schema property.
type PropType int

const (
	PropString PropType = iota
	PropInt
	PropFloat
	PropBool
	PropJSON
)

// String returns the string representation of the PropType.
func (t PropType) String() string {
	switch t {
	case PropString:
		return "string"
	case PropInt:
		return "int"
	case PropFloat:
		return "float"
	case PropBool:
		return "bool"
	case PropJSON:
		return "json"
	default:
		return "unknown"
	}
}

// PropField declares one property a renderer accepts.
type PropField struct {
	// Name is the property name handed to the renderer. Defaults to the
	// attribute name when empty.
	Name string
	// Type selects the coercion applied to the attribute string.
	Type PropType
}

// Schema maps private-marker attribute names (lowercase, marker stripped) to
// property declarations.
type Schema map[string]PropField

// CoerceProps maps raw attribute strings through the schema. With a nil
// schema, attributes pass through as strings under their own names. An
// attribute that is not declared, or that fails coercion, is reported so the
// caller can warn and drop it; the remaining attributes still apply.
func (s Schema) CoerceProps(attrs map[string]string) (Props, []error) {
	props := make(Props, len(attrs))
	var errs []error

	for key, raw := range attrs {
		key = strings.ToLower(key)

		if s == nil {
			props[key] = raw
			continue
		}

		field, ok := s[key]
		if !ok {
			errs = append(errs, fmt.Errorf("attribute %q not in property schema", key))
			continue
		}
		name := field.Name
		if name == "" {
			name = key
		}

		value, err := coerce(field.Type, raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("attribute %q: %w", key, err))
			continue
		}
		props[name] = value
	}

	return props, errs
}

func coerce(t PropType, raw string) (any, error) {
	switch t {
	case PropString:
		return raw, nil
	case PropInt:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("expected int, got %q", raw)
		}
		return v, nil
	case PropFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("expected float, got %q", raw)
		}
		return v, nil
	case PropBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected bool, got %q", raw)
		}
		return v, nil
	case PropJSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("expected JSON, got %q", raw)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown property type %d", t)
	}
}

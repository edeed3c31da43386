package services

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/localnerve/memebase/internal/models"
	"github.com/localnerve/memebase/internal/types"
	"github.com/localnerve/memebase/internal/utils"
)

// keys that live in document columns, never in the data bag
var systemKeys = map[string]struct{}{
	"id":           {},
	"$id":          {},
	"slug":         {},
	"collectionId": {},
	"createdAt":    {},
	"updatedAt":    {},
	"$createdAt":   {},
	"$updatedAt":   {},
}

// validateDocumentData checks data against the collection fields and returns
// the normalized bag. With partial set, only the given keys are checked and
// neither required fields nor defaults apply.
func validateDocumentData(coll *models.CollectionSchema, data map[string]interface{}, partial bool) (models.DataMap, error) {
	out := make(models.DataMap, len(coll.Fields))

	for key, value := range data {
		if _, system := systemKeys[key]; system {
			continue
		}
		field, ok := coll.Field(key)
		if !ok {
			return nil, invalidDocument("unknown field '%s' for collection '%s'", key, coll.Slug)
		}
		if value == nil {
			if field.Required {
				return nil, invalidDocument("field '%s' is required", key)
			}
			out[key] = nil
			continue
		}
		if err := checkValue(field, value); err != nil {
			return nil, invalidDocument("field '%s': %v", key, err)
		}
		out[key] = normalize(value)
	}

	if partial {
		return out, nil
	}

	for _, field := range coll.Fields {
		if _, present := out[field.Name]; present {
			continue
		}
		if field.Default != nil {
			out[field.Name] = normalize(field.Default)
			continue
		}
		if field.Required {
			return nil, invalidDocument("field '%s' is required", field.Name)
		}
	}

	return out, nil
}

// checkValue validates one value, honouring isArray
func checkValue(field models.Field, value interface{}) error {
	if !field.IsArray {
		return checkScalar(field, value)
	}

	items, ok := asSlice(value)
	if !ok {
		return fmt.Errorf("expected an array of %s", field.Type)
	}
	for i, item := range items {
		if err := checkScalar(field, item); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func checkScalar(field models.Field, value interface{}) error {
	switch field.Type {
	case models.FieldString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string")
		}
	case models.FieldInteger:
		n, ok := asNumber(value)
		if !ok || n != math.Trunc(n) {
			return fmt.Errorf("expected integer")
		}
	case models.FieldFloat:
		if _, ok := asNumber(value); !ok {
			return fmt.Errorf("expected number")
		}
	case models.FieldBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean")
		}
	case models.FieldDatetime:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected RFC3339 datetime string")
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("expected RFC3339 datetime string")
		}
	case models.FieldEmail:
		if s, ok := value.(string); !ok || !utils.ValidateVar(s, "email") {
			return fmt.Errorf("expected email address")
		}
	case models.FieldURL:
		if s, ok := value.(string); !ok || !utils.ValidateVar(s, "url") {
			return fmt.Errorf("expected URL")
		}
	case models.FieldEnum:
		s, ok := value.(string)
		if !ok || !slices.Contains(field.Enum, s) {
			return fmt.Errorf("expected one of %v", field.Enum)
		}
	case models.FieldRelationship:
		if s, ok := value.(string); !ok || s == "" {
			return fmt.Errorf("expected document id")
		}
	default:
		return fmt.Errorf("unsupported field type %q", field.Type)
	}
	return nil
}

func asNumber(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func asSlice(value interface{}) ([]interface{}, bool) {
	switch v := value.(type) {
	case []interface{}:
		return v, true
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// normalize maps Go values to what a JSON round trip would produce, so that
// stored and in-memory documents compare alike
func normalize(value interface{}) interface{} {
	if n, ok := asNumber(value); ok {
		return n
	}
	if items, ok := asSlice(value); ok {
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = normalize(item)
		}
		return out
	}
	return value
}

func invalidDocument(format string, args ...interface{}) error {
	return types.BadRequest(fmt.Sprintf(format, args...), "document.validation")
}

package store

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Normalize converts a decoded document into a JSON-safe map: ObjectIDs
// become hex strings, timestamps become RFC 3339 strings, and nested
// documents and arrays are converted recursively. Applying it twice is a
// no-op.
func Normalize(doc bson.D) map[string]any {
	out := make(map[string]any, len(doc))
	for _, elem := range doc {
		out[elem.Key] = NormalizeValue(elem.Value)
	}
	return out
}

// NormalizeAll normalizes every document in a result set.
func NormalizeAll(docs []bson.D) []map[string]any {
	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		out = append(out, Normalize(doc))
	}
	return out
}

func NormalizeValue(value any) any {
	switch v := value.(type) {
	case bson.ObjectID:
		return v.Hex()
	case bson.DateTime:
		return v.Time().UTC().Format(time.RFC3339)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case bson.D:
		return Normalize(v)
	case bson.M:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			out[key] = NormalizeValue(inner)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			out[key] = NormalizeValue(inner)
		}
		return out
	case bson.A:
		return normalizeSlice(v)
	case []any:
		return normalizeSlice(v)
	default:
		return value
	}
}

func normalizeSlice(values []any) []any {
	out := make([]any, len(values))
	for i, value := range values {
		out[i] = NormalizeValue(value)
	}
	return out
}

// FieldOrder returns field names in first-seen order across a result set.
// The storage engine reports fields in document order, so the first document
// usually fixes the column order and later documents only append new fields.
func FieldOrder(docs []bson.D) []string {
	seen := make(map[string]bool)
	var order []string
	for _, doc := range docs {
		for _, elem := range doc {
			if !seen[elem.Key] {
				seen[elem.Key] = true
				order = append(order, elem.Key)
			}
		}
	}
	return order
}

// TypeTag reports the JSON-facing type of a normalized value, used for
// schema descriptions.
func TypeTag(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int32, int64:
		return "int"
	case float32, float64:
		return "double"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return "unknown"
	}
}

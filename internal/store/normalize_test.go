package store

import (
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestNormalizeConvertsEngineTypes(t *testing.T) {
	oid := bson.NewObjectID()
	stamp := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	doc := bson.D{
		{Key: "_id", Value: oid},
		{Key: "created_at", Value: bson.DateTime(stamp.UnixMilli())},
		{Key: "amount", Value: 41.5},
		{Key: "nested", Value: bson.D{
			{Key: "ref", Value: oid},
			{Key: "tags", Value: bson.A{"a", bson.D{{Key: "at", Value: stamp}}}},
		}},
	}

	got := Normalize(doc)
	if got["_id"] != oid.Hex() {
		t.Fatalf("_id = %v", got["_id"])
	}
	if got["created_at"] != "2025-03-14T09:26:53Z" {
		t.Fatalf("created_at = %v", got["created_at"])
	}
	nested, ok := got["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested = %T", got["nested"])
	}
	if nested["ref"] != oid.Hex() {
		t.Fatalf("nested ref = %v", nested["ref"])
	}
	tags, ok := nested["tags"].([]any)
	if !ok || len(tags) != 2 {
		t.Fatalf("tags = %#v", nested["tags"])
	}
	inner, ok := tags[1].(map[string]any)
	if !ok || inner["at"] != "2025-03-14T09:26:53Z" {
		t.Fatalf("tags[1] = %#v", tags[1])
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	doc := bson.D{
		{Key: "_id", Value: bson.NewObjectID()},
		{Key: "when", Value: time.Now()},
		{Key: "items", Value: bson.A{bson.D{{Key: "n", Value: int32(1)}}}},
	}

	once := Normalize(doc)
	twice := NormalizeValue(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("normalize not idempotent:\nonce:  %#v\ntwice: %#v", once, twice)
	}
}

func TestFieldOrderFirstSeen(t *testing.T) {
	docs := []bson.D{
		{{Key: "_id", Value: "a"}, {Key: "total", Value: 1}},
		{{Key: "_id", Value: "b"}, {Key: "total", Value: 2}, {Key: "extra", Value: true}},
	}
	got := FieldOrder(docs)
	want := []string{"_id", "total", "extra"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("field order = %v", got)
	}
}

func TestTypeTag(t *testing.T) {
	cases := []struct {
		value any
		want  string
	}{
		{"x", "string"},
		{true, "bool"},
		{int64(4), "int"},
		{4.5, "double"},
		{map[string]any{}, "object"},
		{[]any{}, "array"},
		{nil, "null"},
	}
	for _, tc := range cases {
		if got := TypeTag(tc.value); got != tc.want {
			t.Errorf("TypeTag(%#v) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

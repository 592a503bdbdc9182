package schema

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type fakeStore struct {
	docs []bson.D
	err  error
	n    int
}

func (f *fakeStore) SampleRandom(_ context.Context, _ string, n int) ([]bson.D, error) {
	f.n = n
	return f.docs, f.err
}

func TestSampleBuildsDescriptor(t *testing.T) {
	oid := bson.NewObjectID()
	st := &fakeStore{docs: []bson.D{
		{{Key: "_id", Value: oid}, {Key: "category", Value: "A"}, {Key: "amount", Value: 10.0}},
		{{Key: "_id", Value: bson.NewObjectID()}, {Key: "category", Value: "B"}, {Key: "amount", Value: int64(5)}, {Key: "note", Value: "x"}},
	}}
	sampler := NewSampler(st, 50, nil)

	desc := sampler.Sample(t.Context(), "sales")
	if desc.Error != "" {
		t.Fatalf("error = %q", desc.Error)
	}
	if st.n != 50 {
		t.Fatalf("sample size = %d", st.n)
	}
	if desc.SampleCount != 2 {
		t.Fatalf("sample count = %d", desc.SampleCount)
	}

	names := make([]string, 0, len(desc.Fields))
	for _, field := range desc.Fields {
		names = append(names, field.Name)
	}
	if !reflect.DeepEqual(names, []string{"_id", "category", "amount", "note"}) {
		t.Fatalf("field order = %v", names)
	}

	byName := map[string][]string{}
	for _, field := range desc.Fields {
		byName[field.Name] = field.Types
	}
	if !reflect.DeepEqual(byName["amount"], []string{"double", "int"}) {
		t.Fatalf("amount types = %v", byName["amount"])
	}
	if !reflect.DeepEqual(byName["_id"], []string{"string"}) {
		t.Fatalf("_id types = %v", byName["_id"])
	}

	if desc.SampleDocument["_id"] != oid.Hex() {
		t.Fatalf("sample document _id = %v", desc.SampleDocument["_id"])
	}
}

func TestSampleEmptyCollection(t *testing.T) {
	sampler := NewSampler(&fakeStore{}, 0, nil)
	desc := sampler.Sample(t.Context(), "empty")
	if desc.SampleCount != 0 {
		t.Fatalf("sample count = %d", desc.SampleCount)
	}
	if len(desc.Fields) != 0 || desc.Fields == nil {
		t.Fatalf("fields = %#v", desc.Fields)
	}
	if desc.Error != "" {
		t.Fatalf("error = %q", desc.Error)
	}
}

func TestSampleEngineErrorIsFoldedIntoDescriptor(t *testing.T) {
	sampler := NewSampler(&fakeStore{err: errors.New("server selection timeout")}, 10, nil)
	desc := sampler.Sample(t.Context(), "sales")
	if desc.Error == "" {
		t.Fatal("expected descriptor error")
	}
	if desc.SampleCount != 0 || len(desc.Fields) != 0 {
		t.Fatalf("descriptor = %+v", desc)
	}
}

func TestSampleNormalizesTimestampsInSampleDocument(t *testing.T) {
	stamp := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	st := &fakeStore{docs: []bson.D{
		{{Key: "date", Value: bson.DateTime(stamp.UnixMilli())}},
	}}
	desc := NewSampler(st, 10, nil).Sample(t.Context(), "sales")
	if desc.SampleDocument["date"] != "2025-06-01T00:00:00Z" {
		t.Fatalf("date = %v", desc.SampleDocument["date"])
	}
	if !reflect.DeepEqual(desc.Fields[0].Types, []string{"string"}) {
		t.Fatalf("types = %v", desc.Fields[0].Types)
	}
}

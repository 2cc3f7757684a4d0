package ai

import (
	"encoding/json"
	"reflect"
	"testing"
)

func decode(t *testing.T, raw string) interface{} {
	t.Helper()
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return v
}

func TestDeepFixTextObjects(t *testing.T) {
	got := DeepFixTextObjects(decode(t, `{"a": {"text": "x"}, "b": [{"text": "y"}, 2]}`))
	want := decode(t, `{"a": "x", "b": ["y", 2]}`)

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DeepFixTextObjects = %#v, want %#v", got, want)
	}
}

func TestDeepFixTextObjectsNested(t *testing.T) {
	// Wrappers inside wrappers collapse all the way down.
	got := DeepFixTextObjects(decode(t, `{"a": {"text": {"text": "x"}}}`))
	want := decode(t, `{"a": "x"}`)

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("nested wrappers: got %#v, want %#v", got, want)
	}
}

func TestDeepFixTextObjectsIdempotent(t *testing.T) {
	normalized := DeepFixTextObjects(decode(t, `{"a": {"text": "x"}, "b": [{"text": "y"}, 2]}`))
	again := DeepFixTextObjects(normalized)

	if !reflect.DeepEqual(normalized, again) {
		t.Fatalf("second pass changed the tree: %#v vs %#v", normalized, again)
	}
}

func TestDeepFixTextObjectsKeepsRealObjects(t *testing.T) {
	// An object with "text" among other keys is not the wrapper shape.
	raw := `{"text": "keep me", "title": "t"}`
	got := DeepFixTextObjects(decode(t, raw))
	want := decode(t, raw)

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("multi-key object was mangled: %#v", got)
	}
}

func TestDeepFixTextObjectsScalars(t *testing.T) {
	for _, raw := range []string{`"s"`, `3`, `true`, `null`, `[]`} {
		got := DeepFixTextObjects(decode(t, raw))
		want := decode(t, raw)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("scalar %s changed: %#v", raw, got)
		}
	}
}

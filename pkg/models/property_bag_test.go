package models

import (
	"reflect"
	"testing"
)

func TestPropertyBag_SetKeepsPosition(t *testing.T) {
	b := NewPropertyBag().Set("a", 1).Set("b", 2).Set("a", 3)

	if got := b.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Names() = %v", got)
	}
	if v, _ := b.Get("a"); v != 3 {
		t.Errorf("Get(a) = %v, want 3", v)
	}
}

func TestPropertyBag_ClearIsPresent(t *testing.T) {
	b := NewPropertyBag().Clear("title")

	if !b.Has("title") {
		t.Error("cleared name should be present")
	}
	if _, ok := b.Values()["title"]; ok {
		t.Error("Values() should omit nil values")
	}
}

func TestPropertyBag_ApplyTo(t *testing.T) {
	stored := map[string]any{"title": "old", "scope": "all", "summary": "keep"}
	b := NewPropertyBag().Set("title", "new").Clear("scope")

	got := b.ApplyTo(stored)
	want := map[string]any{"title": "new", "summary": "keep"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ApplyTo() = %v, want %v", got, want)
	}
	if stored["title"] != "old" {
		t.Error("ApplyTo must not modify its input")
	}
}

func TestPropertyBag_NilReceiver(t *testing.T) {
	var b *PropertyBag
	if b.Len() != 0 || b.Has("x") || len(b.Values()) != 0 {
		t.Error("nil bag should behave as empty")
	}
	if got := b.ApplyTo(map[string]any{"x": 1}); got["x"] != 1 {
		t.Errorf("ApplyTo() = %v", got)
	}
}

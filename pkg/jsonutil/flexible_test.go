package jsonutil

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestFlexibleString(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{name: "string value", input: "hello", want: "hello"},
		{name: "integer float", input: float64(42), want: "42"},
		{name: "fractional float", input: 3.14, want: "3.14"},
		{name: "boolean true", input: true, want: "true"},
		{name: "nil", input: nil, want: ""},
		{name: "json number", input: json.Number("9007199254740992"), want: "9007199254740992"},
		{name: "negative integer", input: float64(-7), want: "-7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FlexibleString(tt.input); got != tt.want {
				t.Errorf("FlexibleString(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFlexibleInt(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  int
	}{
		{name: "int", input: 5, want: 5},
		{name: "float64 from json", input: float64(12), want: 12},
		{name: "int64", input: int64(3), want: 3},
		{name: "json number", input: json.Number("8"), want: 8},
		{name: "numeric string", input: "17", want: 17},
		{name: "text", input: "many", want: 0},
		{name: "nil", input: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FlexibleInt(tt.input); got != tt.want {
				t.Errorf("FlexibleInt(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFlexibleStringSlice(t *testing.T) {
	got := FlexibleStringSlice([]any{"a", float64(2)})
	if !reflect.DeepEqual(got, []string{"a", "2"}) {
		t.Errorf("FlexibleStringSlice() = %v", got)
	}
	if FlexibleStringSlice([]any{}) != nil {
		t.Error("empty list should map to nil")
	}
	if FlexibleStringSlice("a") != nil {
		t.Error("non-list should map to nil")
	}
}

func TestFlexibleStringMap(t *testing.T) {
	got := FlexibleStringMap(map[string]any{"k": "v", "n": float64(1)})
	want := map[string]string{"k": "v", "n": "1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FlexibleStringMap() = %v, want %v", got, want)
	}
	if FlexibleStringMap(map[string]any{}) != nil {
		t.Error("empty map should map to nil")
	}
}

func TestFlexibleTime_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 890, time.FixedZone("x", 3600))

	got := FlexibleTime(FormatTime(&ts))
	if got == nil || !got.Equal(ts) {
		t.Fatalf("FlexibleTime(FormatTime()) = %v, want %v", got, ts)
	}
	if got.Location() != time.UTC {
		t.Error("FlexibleTime should return UTC")
	}
	if FlexibleTime("yesterday") != nil {
		t.Error("unparseable string should map to nil")
	}
	if FormatTime(nil) != nil {
		t.Error("FormatTime(nil) should be nil")
	}
}

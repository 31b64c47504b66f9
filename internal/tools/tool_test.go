package tools

import (
	"context"
	"strings"
	"testing"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echo" }
func (echoTool) Params() []Param {
	return []Param{{Name: "text", Type: TypeString, Required: true}}
}
func (echoTool) Call(_ context.Context, args map[string]any) (any, error) {
	return args["text"], nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(echoTool{}, NewFX())

	names := r.List()
	if len(names) != 2 || names[0] != "convert_fx" || names[1] != "echo" {
		t.Errorf("unexpected names: %v", names)
	}
	if !r.Exists("echo") || r.Exists("nope") {
		t.Error("unexpected Exists result")
	}
	if _, err := r.Get("nope"); err == nil {
		t.Error("expected error for unknown tool")
	}

	out, err := r.Call(context.Background(), "echo", map[string]any{"text": "hi"})
	if err != nil || out != "hi" {
		t.Errorf("expected hi, got %v (%v)", out, err)
	}
}

func TestRegistry_MissingRequiredArgument(t *testing.T) {
	r := NewRegistry(echoTool{})
	for _, args := range []map[string]any{nil, {}, {"text": ""}, {"text": nil}} {
		_, err := r.Call(context.Background(), "echo", args)
		if err == nil || !strings.Contains(err.Error(), `missing required argument "text"`) {
			t.Errorf("expected missing argument error for %v, got %v", args, err)
		}
	}
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{"s": "x", "blank": "  ", "f": 2.5, "i": 3, "str": "4.5", "bad": "abc", "b": true}

	if argString(args, "s", "d") != "x" || argString(args, "blank", "d") != "d" || argString(args, "missing", "d") != "d" {
		t.Error("unexpected argString result")
	}
	if argString(args, "f", "") != "2.5" || argString(args, "b", "") != "true" {
		t.Error("expected non-string values to be formatted")
	}
	for key, want := range map[string]float64{"f": 2.5, "i": 3, "str": 4.5} {
		got, err := argFloat(args, key)
		if err != nil || got != want {
			t.Errorf("argFloat(%s) = %v, %v; want %v", key, got, err, want)
		}
	}
	if _, err := argFloat(args, "bad"); err == nil {
		t.Error("expected error for non-numeric string")
	}
	if _, err := argFloat(args, "b"); err == nil {
		t.Error("expected error for bool")
	}
	if argInt(args, "missing", 7) != 7 || argInt(args, "i", 7) != 3 {
		t.Error("unexpected argInt result")
	}
}

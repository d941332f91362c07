package tool

import (
	"context"
	"strings"
	"testing"
)

type stubTool struct {
	name   string
	output string
}

func (t *stubTool) Name() string               { return t.name }
func (t *stubTool) Description() string        { return "stub " + t.name }
func (t *stubTool) Parameters() map[string]any { return ToolParameters(nil, nil) }
func (t *stubTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return t.output, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(&stubTool{name: "read_file"})

	if _, ok := r.Get("read_file"); !ok {
		t.Fatal("registered tool not found")
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatal("unregistered tool should not be found")
	}
}

func TestRegistry_Execute(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(&stubTool{name: "read_file", output: "contents"})

	out, err := r.Execute(context.Background(), "read_file", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "contents" {
		t.Fatalf("unexpected output %q", out)
	}

	if _, err := r.Execute(context.Background(), "missing", nil); err == nil {
		t.Fatal("executing an unknown tool must error")
	}
}

func TestRegistry_DefinitionsSorted(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(&stubTool{name: "write_file"})
	r.Register(&stubTool{name: "list_dir"})
	r.Register(&stubTool{name: "read_file"})

	defs := r.Definitions()
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}
	for i := 1; i < len(defs); i++ {
		if defs[i-1].Name > defs[i].Name {
			t.Fatalf("definitions not sorted: %s before %s", defs[i-1].Name, defs[i].Name)
		}
	}
}

func TestToolParameters_RequiredList(t *testing.T) {
	schema := ToolParameters(
		map[string]Param{"path": {Type: "string", Description: "file path"}},
		[]string{"path"},
	)
	if schema["type"] != "object" {
		t.Fatalf("schema type: %v", schema["type"])
	}
	required, ok := schema["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "path" {
		t.Fatalf("unexpected required list: %v", schema["required"])
	}

	optional := ToolParameters(map[string]Param{"q": {Type: "string"}}, nil)
	if _, ok := optional["required"]; ok {
		t.Fatal("required key should be absent when no parameters are required")
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(&stubTool{name: "b"})
	r.Register(&stubTool{name: "a"})

	names := r.Names()
	if strings.Join(names, ",") != "a,b" {
		t.Fatalf("unexpected names: %v", names)
	}
}
